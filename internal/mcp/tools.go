package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/smaliref/internal/core"
	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/query"
	"github.com/standardbeagle/smaliref/internal/version"
)

// FindReferencesParams are the find_references arguments.
type FindReferencesParams struct {
	Class string   `json:"class"`
	Scope []string `json:"scope,omitempty"`
	In    []string `json:"in,omitempty"`
	Max   int      `json:"max,omitempty"`
}

// ListClassesParams are the list_classes arguments.
type ListClassesParams struct {
	Filter string `json:"filter,omitempty"`
	Max    int    `json:"max,omitempty"`
}

// ListClassesResponse is the list_classes result.
type ListClassesResponse struct {
	Classes   []query.ClassInfo `json:"classes"`
	Total     int               `json:"total"`
	Truncated bool              `json:"truncated,omitempty"`
}

// IndexStatsResponse is the index_stats result.
type IndexStatsResponse struct {
	Version string     `json:"version"`
	Root    string     `json:"root"`
	Index   IndexState `json:"index"`
	Corpus  core.Stats `json:"corpus"`
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name: "find_references",
		Description: "Find the references to a Java class in the project's smali code. " +
			"Matches are confirmed structurally: type descriptors in directives and instructions count, " +
			"strings and comments do not. Accepts com.example.Outer.Inner, com/example/Outer$Inner or Lcom/example/Outer$Inner;.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"class": {
					Type:        "string",
					Description: "Java class to search for (qualified, binary or descriptor form)",
				},
				"scope": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Glob patterns over root-relative paths limiting the searched files (e.g. [\"smali_classes2/**\"])",
				},
				"in": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Search only these smali files or members, as FILE or FILE#MEMBER (e.g. \"smali/a/B.smali#onCreate\"). Exclusive with scope.",
				},
				"max": {
					Type:        "integer",
					Description: fmt.Sprintf("Maximum references to return (default %d)", RefsDefaultMax),
				},
			},
			Required: []string{"class"},
		},
	}, s.handleFindReferences)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_classes",
		Description: "List the Java classes that find_references can resolve, with their smali descriptors.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filter": {
					Type:        "string",
					Description: "Case-insensitive substring of the qualified name, or a glob such as com.example.*",
				},
				"max": {
					Type:        "integer",
					Description: fmt.Sprintf("Maximum classes to return (default %d)", ClassesDefaultMax),
				},
			},
		},
	}, s.handleListClasses)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_stats",
		Description: "Report loading status and corpus counts.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleIndexStats)
}

// unmarshalArgs decodes tool arguments; absent arguments leave v unchanged.
func unmarshalArgs(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleFindReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("find_references", func() (*mcp.CallToolResult, error) {
		var params FindReferencesParams
		if err := unmarshalArgs(req, &params); err != nil {
			return nil, err
		}
		if err := s.indexer.waitForCompletion(ctx, s.indexTimeout); err != nil {
			return nil, err
		}

		limit := params.Max
		if limit == 0 && s.cfg.Search.MaxResults == 0 {
			limit = RefsDefaultMax
		}
		result, err := s.service.FindReferences(ctx, query.RefsRequest{
			Class: params.Class,
			Scope: params.Scope,
			In:    params.In,
			Max:   limit,
		})
		if err != nil {
			if result == nil {
				return nil, err
			}
			// cancelled or timed out: the client still gets what was found
			s.diagnosticLogger.Printf("find_references: %d partial references: %v", len(result.References), err)
		}
		debug.LogMCP("find_references %s: %d references (truncated=%v)\n",
			result.Descriptor, len(result.References), result.Truncated)
		return createJSONResponse(result)
	})
}

func (s *Server) handleListClasses(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("list_classes", func() (*mcp.CallToolResult, error) {
		var params ListClassesParams
		if err := unmarshalArgs(req, &params); err != nil {
			return nil, err
		}
		if err := s.indexer.waitForCompletion(ctx, s.indexTimeout); err != nil {
			return nil, err
		}

		classes, err := s.service.Classes(ctx, params.Filter)
		if err != nil {
			return nil, err
		}
		limit := params.Max
		if limit <= 0 {
			limit = ClassesDefaultMax
		}
		resp := ListClassesResponse{Classes: classes, Total: len(classes)}
		if len(classes) > limit {
			resp.Classes = classes[:limit]
			resp.Truncated = true
		}
		return createJSONResponse(resp)
	})
}

func (s *Server) handleIndexStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("index_stats", func() (*mcp.CallToolResult, error) {
		stats, err := s.service.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return createJSONResponse(IndexStatsResponse{
			Version: version.Info(),
			Root:    s.cfg.Project.Root,
			Index:   s.indexer.state(),
			Corpus:  stats,
		})
	})
}
