package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/smaliref/internal/core"
	referrors "github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/query"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// errorResponse is the body of a failed tool call.
type errorResponse struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	Operation   string   `json:"operation"`
	Kind        string   `json:"kind"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// createErrorResponse reports err inside the result with IsError set, so the
// client model sees the failure and can retry with corrected arguments.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	body := errorResponse{
		Error:     err.Error(),
		Operation: operation,
		Kind:      errorKind(err),
	}
	var nf *query.NotFoundError
	if errors.As(err, &nf) {
		body.Suggestions = nf.Suggestions
	}

	response, marshalErr := createJSONResponse(body)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

func errorKind(err error) string {
	var nf *query.NotFoundError
	var cfgErr *referrors.ConfigError
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.Is(err, referrors.ErrContractViolation):
		return "invalid_request"
	case errors.As(err, &cfgErr):
		return "invalid_request"
	case errors.Is(err, core.ErrReadLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}
