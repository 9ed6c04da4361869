package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/core"
	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/indexing"
	"github.com/standardbeagle/smaliref/internal/mcp"
	"github.com/standardbeagle/smaliref/internal/parser"
	"github.com/standardbeagle/smaliref/internal/query"
)

// project is a loaded corpus plus the query service over it.
type project struct {
	cfg     *config.Config
	service *query.Service
	stats   indexing.LoadStats
	close   func()
}

// openProject loads every matching file below the root.
func openProject(c *cli.Context) (*project, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}

	jp := parser.NewJavaParser(cfg.Performance.ParserPoolSize)
	loader := indexing.NewLoader(cfg, core.NewCorpus(jp))
	stats, err := loader.Load(c.Context)
	if err != nil {
		jp.Close()
		return nil, err
	}
	if err := stats.Err(); err != nil {
		debug.LogIndex("load: %v\n", err)
	}

	return &project{
		cfg:     cfg,
		service: query.NewService(cfg, loader.Corpus()),
		stats:   stats,
		close:   jp.Close,
	}, nil
}

func refsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("refs needs exactly one CLASS argument")
	}

	p, err := openProject(c)
	if err != nil {
		return err
	}
	defer p.close()

	out := c.App.Writer
	asJSON := c.Bool("json")
	req := query.RefsRequest{
		Class: c.Args().First(),
		Scope: c.StringSlice("scope"),
		In:    c.StringSlice("in"),
		Max:   c.Int("max"),
	}
	if !asJSON {
		// Print as found so an interrupted search keeps its output
		req.OnReference = func(ref query.Reference) {
			location := ref.Path
			if c.Bool("uri") {
				location = ref.URI
			}
			fmt.Fprintf(out, "%s:%d:%d: %s\n", location, ref.Line, ref.Column, ref.Text)
		}
	}

	result, err := p.service.FindReferences(c.Context, req)
	if result == nil {
		return err
	}
	if asJSON {
		if jsonErr := writeJSON(out, result); jsonErr != nil {
			return jsonErr
		}
	}
	switch {
	case result.Partial:
		fmt.Fprintf(c.App.ErrWriter, "interrupted after %d references to %s\n", len(result.References), result.Descriptor)
	case result.Truncated:
		fmt.Fprintf(c.App.ErrWriter, "stopped after %d references to %s\n", len(result.References), result.Descriptor)
	}
	return err
}

func classesCommand(c *cli.Context) error {
	p, err := openProject(c)
	if err != nil {
		return err
	}
	defer p.close()

	classes, err := p.service.Classes(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, classes)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, cls := range classes {
		fmt.Fprintf(tw, "%s\t%s\t%s:%d\n", cls.QualifiedName, cls.Descriptor, cls.Path, cls.Line)
	}
	return tw.Flush()
}

func statsCommand(c *cli.Context) error {
	p, err := openProject(c)
	if err != nil {
		return err
	}
	defer p.close()

	counts, err := p.service.Stats(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Root:      %s\n", p.cfg.Project.Root)
	fmt.Fprintf(out, "Documents: %d (%d smali, %d java)\n", counts.Documents, counts.Smali, counts.Java)
	fmt.Fprintf(out, "Classes:   %d\n", counts.Classes)
	fmt.Fprintf(out, "Skipped:   %d\n", p.stats.Skipped)
	fmt.Fprintf(out, "Errors:    %d\n", len(p.stats.Errors))
	fmt.Fprintf(out, "Load time: %v\n", p.stats.Duration.Round(time.Millisecond))
	return nil
}

func mcpCommand(c *cli.Context) error {
	// stdout carries the protocol
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	logger := mcp.NewDiagnosticLogger(true)
	defer logger.Close()

	jp := parser.NewJavaParser(cfg.Performance.ParserPoolSize)
	defer jp.Close()

	server, err := mcp.NewServer(cfg, indexing.NewLoader(cfg, core.NewCorpus(jp)), logger)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}

	runErr := server.Start(c.Context)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	if runErr != nil && c.Context.Err() == nil {
		return debug.Fatal("MCP server error: %v\n", runErr)
	}
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	return toml.NewEncoder(c.App.Writer).SetIndentTables(true).Encode(cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
