package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/version"
)

// loadConfigWithOverrides loads the configuration of the --root project and
// applies the include and exclude flags on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", absRoot, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                   "smaliref",
		Usage:                  "Find references to Java classes in smali code",
		Version:                version.Info(),
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root containing the Java sources and smali output",
				Value:   ".",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Load only files matching glob patterns (e.g., --include 'smali*/**')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns (e.g., --exclude '**/R$*.smali')",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Write debug information to stderr",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug information to a file under the temp directory",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Bool("debug-log"):
				debug.EnableDebug = "true"
				logPath, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", logPath)
			case c.Bool("verbose"):
				debug.EnableDebug = "true"
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:      "refs",
				Aliases:   []string{"r"},
				Usage:     "List the smali references to a Java class",
				ArgsUsage: "CLASS",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"m"},
						Usage:   "Stop after this many references (0 = config default)",
					},
					&cli.StringSliceFlag{
						Name:    "scope",
						Aliases: []string{"s"},
						Usage:   "Search only files matching glob patterns relative to the root",
					},
					&cli.StringSliceFlag{
						Name:  "in",
						Usage: "Search only this smali file or member, as FILE or FILE#MEMBER",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
					&cli.BoolFlag{
						Name:  "uri",
						Usage: "Print file:// URIs instead of root-relative paths",
					},
				},
				Action: refsCommand,
			},
			{
				Name:      "classes",
				Aliases:   []string{"c"},
				Usage:     "List the Java classes that can be searched for",
				ArgsUsage: "[FILTER]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: classesCommand,
			},
			{
				Name:   "stats",
				Usage:  "Load the project and report what was found",
				Action: statsCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve reference search over MCP on stdio",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration as TOML",
						Action: configShowCommand,
					},
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
