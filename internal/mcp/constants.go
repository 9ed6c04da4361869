package mcp

import "time"

// Tool defaults
const (
	// RefsDefaultMax caps find_references when neither the request nor the
	// config sets a limit. Larger answers rarely fit a client's context.
	RefsDefaultMax = 200

	// ClassesDefaultMax caps list_classes output.
	ClassesDefaultMax = 500

	// DefaultIndexingTimeout bounds how long a tool call waits for the
	// initial load to finish.
	DefaultIndexingTimeout = 60 * time.Second
)

// Server identity reported during initialization
const serverName = "smaliref-mcp-server"
