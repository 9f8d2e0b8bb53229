package cmd

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/engramkit/engram/pkg/memory"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Expose the memory engine as MCP tools over stdio, for use by
agents and editors that speak the Model Context Protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// MCPServer adapts the memory store to MCP tool calls.
type MCPServer struct {
	store *memory.Store
}

func runMCP(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	m := &MCPServer{store: eng.store}

	s := server.NewMCPServer("engram", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("memory_add",
		mcp.WithDescription("Add a memory record, optionally indexed for semantic search"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Record key, e.g. preference:color")),
		mcp.WithString("value", mcp.Description("Record value as a JSON string")),
		mcp.WithString("type", mcp.Description("Record type: preference, habit, constraint, experience, error")),
		mcp.WithString("user_id", mcp.Description("User the record belongs to")),
		mcp.WithString("priority", mcp.Description("Priority: high, medium, low")),
		mcp.WithBoolean("index", mcp.Description("Also index the record for semantic search")),
	), m.handleAddMemory)

	s.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Semantic search over memory records"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 5)")),
	), m.handleSearchMemory)

	s.AddTool(mcp.NewTool("memory_list",
		mcp.WithDescription("List memory records for a user"),
		mcp.WithString("user_id", mcp.Description("User to list records for")),
		mcp.WithString("type", mcp.Description("Filter by type")),
		mcp.WithBoolean("active", mcp.Description("Only active records")),
	), m.handleListMemory)

	s.AddTool(mcp.NewTool("memory_learn",
		mcp.WithDescription("Extract memory records from a conversation"),
		mcp.WithArray("messages", mcp.Required(), mcp.Description("Conversation as [{role, content}, ...]")),
		mcp.WithString("user_id", mcp.Description("User the records belong to")),
		mcp.WithBoolean("index", mcp.Description("Also index learned records")),
	), m.handleLearnMemory)

	s.AddTool(mcp.NewTool("memory_smart_forget",
		mcp.WithDescription("Run a decay-based cleanup pass and delete faded records"),
		mcp.WithString("user_id", mcp.Description("Restrict the pass to one user")),
		mcp.WithString("type", mcp.Description("Restrict the pass to one type")),
	), m.handleSmartForgetMemory)

	s.AddTool(mcp.NewTool("memory_consolidate",
		mcp.WithDescription("Collapse duplicate records for a key, keeping the strongest"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to consolidate")),
		mcp.WithString("user_id", mcp.Description("User the records belong to")),
	), m.handleConsolidateMemory)

	s.AddTool(mcp.NewTool("memory_review",
		mcp.WithDescription("List records whose retention is fading"),
		mcp.WithString("user_id", mcp.Description("User to review records for")),
	), m.handleReviewMemory)

	return server.ServeStdio(s)
}
