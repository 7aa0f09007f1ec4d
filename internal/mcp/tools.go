package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Every tool addresses a context through its owner:
// exactly one of session_id or project_id.

var contextGetToolDef = mcp.NewTool("context_get",
	mcp.WithDescription(
		"Get the conversation context for a session or project, creating an empty one "+
			"on first use. Returns the full turn log, summary text, and token usage.",
	),
	mcp.WithString("session_id",
		mcp.Description("Session owner id (mutually exclusive with project_id)"),
	),
	mcp.WithString("project_id",
		mcp.Description("Project owner id (mutually exclusive with session_id)"),
	),
)

var contextAppendToolDef = mcp.NewTool("context_append",
	mcp.WithDescription(
		"Append a turn to the owner's conversation context. Counts the turn's tokens, "+
			"compacts older history into a summary when the budget threshold is crossed, "+
			"and returns updated usage. A failed compaction is reported as a warning; "+
			"the turn is still appended.",
	),
	mcp.WithString("session_id",
		mcp.Description("Session owner id (mutually exclusive with project_id)"),
	),
	mcp.WithString("project_id",
		mcp.Description("Project owner id (mutually exclusive with session_id)"),
	),
	mcp.WithString("role",
		mcp.Required(),
		mcp.Description("Turn role: user, assistant, or system"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Turn content text"),
	),
)

var contextUsageToolDef = mcp.NewTool("context_usage",
	mcp.WithDescription(
		"Report token usage for the owner's conversation context: total tokens, budget, "+
			"percentage used, and whether the compaction threshold has been reached.",
	),
	mcp.WithString("session_id",
		mcp.Description("Session owner id (mutually exclusive with project_id)"),
	),
	mcp.WithString("project_id",
		mcp.Description("Project owner id (mutually exclusive with session_id)"),
	),
)

var contextResetToolDef = mcp.NewTool("context_reset",
	mcp.WithDescription(
		"Clear the owner's conversation context: all turns and the summary are discarded, "+
			"the token total drops to zero. The context id and budget are kept.",
	),
	mcp.WithString("session_id",
		mcp.Description("Session owner id (mutually exclusive with project_id)"),
	),
	mcp.WithString("project_id",
		mcp.Description("Project owner id (mutually exclusive with session_id)"),
	),
)

var sessionCreateToolDef = mcp.NewTool("session_create",
	mcp.WithDescription(
		"Create a chat session owner record. A session owns at most one conversation "+
			"context, created lazily on first context_get or context_append.",
	),
	mcp.WithString("id",
		mcp.Description("Session id; generated when omitted"),
	),
	mcp.WithString("title",
		mcp.Required(),
		mcp.Description("Human-readable session title"),
	),
)

var projectCreateToolDef = mcp.NewTool("project_create",
	mcp.WithDescription(
		"Create a project owner record. A project owns at most one conversation "+
			"context, created lazily on first context_get or context_append.",
	),
	mcp.WithString("id",
		mcp.Description("Project id; generated when omitted"),
	),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Project name"),
	),
	mcp.WithString("path",
		mcp.Description("Project root path, for display"),
	),
)
