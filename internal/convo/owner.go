package convo

// Session is an owner record for a chat session. Braid only models the
// columns it needs: identity plus the denormalized last-known usage
// fields maintained after compaction, so session views can show "last
// summary" without joining into context internals.
type Session struct {
	ID              string
	Title           string
	LastSummary     *string
	LastTotalTokens int
	LastPercentUsed float64
	CreatedAt       int64
	UpdatedAt       int64
}

// Project is an owner record for a project task, with the same
// denormalized usage fields as Session.
type Project struct {
	ID              string
	Name            string
	Path            string
	LastSummary     *string
	LastTotalTokens int
	LastPercentUsed float64
	CreatedAt       int64
	UpdatedAt       int64
}
