package turn

// Log is an ordered, append-only sequence of turns with a derived total
// token count. Insertion order is significant and never re-sorted.
//
// The total is always recomputed from the turns themselves, never kept
// as an incremental delta: Replace re-sums from scratch, which guards
// against silent drift if a caller ever mutates turns out of band.
//
// Log is not safe for concurrent use; the context manager serializes
// access per context id.
type Log struct {
	turns []Turn
	total int
}

// NewLog builds a log from an existing turn sequence (e.g. loaded from
// the store), recomputing the total from the turns' own counts.
func NewLog(turns []Turn) *Log {
	l := &Log{}
	l.Replace(turns)
	return l
}

// Append adds a turn at the tail. The turn's token count must already
// have been assigned by the token accountant; the log does not count.
func (l *Log) Append(t Turn) {
	l.turns = append(l.turns, t)
	l.total += t.TokenCount
}

// Replace atomically swaps the entire sequence and recomputes the total
// from scratch. Used by compaction and by reset.
func (l *Log) Replace(newTurns []Turn) {
	l.turns = make([]Turn, len(newTurns))
	copy(l.turns, newTurns)
	l.total = sumTokens(l.turns)
}

// Window returns the last n turns in original order. n is clamped to
// the available length; a non-positive n yields an empty slice.
func (l *Log) Window(n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	if n > len(l.turns) {
		n = len(l.turns)
	}
	out := make([]Turn, n)
	copy(out, l.turns[len(l.turns)-n:])
	return out
}

// Turns returns a copy of the full sequence in insertion order.
func (l *Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// TotalTokens returns the sum of token counts over the current turns.
func (l *Log) TotalTokens() int {
	return l.total
}

// Len returns the number of turns in the log.
func (l *Log) Len() int {
	return len(l.turns)
}

// sumTokens re-derives the total from the turns' own counts.
func sumTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += t.TokenCount
	}
	return total
}
