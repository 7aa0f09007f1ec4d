package contextmgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jlindqvist/braid/internal/errors"
	"github.com/jlindqvist/braid/internal/llm"
	"github.com/jlindqvist/braid/internal/tokens"
	"github.com/jlindqvist/braid/internal/turn"
)

// compactor folds the older portion of a turn log into one synthetic
// summary turn, keeping a fixed-size recency window verbatim.
type compactor struct {
	client      llm.Client
	accountant  *tokens.Accountant
	window      int
	temperature float64
	timeout     time.Duration
}

// compactionResult records what one compaction pass did.
type compactionResult struct {
	Skipped        bool
	SummaryText    string
	TokensBefore   int
	TokensAfter    int
	TurnsCompacted int
}

// compact summarizes l's full sequence and replaces it with the summary
// turn plus the recency window. On any generation failure the log is
// left untouched and a GENERATION_FAILED error is returned; the caller
// keeps the over-budget log and retries on a later threshold crossing.
//
// When the log is already at or below the window size there is nothing
// meaningful to summarize away: the pass is a no-op that still clears
// the trigger.
func (e *compactor) compact(ctx context.Context, l *turn.Log) (compactionResult, error) {
	before := l.TotalTokens()

	if l.Len() <= e.window {
		return compactionResult{Skipped: true, TokensBefore: before, TokensAfter: before}, nil
	}

	// A prior summary turn at the head is just another turn in the
	// input: long-lived contexts fold summaries into new summaries.
	prompt := buildSummaryPrompt(turn.Transcript(l.Turns()))

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.client.Generate(genCtx, prompt, llm.GenerateOptions{Temperature: e.temperature})
	if err != nil {
		return compactionResult{}, errors.NewGenerationFailed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return compactionResult{}, errors.NewGenerationFailed(nil)
	}

	summaryTurn, err := turn.New(turn.RoleSummary, text)
	if err != nil {
		return compactionResult{}, errors.NewInternal(err)
	}
	count, _ := e.accountant.Count(ctx, []turn.Turn{summaryTurn})
	summaryTurn = summaryTurn.WithTokenCount(count)

	recent := l.Window(e.window)
	compacted := l.Len() - len(recent)

	newTurns := make([]turn.Turn, 0, len(recent)+1)
	newTurns = append(newTurns, summaryTurn)
	newTurns = append(newTurns, recent...)
	l.Replace(newTurns)

	return compactionResult{
		SummaryText:    text,
		TokensBefore:   before,
		TokensAfter:    l.TotalTokens(),
		TurnsCompacted: compacted,
	}, nil
}

// buildSummaryPrompt asks for a chronological digest of the transcript
// at roughly a third of its length, with no meta-commentary.
func buildSummaryPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation so it can replace the original history.\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- Preserve key facts, decisions, and any technical specifics (names, paths, values) referenced later in the conversation.\n")
	b.WriteString("- Keep chronological order.\n")
	b.WriteString("- Target roughly 30-40% of the original length.\n")
	b.WriteString("- Output only the summary itself: no preamble, no commentary about summarizing.\n\n")
	fmt.Fprintf(&b, "Conversation:\n%s", transcript)
	return b.String()
}
