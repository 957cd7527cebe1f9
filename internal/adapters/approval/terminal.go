// Package approval implements the interactive ApprovalSource (spec.md
// section 6): a terminal prompt presenting risk/cost and the proposed
// recommendations, falling back to automatic rejection when stdin isn't
// a real terminal. Grounded on the teacher's CLI confirmation-prompt
// idiom (bufio.Scanner over os.Stdin, gated by an isatty check before
// ever blocking on input).
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

// TerminalSource prompts a human on in/out. If in is not a TTY, every
// request is rejected immediately rather than blocking a non-interactive
// run forever.
type TerminalSource struct {
	in     io.Reader
	out    io.Writer
	isatty func() bool
}

// NewTerminalSource returns a TerminalSource reading os.Stdin / writing
// os.Stdout, auto-detecting TTY-ness.
func NewTerminalSource() *TerminalSource {
	return &TerminalSource{
		in:     os.Stdin,
		out:    os.Stdout,
		isatty: func() bool { return isatty.IsTerminal(os.Stdin.Fd()) },
	}
}

// Request satisfies approval.Source.
func (t *TerminalSource) Request(ctx context.Context, recs []types.Recommendation, risk float64, costCents int) ([]types.Recommendation, bool, error) {
	if !t.isatty() {
		fmt.Fprintln(t.out, "approval: stdin is not a terminal, rejecting by default")
		return nil, true, nil
	}

	fmt.Fprintf(t.out, "\n%d recommendation(s) pending approval (risk=%.1f, estimated cost=%d cents):\n", len(recs), risk, costCents)
	for i, r := range recs {
		fmt.Fprintf(t.out, "  [%d] %s (%s, impact=%d effort=%d)\n", i+1, r.Title, r.Dimension, r.Impact, r.Effort)
	}
	fmt.Fprint(t.out, "Approve all? [y/N/skip]: ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(t.in)
		if scanner.Scan() {
			ch <- result{line: scanner.Text()}
			return
		}
		ch <- result{err: scanner.Err()}
	}()

	select {
	case <-ctx.Done():
		return nil, true, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, true, res.err
		}
		answer := strings.ToLower(strings.TrimSpace(res.line))
		switch answer {
		case "y", "yes":
			return recs, false, nil
		case "skip":
			return nil, true, nil
		default:
			return nil, true, nil
		}
	}
}
