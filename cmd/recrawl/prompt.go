package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/recrawl"
)

var _ recrawl.Decider = (*promptDecider)(nil)

// promptDecider asks the operator what to do with an interrupted task.
// Prompts are serialized so concurrent tasks do not interleave on stdin.
type promptDecider struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func newPromptDecider(in io.Reader, out io.Writer) *promptDecider {
	return &promptDecider{in: bufio.NewReader(in), out: out}
}

// Decide prompts until it reads a valid answer. End of input stashes.
func (d *promptDecider) Decide(ctx context.Context, spider string) (recrawl.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return recrawl.DecisionStash, nil
		}
		fmt.Fprintf(d.out, "%s interrupted: [r]esume, [d]iscard or [s]tash? ", spider)
		line, err := d.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "" {
			if decision, perr := recrawl.ParseDecision(answer); perr == nil {
				return decision, nil
			}
			fmt.Fprintf(d.out, "unknown answer %q\n", answer)
		}
		if err == io.EOF {
			return recrawl.DecisionStash, nil
		} else if err != nil {
			return 0, fmt.Errorf("read answer: %w", err)
		}
	}
}
