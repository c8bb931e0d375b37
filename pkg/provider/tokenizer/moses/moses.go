// Package moses runs a Moses-style tokenizer or detokenizer script as a
// line-oriented child process. The scripts honor the one-line-in,
// one-line-out contract when run with -q (quiet) and -b (unbuffered).
package moses

import (
	"context"
	"fmt"

	"github.com/MrWong99/adaptran/pkg/lineproc"
	"github.com/MrWong99/adaptran/pkg/provider/tokenizer"
)

// Tokenizer drives one tokenizer/detokenizer child.
//
// Not safe for concurrent use; the translator serializes access through an
// ordered lock.
type Tokenizer struct {
	proc *lineproc.Proc
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Start launches command (a space-separated command line, e.g.
// "perl tokenizer.perl -q -b -l es").
func Start(command string) (*Tokenizer, error) {
	proc, err := lineproc.StartCommand(command)
	if err != nil {
		return nil, fmt.Errorf("moses: start tokenizer: %w", err)
	}
	return &Tokenizer{proc: proc}, nil
}

// Process sends one line through the child and returns its rewrite.
func (t *Tokenizer) Process(ctx context.Context, line string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.proc.Exchange(line)
}

// Close stops the child.
func (t *Tokenizer) Close(force bool) error {
	return t.proc.Close(force)
}
