// Package mock provides a test double for the tokenizer package interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/adaptran/pkg/provider/tokenizer"
)

// Tokenizer is a mock implementation of tokenizer.Tokenizer. The default
// behaviour is the identity rewrite; set Prefix to make the mock's output
// distinguishable from its input in assertions.
type Tokenizer struct {
	mu sync.Mutex

	// Prefix is prepended to every processed line.
	Prefix string

	// ProcessErr, if non-nil, is returned from Process.
	ProcessErr error

	// Lines records every line passed to Process.
	Lines []string

	Closed bool
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Process records the line and returns Prefix+line.
func (t *Tokenizer) Process(_ context.Context, line string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Lines = append(t.Lines, line)
	if t.ProcessErr != nil {
		return "", t.ProcessErr
	}
	return t.Prefix + line, nil
}

// Close records that the tokenizer was stopped.
func (t *Tokenizer) Close(bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}
