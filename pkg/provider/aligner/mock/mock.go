// Package mock provides a test double for the aligner package interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/adaptran/pkg/provider/aligner"
)

// AlignCall records a single invocation of Aligner.Align.
type AlignCall struct {
	Source string
	Target string
}

// Aligner is a mock implementation of aligner.Aligner.
type Aligner struct {
	mu sync.Mutex

	// AlignFn, if non-nil, computes the alignment. The default returns
	// "0-0".
	AlignFn func(source, target string) (string, error)

	// AlignCalls records every call to Align.
	AlignCalls []AlignCall

	Closed bool
}

var _ aligner.Aligner = (*Aligner)(nil)

// Align records the call and returns AlignFn's result or "0-0".
func (a *Aligner) Align(_ context.Context, source, target string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AlignCalls = append(a.AlignCalls, AlignCall{Source: source, Target: target})
	if a.AlignFn != nil {
		return a.AlignFn(source, target)
	}
	return "0-0", nil
}

// Close records that the aligner was stopped.
func (a *Aligner) Close(bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Closed = true
	return nil
}
