// Package mock provides a test double for the extractor package interface.
//
// Grammar writes a small deterministic rule file so cache and eviction
// tests can assert on real on-disk files.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/adaptran/pkg/provider/extractor"
)

// Instance records a single invocation of Extractor.AddInstance.
type Instance struct {
	Source    string
	Target    string
	Alignment string
	CtxName   string
}

// GrammarCall records a single invocation of Extractor.Grammar.
type GrammarCall struct {
	Sentence string
	CtxName  string
	OutFile  string
}

// Extractor is a mock implementation of extractor.Extractor.
type Extractor struct {
	mu sync.Mutex

	// GrammarErr, if non-nil, is returned from Grammar (no file written).
	GrammarErr error

	// AddInstanceErr, if non-nil, is returned from AddInstance.
	AddInstanceErr error

	GrammarCalls []GrammarCall
	Instances    []Instance
	Dropped      []string
	Closed       bool
}

var _ extractor.Extractor = (*Extractor)(nil)

// Grammar records the call and writes one fake rule to outFile.
func (e *Extractor) Grammar(_ context.Context, sentence, ctxName, outFile string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.GrammarCalls = append(e.GrammarCalls, GrammarCall{Sentence: sentence, CtxName: ctxName, OutFile: outFile})
	if e.GrammarErr != nil {
		return e.GrammarErr
	}
	rule := fmt.Sprintf("[X] ||| %s ||| %s ||| 0\n", sentence, sentence)
	return os.WriteFile(outFile, []byte(rule), 0o600)
}

// AddInstance records the instance.
func (e *Extractor) AddInstance(_ context.Context, source, target, alignment, ctxName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.AddInstanceErr != nil {
		return e.AddInstanceErr
	}
	e.Instances = append(e.Instances, Instance{Source: source, Target: target, Alignment: alignment, CtxName: ctxName})
	return nil
}

// DropContext records the dropped context name.
func (e *Extractor) DropContext(_ context.Context, ctxName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Dropped = append(e.Dropped, ctxName)
	return nil
}

// Close records that the extractor was stopped.
func (e *Extractor) Close(bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// InstancesFor returns the instances recorded for ctxName, in order.
func (e *Extractor) InstancesFor(ctxName string) []Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Instance
	for _, in := range e.Instances {
		if in.CtxName == ctxName {
			out = append(out, in)
		}
	}
	return out
}
