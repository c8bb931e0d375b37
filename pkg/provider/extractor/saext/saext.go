// Package saext runs a suffix-array grammar extractor as a line-oriented
// child process.
//
// The child loads its corpus and models from an extractor configuration
// file and then serves commands, one response line per request:
//
//	EXTRACT ||| CTX ||| OUTFILE ||| SENTENCE   → OK (rules written to OUTFILE)
//	LEARN ||| CTX ||| SOURCE ||| TARGET ||| ALIGNMENT → OK
//	DROP ||| CTX                               → OK
//
// Having the child write the grammar file keeps the exchange single-line no
// matter how many rules a sentence produces.
package saext

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/adaptran/pkg/lineproc"
	"github.com/MrWong99/adaptran/pkg/provider/extractor"
)

// Extractor drives one grammar extractor child process.
//
// Not safe for concurrent use; the translator's extractor lock serializes
// every call.
type Extractor struct {
	proc *lineproc.Proc
}

var _ extractor.Extractor = (*Extractor)(nil)

// Start launches executable with the (already path-patched) extractor
// config file and online mode enabled.
func Start(executable, configFile string) (*Extractor, error) {
	proc, err := lineproc.Start(executable, []string{"-c", configFile, "--online"})
	if err != nil {
		return nil, fmt.Errorf("saext: launch extractor: %w", err)
	}
	return &Extractor{proc: proc}, nil
}

// Grammar extracts rules for sentence into outFile.
func (e *Extractor) Grammar(ctx context.Context, sentence, ctxName, outFile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.exchange(strings.Join([]string{"EXTRACT", ctxName, outFile, sentence}, " ||| "))
}

// AddInstance folds one aligned pair into ctxName's online statistics.
func (e *Extractor) AddInstance(ctx context.Context, source, target, alignment, ctxName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.exchange(strings.Join([]string{"LEARN", ctxName, source, target, alignment}, " ||| "))
}

// DropContext discards ctxName's online statistics.
func (e *Extractor) DropContext(ctx context.Context, ctxName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.exchange("DROP ||| " + ctxName)
}

// Close stops the extractor child.
func (e *Extractor) Close(force bool) error {
	return e.proc.Close(force)
}

func (e *Extractor) exchange(request string) error {
	resp, err := e.proc.Exchange(request)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return fmt.Errorf("saext: extractor rejected request: %s", resp)
	}
	return nil
}
