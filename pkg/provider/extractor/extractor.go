// Package extractor defines the contract for the online grammar extractor.
//
// One extractor instance serves all translation contexts. It keeps online
// bitext statistics per context name: rules extracted for a context reflect
// every instance previously added for that context. The extractor is NOT
// safe for concurrent use — the translator serializes every call through a
// single ordered lock.
package extractor

import "context"

// Extractor extracts per-sentence translation grammars and accumulates
// incremental training data.
type Extractor interface {
	// Grammar extracts rules for sentence using ctxName's accumulated
	// statistics and writes them, one rule per line, to outFile.
	Grammar(ctx context.Context, sentence, ctxName, outFile string) error

	// AddInstance folds one aligned sentence pair into ctxName's online
	// statistics.
	AddInstance(ctx context.Context, source, target, alignment, ctxName string) error

	// DropContext discards all online statistics held for ctxName.
	DropContext(ctx context.Context, ctxName string) error

	// Close stops the extractor. A forced close tolerates child errors.
	Close(force bool) error
}
