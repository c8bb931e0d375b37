// Package decoder defines the contract for a per-context translation
// decoder with online discriminative learning.
//
// A Decoder is owned by exactly one translation context and is driven only
// while that context's lock is held, so implementations do not need to be
// safe for concurrent use.
package decoder

import "context"

// Decoder is a running decoder instance bound to one context's patched
// configuration and weights.
type Decoder interface {
	// Decode translates source using the rules in grammarFile and returns
	// the hypothesis.
	Decode(ctx context.Context, source, grammarFile string) (string, error)

	// Update runs one online learning step on (source, grammarFile, target)
	// and returns the learner's log line.
	Update(ctx context.Context, source, grammarFile, target string) (string, error)

	// Weights returns the current feature weights as an opaque string.
	Weights(ctx context.Context) (string, error)

	// SetWeights replaces the feature weights from an opaque string
	// previously produced by Weights.
	SetWeights(ctx context.Context, weights string) error

	// Close stops the decoder process. A graceful close waits for the child
	// to exit; a forced close kills it.
	Close(force bool) error
}

// Launcher starts a new Decoder from a patched decoder configuration file
// and an initial weights file. The translator calls it once per context.
type Launcher func(configFile, weightsFile string) (Decoder, error)
