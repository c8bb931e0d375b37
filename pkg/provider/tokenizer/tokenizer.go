// Package tokenizer defines the contract for the tokenizer and detokenizer
// used when input normalization is enabled.
//
// Both directions share the same line-in/line-out shape, so one interface
// covers them; the translator holds one instance per direction, each behind
// its own ordered lock, because implementations are not required to be safe
// for concurrent use.
package tokenizer

import "context"

// Tokenizer rewrites one sentence per call: a tokenizer splits raw text
// into tokens, a detokenizer joins tokens back into presentable text.
type Tokenizer interface {
	Process(ctx context.Context, line string) (string, error)

	// Close stops any child process backing the tokenizer.
	Close(force bool) error
}
