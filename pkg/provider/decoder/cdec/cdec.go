// Package cdec runs a cdec MIRA decoder as a line-oriented child process.
//
// The child speaks the realtime stdio protocol:
//
//	<seg grammar="PATH"> SOURCE </seg>                     decode
//	LEARN ||| <seg grammar="PATH"> SOURCE </seg> ||| REF   online update
//	WEIGHTS ||| GET                                        dump weights
//	WEIGHTS ||| SET ||| w1=v1 w2=v2 …                      load weights
//
// Every request line yields exactly one response line.
package cdec

import (
	"context"
	"fmt"

	"github.com/MrWong99/adaptran/pkg/lineproc"
	"github.com/MrWong99/adaptran/pkg/provider/decoder"
)

// Decoder drives one MIRA decoder child process.
//
// Not safe for concurrent use; the owning context's lock serializes access.
type Decoder struct {
	proc *lineproc.Proc
}

var _ decoder.Decoder = (*Decoder)(nil)

// NewLauncher returns a [decoder.Launcher] that starts executable with the
// standard realtime arguments: single-pass MIRA (-t), hypothesis-only output
// (-o 2), decoder config (-c) and weights (-w).
func NewLauncher(executable string) decoder.Launcher {
	return func(configFile, weightsFile string) (decoder.Decoder, error) {
		proc, err := lineproc.Start(executable, []string{
			"-c", configFile,
			"-w", weightsFile,
			"-t",
			"-o", "2",
		})
		if err != nil {
			return nil, fmt.Errorf("cdec: launch decoder: %w", err)
		}
		return &Decoder{proc: proc}, nil
	}
}

// Decode translates source with the given sentence-level grammar.
func (d *Decoder) Decode(ctx context.Context, source, grammarFile string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.proc.Exchange(seg(source, grammarFile))
}

// Update performs one MIRA update against target and returns the learner's
// log line.
func (d *Decoder) Update(ctx context.Context, source, grammarFile, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.proc.Exchange(fmt.Sprintf("LEARN ||| %s ||| %s", seg(source, grammarFile), target))
}

// Weights dumps the decoder's current feature weights.
func (d *Decoder) Weights(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.proc.Exchange("WEIGHTS ||| GET")
}

// SetWeights replaces the decoder's feature weights.
func (d *Decoder) SetWeights(ctx context.Context, weights string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.proc.Exchange("WEIGHTS ||| SET ||| " + weights)
	return err
}

// Close stops the decoder child.
func (d *Decoder) Close(force bool) error {
	return d.proc.Close(force)
}

func seg(source, grammarFile string) string {
	return fmt.Sprintf("<seg grammar=%q> %s </seg>", grammarFile, source)
}
