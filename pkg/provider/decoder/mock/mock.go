// Package mock provides test doubles for the decoder package interfaces.
//
// Decoder echoes a deterministic hypothesis by default and records every
// call, so tests can assert both the arguments the translator passed and
// the order of decode/update traffic. Weights round-trip through SetWeights
// so save/load tests can verify state restoration.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/adaptran/pkg/provider/decoder"
)

// DecodeCall records a single invocation of Decoder.Decode.
type DecodeCall struct {
	Source      string
	GrammarFile string
}

// UpdateCall records a single invocation of Decoder.Update.
type UpdateCall struct {
	Source      string
	GrammarFile string
	Target      string
}

// Decoder is a mock implementation of decoder.Decoder.
type Decoder struct {
	mu sync.Mutex

	// DecodeFn, if non-nil, computes the hypothesis. The default prefixes
	// the source with "hyp: ".
	DecodeFn func(source, grammarFile string) (string, error)

	// UpdateErr, if non-nil, is returned from Update.
	UpdateErr error

	// SetWeightsErr, if non-nil, is returned from SetWeights.
	SetWeightsErr error

	// CurrentWeights is returned by Weights and replaced by SetWeights.
	CurrentWeights string

	DecodeCalls []DecodeCall
	UpdateCalls []UpdateCall
	Closed      bool
	ClosedForce bool
}

var _ decoder.Decoder = (*Decoder)(nil)

// Decode records the call and returns DecodeFn's result or "hyp: "+source.
func (d *Decoder) Decode(_ context.Context, source, grammarFile string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DecodeCalls = append(d.DecodeCalls, DecodeCall{Source: source, GrammarFile: grammarFile})
	if d.DecodeFn != nil {
		return d.DecodeFn(source, grammarFile)
	}
	return "hyp: " + source, nil
}

// Update records the call and returns a canned MIRA log line.
func (d *Decoder) Update(_ context.Context, source, grammarFile, target string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.UpdateCalls = append(d.UpdateCalls, UpdateCall{Source: source, GrammarFile: grammarFile, Target: target})
	if d.UpdateErr != nil {
		return "", d.UpdateErr
	}
	return "mira update ok", nil
}

// Weights returns CurrentWeights.
func (d *Decoder) Weights(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CurrentWeights, nil
}

// SetWeights replaces CurrentWeights.
func (d *Decoder) SetWeights(_ context.Context, weights string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SetWeightsErr != nil {
		return d.SetWeightsErr
	}
	d.CurrentWeights = weights
	return nil
}

// Close records that the decoder was stopped.
func (d *Decoder) Close(force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	d.ClosedForce = d.ClosedForce || force
	return nil
}

// Calls returns a snapshot of the decode calls made so far.
func (d *Decoder) Calls() []DecodeCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DecodeCall(nil), d.DecodeCalls...)
}

// Launcher is a mock decoder.Launcher that records every launch and hands
// out the decoders from Decoders in order (or fresh defaults once the list
// is exhausted).
type Launcher struct {
	mu sync.Mutex

	// LaunchErr, if non-nil, is returned from every launch.
	LaunchErr error

	// Decoders are handed out in order. When empty or exhausted, a new
	// zero-value Decoder is created per launch.
	Decoders []*Decoder

	// Launched records every decoder handed out, in order.
	Launched []*Decoder

	// Configs records the configFile argument of every launch.
	Configs []string
}

// Launch implements decoder.Launcher.
func (l *Launcher) Launch(configFile, weightsFile string) (decoder.Decoder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	var d *Decoder
	if n := len(l.Launched); n < len(l.Decoders) {
		d = l.Decoders[n]
	} else {
		d = &Decoder{}
	}
	l.Launched = append(l.Launched, d)
	l.Configs = append(l.Configs, configFile)
	return d, nil
}

// Last returns the most recently launched decoder, or nil.
func (l *Launcher) Last() *Decoder {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Launched) == 0 {
		return nil
	}
	return l.Launched[len(l.Launched)-1]
}
