// Package translator implements the realtime adaptive translation core: a
// registry of independent translation contexts, each owning a decoder child
// process, a grammar cache, and an incremental training history.
//
// Every public operation is FIFO-ordered per context: two operations on the
// same context run strictly in the order their callers began waiting on
// that context's lock, so a client's LEARN is always applied before its
// subsequent TR. Operations on different contexts run concurrently, meeting
// only at the shared extractor and tokenizer locks.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/adaptran/internal/config"
	"github.com/MrWong99/adaptran/internal/fairlock"
	"github.com/MrWong99/adaptran/internal/observe"
	"github.com/MrWong99/adaptran/pkg/provider/aligner"
	"github.com/MrWong99/adaptran/pkg/provider/decoder"
	"github.com/MrWong99/adaptran/pkg/provider/extractor"
	"github.com/MrWong99/adaptran/pkg/provider/tokenizer"
)

// Client errors. These leave service state untouched.
var (
	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("translator: service is closed")

	// ErrEmptyLearn is returned when a learning event has an empty source
	// or target side.
	ErrEmptyLearn = errors.New("translator: learn requires a non-empty source and target")

	// ErrNotFresh is returned when loading into a context that already has
	// training history.
	ErrNotFresh = errors.New("translator: load requires a fresh context")
)

// Deps holds the worker subsystems the translator coordinates. All of them
// are required; Tokenizer and Detokenizer only when normalization is
// enabled. Metrics may be nil, in which case [observe.DefaultMetrics] is
// used.
type Deps struct {
	Aligner     aligner.Aligner
	Extractor   extractor.Extractor
	Tokenizer   tokenizer.Tokenizer
	Detokenizer tokenizer.Tokenizer
	Decoder     decoder.Launcher
	Metrics     *observe.Metrics
}

// Translator coordinates the worker subsystems into a concurrent,
// multi-context translation service. All exported methods are safe for
// concurrent use.
type Translator struct {
	cfg     *config.Config
	deps    Deps
	tmpRoot string
	metrics *observe.Metrics

	// Shared single-instance workers are not thread-safe; each serializes
	// through its own ordered lock so contending contexts are served in
	// arrival order.
	extractorMu   fairlock.Mutex
	tokenizerMu   fairlock.Mutex
	detokenizerMu fairlock.Mutex

	// mu guards the registry maps and the closed flag, held only for
	// pointer-level updates. Per-context work runs under the context's own
	// ordered lock.
	mu       sync.Mutex
	locks    map[string]*fairlock.Mutex
	contexts map[string]*Context
	closed   bool
}

// New creates a Translator. tmpRoot is the process-wide scratch directory;
// the translator owns it and removes it on Close.
func New(cfg *config.Config, tmpRoot string, deps Deps) (*Translator, error) {
	if deps.Aligner == nil || deps.Extractor == nil || deps.Decoder == nil {
		return nil, errors.New("translator: aligner, extractor, and decoder launcher are required")
	}
	if cfg.Model.Normalize && (deps.Tokenizer == nil || deps.Detokenizer == nil) {
		return nil, errors.New("translator: normalization requires a tokenizer and a detokenizer")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Translator{
		cfg:      cfg,
		deps:     deps,
		tmpRoot:  tmpRoot,
		metrics:  metrics,
		locks:    make(map[string]*fairlock.Mutex),
		contexts: make(map[string]*Context),
	}, nil
}

// lock returns the ordered lock for name, creating it on first use.
func (t *Translator) lock(name string) *fairlock.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lk, ok := t.locks[name]
	if !ok {
		lk = &fairlock.Mutex{}
		t.locks[name] = lk
	}
	return lk
}

// lazyCtx returns the context registered under name, materializing it on
// first use. The caller must hold name's ordered lock.
func (t *Translator) lazyCtx(ctx context.Context, name string) (*Context, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if c, ok := t.contexts[name]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	if strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("translator: invalid context name %q", name)
	}

	// Decoder launch is slow; it runs outside the registry lock. Holders
	// of name's current ordered lock are serialized here. A caller still
	// queued on a lock that Drop removed from the registry is not
	// serialized with holders of the new lock; if both initialize name at
	// once, the second fails when creating the temp directory.
	cd, err := t.newCtxDecoder(name)
	if err != nil {
		return nil, fmt.Errorf("translator: init context %q: %w", name, err)
	}
	c := &Context{
		name:     name,
		grammars: make(map[string]string),
		dec:      cd,
	}

	t.mu.Lock()
	t.contexts[name] = c
	t.mu.Unlock()

	t.metrics.ActiveContexts.Add(ctx, 1)
	slog.Info("context created", "ctx", name, "dir", cd.dir)
	return c, nil
}

// Translate translates sentence within the named context and returns the
// hypothesis. A sentence that is empty after trimming returns the empty
// string without touching the decoder.
func (t *Translator) Translate(ctx context.Context, ctxName, sentence string) (string, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return "", nil
	}

	ctx, span := observe.StartSpan(ctx, "translate")
	defer span.End()
	start := time.Now()

	lk := t.lock(ctxName)
	lk.Lock()
	defer lk.Unlock()

	c, err := t.lazyCtx(ctx, ctxName)
	if err != nil {
		return "", err
	}

	if t.cfg.Model.Normalize {
		if sentence, err = t.tokenize(ctx, sentence); err != nil {
			return "", err
		}
	}

	grammarFile, err := t.grammar(ctx, c, sentence)
	if err != nil {
		return "", err
	}

	hyp, err := c.dec.dec.Decode(ctx, sentence, grammarFile)
	if err != nil {
		return "", fmt.Errorf("translator: decode in %q: %w", ctxName, err)
	}
	// Empty reference: the adaptive LM must not learn before the next
	// translation.
	if err := c.dec.ref.WriteRef(""); err != nil {
		return "", err
	}

	if t.cfg.Model.Normalize {
		if hyp, err = t.detokenize(ctx, hyp); err != nil {
			return "", err
		}
	}

	t.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	observe.Logger(ctx).Debug("translated", "ctx", ctxName, "duration", time.Since(start))
	return hyp, nil
}

// Learn applies one training pair to the named context: forced alignment,
// an online decoder update against the grammar as it existed at translation
// time, the reference stream, the training history, and finally the
// extractor — after which the now-stale cached grammar for source is
// invalidated.
func (t *Translator) Learn(ctx context.Context, ctxName, source, target string) error {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source == "" || target == "" {
		return ErrEmptyLearn
	}

	ctx, span := observe.StartSpan(ctx, "learn")
	defer span.End()
	start := time.Now()

	lk := t.lock(ctxName)
	lk.Lock()
	defer lk.Unlock()

	c, err := t.lazyCtx(ctx, ctxName)
	if err != nil {
		return err
	}

	if t.cfg.Model.Normalize {
		if source, err = t.tokenize(ctx, source); err != nil {
			return err
		}
		if target, err = t.tokenize(ctx, target); err != nil {
			return err
		}
	}

	alignStart := time.Now()
	alignment, err := t.deps.Aligner.Align(ctx, source, target)
	if err != nil {
		return fmt.Errorf("translator: align in %q: %w", ctxName, err)
	}
	t.metrics.AlignDuration.Record(ctx, time.Since(alignStart).Seconds())

	// The update must see the grammar as it existed at translation time,
	// before this pair reaches the extractor.
	grammarFile, err := t.grammar(ctx, c, source)
	if err != nil {
		return err
	}
	miraLog, err := c.dec.dec.Update(ctx, source, grammarFile, target)
	if err != nil {
		return fmt.Errorf("translator: update in %q: %w", ctxName, err)
	}
	observe.Logger(ctx).Debug("mira update", "ctx", ctxName, "log", miraLog)

	// The adaptive LM learns from target before the next decode.
	if err := c.dec.ref.WriteRef(target); err != nil {
		return err
	}

	c.history = append(c.history, trainingPair{source: source, target: target, alignment: alignment})

	t.extractorMu.Lock()
	err = t.deps.Extractor.AddInstance(ctx, source, target, alignment, c.name)
	t.extractorMu.Unlock()
	if err != nil {
		return fmt.Errorf("translator: add instance in %q: %w", ctxName, err)
	}

	c.invalidateGrammar(source)

	t.metrics.LearnDuration.Record(ctx, time.Since(start).Seconds())
	slog.Info("learned", "ctx", ctxName, "alignment", alignment, "history", len(c.history))
	return nil
}

// Drop destroys the named context: its decoder child, reference pipe, temp
// directory, extractor statistics, and registry entries. Dropping an
// unknown context is a no-op. With force, the context lock is bypassed.
func (t *Translator) Drop(ctx context.Context, ctxName string, force bool) error {
	if !force {
		lk := t.lock(ctxName)
		lk.Lock()
		defer lk.Unlock()
	}
	return t.dropLocked(ctx, ctxName, force)
}

// dropLocked destroys the named context. The caller either holds the
// context's ordered lock or is forcing.
func (t *Translator) dropLocked(ctx context.Context, ctxName string, force bool) error {
	t.mu.Lock()
	c, ok := t.contexts[ctxName]
	delete(t.contexts, ctxName)
	delete(t.locks, ctxName)
	t.mu.Unlock()

	if !ok {
		slog.Warn("drop of unknown context", "ctx", ctxName)
		return nil
	}

	var errs []error
	if err := c.dec.close(force); err != nil {
		errs = append(errs, err)
	}

	if !force {
		t.extractorMu.Lock()
	}
	err := t.deps.Extractor.DropContext(ctx, ctxName)
	if !force {
		t.extractorMu.Unlock()
	}
	if err != nil && !force {
		errs = append(errs, fmt.Errorf("translator: drop extractor state for %q: %w", ctxName, err))
	}

	t.metrics.ActiveContexts.Add(ctx, -1)
	slog.Info("context dropped", "ctx", ctxName, "force", force)
	return errors.Join(errs...)
}

// Healthy reports whether the service is accepting commands. Used by the
// readiness probe.
func (t *Translator) Healthy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

// List returns one line naming every live context, sorted
// lexicographically.
func (t *Translator) List() string {
	t.mu.Lock()
	names := make([]string, 0, len(t.contexts))
	for name := range t.contexts {
		names = append(names, name)
	}
	t.mu.Unlock()
	sort.Strings(names)
	return "ctx_name ||| " + strings.Join(names, " ")
}

// Close shuts the service down: every context is dropped, the shared
// workers are stopped, and the scratch directory is removed. A forced close
// skips lock acquisition and tolerates worker errors. Close is idempotent.
func (t *Translator) Close(ctx context.Context, force bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	names := make([]string, 0, len(t.contexts))
	for name := range t.contexts {
		names = append(names, name)
	}
	t.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := t.Drop(ctx, name, force); err != nil {
			errs = append(errs, err)
		}
	}

	if err := t.deps.Aligner.Close(force); err != nil {
		errs = append(errs, err)
	}

	if t.deps.Tokenizer != nil {
		if !force {
			t.tokenizerMu.Lock()
		}
		if err := t.deps.Tokenizer.Close(force); err != nil {
			errs = append(errs, err)
		}
		if !force {
			t.tokenizerMu.Unlock()
		}
	}
	if t.deps.Detokenizer != nil {
		if !force {
			t.detokenizerMu.Lock()
		}
		if err := t.deps.Detokenizer.Close(force); err != nil {
			errs = append(errs, err)
		}
		if !force {
			t.detokenizerMu.Unlock()
		}
	}

	if !force {
		t.extractorMu.Lock()
	}
	if err := t.deps.Extractor.Close(force); err != nil {
		errs = append(errs, err)
	}
	if !force {
		t.extractorMu.Unlock()
	}

	if err := os.RemoveAll(t.tmpRoot); err != nil {
		errs = append(errs, fmt.Errorf("translator: remove scratch dir: %w", err))
	}

	if force {
		for _, err := range errs {
			slog.Warn("forced shutdown error", "err", err)
		}
		return nil
	}
	return errors.Join(errs...)
}

// tokenize runs line through the tokenizer under its ordered lock.
func (t *Translator) tokenize(ctx context.Context, line string) (string, error) {
	t.tokenizerMu.Lock()
	defer t.tokenizerMu.Unlock()
	out, err := t.deps.Tokenizer.Process(ctx, line)
	if err != nil {
		return "", fmt.Errorf("translator: tokenize: %w", err)
	}
	return out, nil
}

// detokenize runs line through the detokenizer under its ordered lock.
func (t *Translator) detokenize(ctx context.Context, line string) (string, error) {
	t.detokenizerMu.Lock()
	defer t.detokenizerMu.Unlock()
	out, err := t.deps.Detokenizer.Process(ctx, line)
	if err != nil {
		return "", fmt.Errorf("translator: detokenize: %w", err)
	}
	return out, nil
}
