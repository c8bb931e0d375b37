package translator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// saveTerminator closes a state stream. Everything between the weights line
// and this marker is training history.
const saveTerminator = "EOF"

// tripleSeparator joins the fields of one history line.
const tripleSeparator = " ||| "

// oovToken is the sentinel sentence decoded while replaying a loaded
// history. It is out of vocabulary by construction, so the decode is cheap;
// its only purpose is to make the decoder consume the pending reference
// line, replaying the adaptive LM's learning schedule exactly.
const oovToken = "OOV"

// maxLineSize bounds a single line of a state stream.
const maxLineSize = 1 << 20

// Save writes the named context's state to filename.
func (t *Translator) Save(ctx context.Context, ctxName, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("translator: create save file: %w", err)
	}
	if err := t.SaveTo(ctx, ctxName, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveTo writes the named context's state to w: one line of decoder
// weights, one line per training pair, and a terminator line.
func (t *Translator) SaveTo(ctx context.Context, ctxName string, w io.Writer) error {
	lk := t.lock(ctxName)
	lk.Lock()
	defer lk.Unlock()

	c, err := t.lazyCtx(ctx, ctxName)
	if err != nil {
		return err
	}

	weights, err := c.dec.dec.Weights(ctx)
	if err != nil {
		return fmt.Errorf("translator: read weights of %q: %w", ctxName, err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, weights)
	for _, p := range c.history {
		fmt.Fprintln(bw, strings.Join([]string{p.source, p.target, p.alignment}, tripleSeparator))
	}
	fmt.Fprintln(bw, saveTerminator)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("translator: write state of %q: %w", ctxName, err)
	}

	slog.Info("context saved", "ctx", ctxName, "history", len(c.history))
	return nil
}

// Load reads the named context's state from filename.
func (t *Translator) Load(ctx context.Context, ctxName, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("translator: open save file: %w", err)
	}
	defer f.Close()
	return t.LoadFrom(ctx, ctxName, f)
}

// LoadFrom restores a context's state from r. The context must be fresh
// (no training history); otherwise nothing changes and [ErrNotFresh] is
// returned. Any failure mid-load forcefully drops and recreates the
// context before the lock is released, so no partially-loaded state is
// ever exposed.
func (t *Translator) LoadFrom(ctx context.Context, ctxName string, r io.Reader) error {
	lk := t.lock(ctxName)
	lk.Lock()
	defer lk.Unlock()

	c, err := t.lazyCtx(ctx, ctxName)
	if err != nil {
		return err
	}
	if len(c.history) != 0 {
		return ErrNotFresh
	}

	if err := t.loadInto(ctx, c, r); err != nil {
		slog.Warn("load failed — restarting context", "ctx", ctxName, "err", err)
		if dropErr := t.dropLocked(ctx, ctxName, true); dropErr != nil {
			slog.Warn("drop during load recovery", "ctx", ctxName, "err", dropErr)
		}
		if _, initErr := t.lazyCtx(ctx, ctxName); initErr != nil {
			return errors.Join(err, initErr)
		}
		return err
	}

	slog.Info("context loaded", "ctx", ctxName, "history", len(c.history))
	return nil
}

// loadInto replays a state stream into c. The first line restores decoder
// weights; each following line up to the terminator is one training pair,
// which is appended to history, fed to the extractor, and replayed through
// the reference stream via a sentinel decode.
func (t *Translator) loadInto(ctx context.Context, c *Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("translator: load: read weights: %w", err)
		}
		return errors.New("translator: load: missing weights line")
	}
	if err := c.dec.dec.SetWeights(ctx, sc.Text()); err != nil {
		return fmt.Errorf("translator: load: set weights: %w", err)
	}

	// The sentinel decodes need a grammar file; an empty one keeps the
	// decoder from learning rules while still consuming the reference.
	emptyGrammar := filepath.Join(c.dec.dir, "grammar.empty")
	if err := os.WriteFile(emptyGrammar, nil, 0o600); err != nil {
		return fmt.Errorf("translator: load: write sentinel grammar: %w", err)
	}

	for sc.Scan() {
		line := sc.Text()
		if line == saveTerminator {
			return nil
		}
		p, err := parseTriple(line)
		if err != nil {
			return err
		}

		c.history = append(c.history, p)

		t.extractorMu.Lock()
		err = t.deps.Extractor.AddInstance(ctx, p.source, p.target, p.alignment, c.name)
		t.extractorMu.Unlock()
		if err != nil {
			return fmt.Errorf("translator: load: add instance: %w", err)
		}

		// Replay the adaptive LM schedule: one decode consumes the
		// pending reference, then target becomes the next reference.
		if _, err := c.dec.dec.Decode(ctx, oovToken, emptyGrammar); err != nil {
			return fmt.Errorf("translator: load: sentinel decode: %w", err)
		}
		if err := c.dec.ref.WriteRef(p.target); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("translator: load: read state: %w", err)
	}
	return fmt.Errorf("translator: load: state stream ended before %s", saveTerminator)
}

func parseTriple(line string) (trainingPair, error) {
	fields := strings.Split(line, tripleSeparator)
	if len(fields) != 3 {
		return trainingPair{}, fmt.Errorf("translator: load: malformed history line %q", line)
	}
	return trainingPair{source: fields[0], target: fields[1], alignment: fields[2]}, nil
}
