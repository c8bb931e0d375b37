package translator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MrWong99/adaptran/internal/modelcfg"
	"github.com/MrWong99/adaptran/internal/refpipe"
	"github.com/MrWong99/adaptran/pkg/provider/decoder"
)

// trainingPair is one incremental training event. History is append-only
// for the lifetime of a context; dropping the context destroys it.
type trainingPair struct {
	source    string
	target    string
	alignment string
}

// Context is one adaptive translation session. All fields are mutated only
// under the context's ordered lock in the translator's lock registry.
type Context struct {
	name string

	// history holds every training pair applied to this context, in
	// insertion order.
	history []trainingPair

	// grammars maps source sentences to cached on-disk grammar files;
	// order tracks cache insertion order for FIFO eviction. An entry may
	// exist in order but not in grammars: learn pre-evicts the map entry
	// and leaves order to be reconciled at eviction time.
	grammars map[string]string
	order    []string

	dec *ctxDecoder
}

// invalidateGrammar removes source's cached grammar entry and its file.
// The source stays in the insertion-order queue; eviction tolerates the
// absent key.
func (c *Context) invalidateGrammar(source string) {
	path, ok := c.grammars[source]
	if !ok {
		return
	}
	delete(c.grammars, source)
	if err := os.Remove(path); err != nil {
		slog.Warn("failed to remove stale grammar", "ctx", c.name, "file", path, "err", err)
	}
}

// ctxDecoder bundles the per-context decoder resources: a temp directory,
// the reference pipe, and the decoder child process.
type ctxDecoder struct {
	dir string
	ref *refpipe.Pipe
	dec decoder.Decoder
}

// newCtxDecoder materializes the decoder bundle for a context: temp dir,
// initialized reference pipe, patched decoder config, and the launched
// decoder child. On any failure, everything already created is torn down
// and the context is not admitted to the registry.
func (t *Translator) newCtxDecoder(name string) (*ctxDecoder, error) {
	dir := filepath.Join(t.tmpRoot, "decoder."+name)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	ref, err := refpipe.Create(filepath.Join(dir, "ref.fifo"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	iniPath, err := modelcfg.WriteDecoderConfig(t.cfg.Model.ConfigDir, dir, ref.Path())
	if err != nil {
		ref.Close()
		os.RemoveAll(dir)
		return nil, err
	}

	weights := filepath.Join(t.cfg.Model.ConfigDir, modelcfg.WeightsFile)
	dec, err := t.deps.Decoder(iniPath, weights)
	if err != nil {
		ref.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("launch decoder: %w", err)
	}

	return &ctxDecoder{dir: dir, ref: ref, dec: dec}, nil
}

// close stops the decoder child, closes the reference pipe, and removes
// the temp subtree. Under force, child errors are logged rather than
// returned.
func (cd *ctxDecoder) close(force bool) error {
	var errs []error
	if err := cd.dec.Close(force); err != nil {
		if force {
			slog.Warn("decoder close error", "dir", cd.dir, "err", err)
		} else {
			errs = append(errs, err)
		}
	}
	if err := cd.ref.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(cd.dir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
