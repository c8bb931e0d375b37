// Package refpipe implements the named-pipe reference stream that feeds
// post-translation reference sentences to the decoder's adaptive language
// model.
//
// The core is the single writer; the decoder child is the sole reader. A
// non-empty line tells the decoder to learn from that reference before its
// next decode; an empty line means "do not learn".
package refpipe

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pipe is a FIFO file held open read-write by the core so that creation does
// not block waiting for the decoder to open its end.
type Pipe struct {
	path string
	f    *os.File
}

// Create makes a FIFO at path and opens it. Immediately after opening it
// writes one empty line so the decoder's first decode does not learn from a
// stale reference.
func Create(path string) (*Pipe, error) {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return nil, fmt.Errorf("refpipe: mkfifo %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("refpipe: open %s: %w", path, err)
	}
	p := &Pipe{path: path, f: f}
	if err := p.WriteRef(""); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return p, nil
}

// Path returns the filesystem path of the FIFO.
func (p *Pipe) Path() string { return p.path }

// WriteRef writes one reference line. The empty string writes a bare
// newline, signalling the decoder not to learn before its next decode.
// Writes go straight to the fd, so no explicit flush is needed.
func (p *Pipe) WriteRef(target string) error {
	if _, err := p.f.WriteString(target + "\n"); err != nil {
		return fmt.Errorf("refpipe: write %s: %w", p.path, err)
	}
	return nil
}

// Close closes the writer end. The FIFO file itself is removed with the
// owning context's temp directory.
func (p *Pipe) Close() error {
	if err := p.f.Close(); err != nil {
		return fmt.Errorf("refpipe: close %s: %w", p.path, err)
	}
	return nil
}
