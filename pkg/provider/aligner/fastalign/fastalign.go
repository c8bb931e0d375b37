// Package fastalign implements forced alignment with a fast_align model
// pair and an atools symmetrizer, all run as line-oriented child processes.
//
// Two fast_align children score the pair in the forward and reverse
// directions using previously trained parameters; their Viterbi alignments
// are fed to atools, which symmetrizes them with the grow-diag-final-and
// heuristic. The tension and mean-length parameters each direction needs are
// recovered from the training run's error log.
package fastalign

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MrWong99/adaptran/internal/fairlock"
	"github.com/MrWong99/adaptran/pkg/lineproc"
	"github.com/MrWong99/adaptran/pkg/provider/aligner"
)

// Heuristic is the symmetrization heuristic passed to atools.
const Heuristic = "grow-diag-final-and"

// Config locates the aligner executables and the trained model files.
type Config struct {
	// FastAlign is the fast_align executable.
	FastAlign string
	// Atools is the atools executable.
	Atools string

	// FwdParams and FwdErr are the forward model's parameter file and
	// training error log; RevParams and RevErr the reverse model's.
	FwdParams string
	FwdErr    string
	RevParams string
	RevErr    string
}

// Aligner drives the three alignment children. All calls serialize through
// an internal FIFO lock, so it is safe for concurrent use and callers from
// different contexts are served in arrival order.
type Aligner struct {
	mu   fairlock.Mutex
	fwd  *lineproc.Proc
	rev  *lineproc.Proc
	tool *lineproc.Proc
}

var _ aligner.Aligner = (*Aligner)(nil)

// Start reads both error logs and launches the forward aligner, reverse
// aligner, and symmetrizer.
func Start(cfg Config) (*Aligner, error) {
	fwdT, fwdM, err := readErr(cfg.FwdErr)
	if err != nil {
		return nil, fmt.Errorf("fastalign: forward error log: %w", err)
	}
	revT, revM, err := readErr(cfg.RevErr)
	if err != nil {
		return nil, fmt.Errorf("fastalign: reverse error log: %w", err)
	}

	fwd, err := lineproc.Start(cfg.FastAlign, []string{
		"-i", "-", "-d", "-T", fwdT, "-m", fwdM, "-f", cfg.FwdParams,
	})
	if err != nil {
		return nil, fmt.Errorf("fastalign: start forward aligner: %w", err)
	}
	rev, err := lineproc.Start(cfg.FastAlign, []string{
		"-i", "-", "-d", "-T", revT, "-m", revM, "-f", cfg.RevParams, "-r",
	})
	if err != nil {
		fwd.Close(true)
		return nil, fmt.Errorf("fastalign: start reverse aligner: %w", err)
	}
	tool, err := lineproc.Start(cfg.Atools, []string{
		"-i", "-", "-j", "-", "-c", Heuristic,
	})
	if err != nil {
		fwd.Close(true)
		rev.Close(true)
		return nil, fmt.Errorf("fastalign: start atools: %w", err)
	}

	return &Aligner{fwd: fwd, rev: rev, tool: tool}, nil
}

// Align aligns one sentence pair and returns the symmetrized alignment.
func (a *Aligner) Align(ctx context.Context, source, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	pair := source + " ||| " + target
	if err := a.fwd.WriteLine(pair); err != nil {
		return "", err
	}
	if err := a.rev.WriteLine(pair); err != nil {
		return "", err
	}

	fwdLine, err := a.fwd.ReadLine()
	if err != nil {
		return "", err
	}
	revLine, err := a.rev.ReadLine()
	if err != nil {
		return "", err
	}

	// fast_align echoes "source ||| target ||| alignment"; the links are
	// the third field.
	if err := a.tool.WriteLine(thirdField(fwdLine)); err != nil {
		return "", err
	}
	if err := a.tool.WriteLine(thirdField(revLine)); err != nil {
		return "", err
	}
	return a.tool.ReadLine()
}

// Close stops all three children. Under force the lock is skipped and child
// errors are tolerated.
func (a *Aligner) Close(force bool) error {
	if !force {
		a.mu.Lock()
		defer a.mu.Unlock()
	}
	var firstErr error
	for _, p := range []*lineproc.Proc{a.fwd, a.rev, a.tool} {
		if err := p.Close(force); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func thirdField(line string) string {
	fields := strings.Split(line, "|||")
	if len(fields) < 3 {
		return ""
	}
	return strings.TrimSpace(fields[2])
}

// readErr recovers the final tension (-T) and mean source-to-target length
// ratio (-m) from a fast_align training error log. Both appear as the last
// token of their respective report lines; later occurrences win.
func readErr(path string) (tension, mean string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "expected target length"):
			mean = lastToken(line)
		case strings.Contains(line, "final tension"):
			tension = lastToken(line)
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if tension == "" || mean == "" {
		return "", "", fmt.Errorf("no tension/mean found in %s", path)
	}
	return tension, mean, nil
}

func lastToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
