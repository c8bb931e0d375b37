package modelcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newModelDir builds a model directory with a decoder template, an
// extractor template, and the files they reference.
func newModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, name := range []string{"grammar.glue", "lm.klm", "corpus.f.bin", WeightsFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cdecIni := strings.Join([]string{
		"formalism=scfg",
		"grammar=grammar.glue",
		"# comment line",
		"",
		"feature_function=KLanguageModel lm.klm",
		"feature_function=HPYPLM corpus.f.bin",
		"feature_function=WordPenalty",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, DecoderTemplate), []byte(cdecIni), 0o600); err != nil {
		t.Fatal(err)
	}

	saIni := strings.Join([]string{
		"f_sa_file=corpus.f.bin",
		"max_len=5",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, ExtractorTemplate), []byte(saIni), 0o600); err != nil {
		t.Fatal(err)
	}

	return dir
}

func parseWritten(t *testing.T, path string) map[string][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string][]string)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("written config has a non key=value line: %q", line)
		}
		out[k] = append(out[k], v)
	}
	return out
}

func TestWriteDecoderConfig(t *testing.T) {
	dir := newModelDir(t)
	outDir := t.TempDir()
	fifo := "/scratch/decoder.ctxA/ref.fifo"

	path, err := WriteDecoderConfig(dir, outDir, fifo)
	if err != nil {
		t.Fatalf("WriteDecoderConfig: %v", err)
	}
	if filepath.Dir(path) != outDir {
		t.Errorf("patched config written to %s, want directory %s", path, outDir)
	}

	got := parseWritten(t, path)

	if v := got["grammar"]; len(v) != 1 || !filepath.IsAbs(v[0]) {
		t.Errorf("grammar = %v, want one absolute path", v)
	}

	ffs := got["feature_function"]
	if len(ffs) != 3 {
		t.Fatalf("feature_function count = %d, want 3", len(ffs))
	}
	if !strings.HasPrefix(ffs[0], "KLanguageModel ") || !filepath.IsAbs(strings.Fields(ffs[0])[1]) {
		t.Errorf("KLanguageModel line not absolutized: %q", ffs[0])
	}
	wantSuffix := " -r " + fifo
	if !strings.HasPrefix(ffs[1], "HPYPLM ") || !strings.HasSuffix(ffs[1], wantSuffix) {
		t.Errorf("HPYPLM line = %q, want ref fifo patched in via %q", ffs[1], wantSuffix)
	}
	if ffs[2] != "WordPenalty" {
		t.Errorf("WordPenalty line = %q, want untouched", ffs[2])
	}

	// Comments and blank lines do not survive the rewrite.
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "#") {
		t.Error("comments leaked into the patched config")
	}
}

func TestWriteExtractorConfig(t *testing.T) {
	dir := newModelDir(t)
	outDir := t.TempDir()

	path, err := WriteExtractorConfig(dir, outDir)
	if err != nil {
		t.Fatalf("WriteExtractorConfig: %v", err)
	}

	got := parseWritten(t, path)
	if v := got["f_sa_file"]; len(v) != 1 || v[0] != filepath.Join(dir, "corpus.f.bin") {
		t.Errorf("f_sa_file = %v, want absolute path under %s", v, dir)
	}
	// Non-path values stay as-is.
	if v := got["max_len"]; len(v) != 1 || v[0] != "5" {
		t.Errorf("max_len = %v, want [5]", v)
	}
}

func TestWriteDecoderConfigMissingTemplate(t *testing.T) {
	if _, err := WriteDecoderConfig(t.TempDir(), t.TempDir(), "/tmp/f"); err == nil {
		t.Fatal("expected an error for a missing template")
	}
}

func TestParseTemplateRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DecoderTemplate), []byte("no equals sign here\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDecoderConfig(dir, t.TempDir(), "/tmp/f"); err == nil {
		t.Fatal("expected an error for a malformed template line")
	}
}
