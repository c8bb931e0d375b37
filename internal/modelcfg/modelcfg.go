// Package modelcfg rewrites the decoder and extractor configuration
// templates for realtime use.
//
// Model directories ship templates whose file references are relative to
// the directory itself. Children are launched with a scratch working
// directory, so every path must be made absolute first; the decoder
// template additionally needs the reference FIFO patched into its adaptive
// language-model feature line. The rewrite is mechanical: any value token
// that names an existing file or directory under the model directory is
// replaced with its absolute path.
package modelcfg

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DecoderTemplate, ExtractorTemplate and WeightsFile are the file names
// expected inside a model directory.
const (
	DecoderTemplate   = "cdec.ini"
	ExtractorTemplate = "sa.ini"
	WeightsFile       = "weights.final"
)

// adaptiveLMFeature marks the decoder feature-function line that consumes
// the reference stream.
const adaptiveLMFeature = "HPYPLM"

// entry is one key=value line of a template, in file order.
type entry struct {
	key   string
	value string
}

// WriteDecoderConfig reads configDir's decoder template, absolutizes its
// path values against configDir, patches refFifo into the adaptive
// language-model feature line, and writes the result to outDir. Returns the
// path of the written file.
func WriteDecoderConfig(configDir, outDir, refFifo string) (string, error) {
	entries, err := parseTemplate(filepath.Join(configDir, DecoderTemplate))
	if err != nil {
		return "", err
	}

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("modelcfg: resolve %s: %w", configDir, err)
	}

	for i := range entries {
		entries[i].value = absolutize(entries[i].value, absDir)
		if entries[i].key == "feature_function" && strings.HasPrefix(entries[i].value, adaptiveLMFeature) {
			entries[i].value += " -r " + refFifo
		}
	}

	out := filepath.Join(outDir, DecoderTemplate)
	if err := writeEntries(out, entries); err != nil {
		return "", err
	}
	return out, nil
}

// WriteExtractorConfig reads configDir's extractor template, absolutizes
// its path values, and writes the result to outDir. Returns the path of the
// written file.
func WriteExtractorConfig(configDir, outDir string) (string, error) {
	entries, err := parseTemplate(filepath.Join(configDir, ExtractorTemplate))
	if err != nil {
		return "", err
	}

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("modelcfg: resolve %s: %w", configDir, err)
	}

	for i := range entries {
		entries[i].value = absolutize(entries[i].value, absDir)
	}

	out := filepath.Join(outDir, ExtractorTemplate)
	if err := writeEntries(out, entries); err != nil {
		return "", err
	}
	return out, nil
}

func parseTemplate(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modelcfg: open template: %w", err)
	}
	defer f.Close()

	var entries []entry
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("modelcfg: %s:%d: not a key=value line: %q", path, lineNo, line)
		}
		entries = append(entries, entry{
			key:   strings.TrimSpace(key),
			value: strings.TrimSpace(value),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("modelcfg: read template: %w", err)
	}
	return entries, nil
}

// absolutize replaces every whitespace-separated token of value that names
// an existing file or directory under dir with its absolute path. Tokens
// that are already absolute or that do not resolve to anything on disk are
// left alone.
func absolutize(value, dir string) string {
	tokens := strings.Fields(value)
	for i, tok := range tokens {
		tok = strings.Trim(tok, `'"`)
		if tok == "" || filepath.IsAbs(tok) {
			continue
		}
		candidate := filepath.Join(dir, tok)
		if _, err := os.Stat(candidate); err == nil {
			tokens[i] = candidate
		}
	}
	return strings.Join(tokens, " ")
}

func writeEntries(path string, entries []entry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s=%s\n", e.key, e.value)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("modelcfg: write %s: %w", path, err)
	}
	return nil
}
