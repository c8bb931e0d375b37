package fastalign

import (
	"os"
	"path/filepath"
	"testing"
)

func writeErrLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.fwd_err")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadErr(t *testing.T) {
	tests := []struct {
		name        string
		log         string
		wantTension string
		wantMean    string
		wantErr     bool
	}{
		{
			name: "typical training log",
			log: "ITERATION 1\n" +
				"  log_e likelihood: -1234.5\n" +
				"expected target length = source length * 1.03214\n" +
				"ITERATION 5 (FINAL)\n" +
				"expected target length = source length * 1.08991\n" +
				"      final tension: 4.51413\n",
			wantTension: "4.51413",
			wantMean:    "1.08991",
		},
		{
			name:    "missing tension",
			log:     "expected target length = source length * 1.1\n",
			wantErr: true,
		},
		{
			name:    "empty log",
			log:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeErrLog(t, tt.log)
			tension, mean, err := readErr(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readErr: %v", err)
			}
			if tension != tt.wantTension {
				t.Errorf("tension = %q, want %q", tension, tt.wantTension)
			}
			if mean != tt.wantMean {
				t.Errorf("mean = %q, want %q", mean, tt.wantMean)
			}
		})
	}
}

func TestReadErrMissingFile(t *testing.T) {
	if _, _, err := readErr(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected an error for a missing log file")
	}
}

func TestThirdField(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"el gato ||| the cat ||| 0-0 1-1", "0-0 1-1"},
		{"a ||| b ||| ", ""},
		{"malformed", ""},
	}
	for _, tt := range tests {
		if got := thirdField(tt.line); got != tt.want {
			t.Errorf("thirdField(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
