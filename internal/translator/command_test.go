package translator

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{
			name: "translate with context",
			line: "TR ctxA ||| hola mundo",
			want: Command{Verb: VerbTranslate, Ctx: "ctxA", Args: []string{"hola mundo"}},
		},
		{
			name: "translate default context",
			line: "TR ||| hola mundo",
			want: Command{Verb: VerbTranslate, Ctx: "default", Args: []string{"hola mundo"}},
		},
		{
			name: "learn",
			line: "LEARN ctxA ||| hola ||| hello",
			want: Command{Verb: VerbLearn, Ctx: "ctxA", Args: []string{"hola", "hello"}},
		},
		{
			name: "separator whitespace is stripped",
			line: "TR ctxA   |||   hola mundo  ",
			want: Command{Verb: VerbTranslate, Ctx: "ctxA", Args: []string{"hola mundo"}},
		},
		{
			name: "trailing empty field is trimmed",
			line: "DROP ctxA |||",
			want: Command{Verb: VerbDrop, Ctx: "ctxA", Args: []string{}},
		},
		{
			name: "save without filename",
			line: "SAVE ctxA",
			want: Command{Verb: VerbSave, Ctx: "ctxA", Args: []string{}},
		},
		{
			name: "save with filename",
			line: "SAVE ctxA ||| /tmp/state",
			want: Command{Verb: VerbSave, Ctx: "ctxA", Args: []string{"/tmp/state"}},
		},
		{
			name: "load without filename",
			line: "LOAD ctxA",
			want: Command{Verb: VerbLoad, Ctx: "ctxA", Args: []string{}},
		},
		{
			name: "list",
			line: "LIST",
			want: Command{Verb: VerbList, Ctx: "default", Args: []string{}},
		},
		{name: "unknown verb", line: "FROB ctxA ||| x", wantErr: true},
		{name: "translate missing argument", line: "TR ctxA", wantErr: true},
		{name: "learn missing argument", line: "LEARN ctxA ||| hola", wantErr: true},
		{name: "learn extra argument", line: "LEARN ctxA ||| a ||| b ||| c", wantErr: true},
		{name: "drop with argument", line: "DROP ctxA ||| x", wantErr: true},
		{name: "three head tokens", line: "TR ctxA extra ||| x", wantErr: true},
		{name: "empty head", line: "||| x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line, "default")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tt.line, err)
			}
			if got.Verb != tt.want.Verb || got.Ctx != tt.want.Ctx {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
			if len(got.Args) != len(tt.want.Args) {
				t.Fatalf("args = %v, want %v", got.Args, tt.want.Args)
			}
			for i := range got.Args {
				if got.Args[i] != tt.want.Args[i] {
					t.Errorf("args[%d] = %q, want %q", i, got.Args[i], tt.want.Args[i])
				}
			}
		})
	}
}

func TestExecuteTranslateWritesHypothesis(t *testing.T) {
	d := newTestTranslator(t, nil)

	var out bytes.Buffer
	if err := d.tr.Execute(context.Background(), "TR ctxA ||| hola mundo", strings.NewReader(""), &out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "hyp: hola mundo\n" {
		t.Errorf("response = %q", out.String())
	}
}

func TestExecuteBadCommandWritesNothing(t *testing.T) {
	d := newTestTranslator(t, nil)

	var out bytes.Buffer
	for _, line := range []string{"FROB ||| x", "TR ctxA", "LEARN ctxA ||| onlysource"} {
		if err := d.tr.Execute(context.Background(), line, strings.NewReader(""), &out); err == nil {
			t.Errorf("Execute(%q) succeeded, want error", line)
		}
	}
	if out.Len() != 0 {
		t.Errorf("bad commands produced output: %q", out.String())
	}
}

func TestExecuteBlankLineIsIgnored(t *testing.T) {
	d := newTestTranslator(t, nil)

	var out bytes.Buffer
	if err := d.tr.Execute(context.Background(), "   ", strings.NewReader(""), &out); err != nil {
		t.Fatalf("Execute of blank line: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("blank line produced output: %q", out.String())
	}
}

func TestExecuteLearnHasNoResponse(t *testing.T) {
	d := newTestTranslator(t, nil)

	var out bytes.Buffer
	if err := d.tr.Execute(context.Background(), "LEARN ctxA ||| hola ||| hello", strings.NewReader(""), &out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("LEARN produced output: %q", out.String())
	}
}

func TestExecuteSaveToOutAndLoadFromIn(t *testing.T) {
	d := newTestTranslator(t, nil)
	ctx := context.Background()

	if err := d.tr.Execute(ctx, "LEARN ctxA ||| hola ||| hello", strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	// SAVE without filename streams to out.
	var state bytes.Buffer
	if err := d.tr.Execute(ctx, "SAVE ctxA", strings.NewReader(""), &state); err != nil {
		t.Fatalf("SAVE: %v", err)
	}
	if !strings.HasSuffix(state.String(), "EOF\n") {
		t.Errorf("saved state = %q, want EOF-terminated", state.String())
	}

	// LOAD without filename reads from in.
	var out bytes.Buffer
	if err := d.tr.Execute(ctx, "LOAD ctxB", bytes.NewReader(state.Bytes()), &out); err != nil {
		t.Fatalf("LOAD: %v", err)
	}
	if c := d.ctx(t, "ctxB"); c == nil || len(c.history) != 1 {
		t.Error("LOAD from in did not restore history")
	}
}

func TestExecuteSaveLoadWithFilename(t *testing.T) {
	d := newTestTranslator(t, nil)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state")

	if err := d.tr.Execute(ctx, "LEARN ctxA ||| hola ||| hello", strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if err := d.tr.Execute(ctx, "SAVE ctxA ||| "+path, strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("SAVE: %v", err)
	}
	if err := d.tr.Execute(ctx, "LOAD ctxB ||| "+path, strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("LOAD: %v", err)
	}
	if c := d.ctx(t, "ctxB"); c == nil || len(c.history) != 1 {
		t.Error("LOAD with filename did not restore history")
	}
}

func TestExecuteListIgnoresContextArgument(t *testing.T) {
	d := newTestTranslator(t, nil)
	ctx := context.Background()

	if _, err := d.tr.Translate(ctx, "ctxA", "hola"); err != nil {
		t.Fatal(err)
	}

	// LIST accepts (and ignores) a context name in the head field.
	var out bytes.Buffer
	if err := d.tr.Execute(ctx, "LIST whatever", strings.NewReader(""), &out); err != nil {
		t.Fatalf("LIST: %v", err)
	}
	if out.String() != "ctx_name ||| ctxA\n" {
		t.Errorf("LIST response = %q", out.String())
	}
}

func TestExecuteDrop(t *testing.T) {
	d := newTestTranslator(t, nil)
	ctx := context.Background()

	if _, err := d.tr.Translate(ctx, "ctxA", "hola"); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := d.tr.Execute(ctx, "DROP ctxA", strings.NewReader(""), &out); err != nil {
		t.Fatalf("DROP: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("DROP produced output: %q", out.String())
	}
	if d.ctx(t, "ctxA") != nil {
		t.Error("context survived DROP")
	}
}
