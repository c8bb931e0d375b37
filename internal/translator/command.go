package translator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Verb is a protocol command name.
type Verb string

// The fixed command table.
const (
	VerbTranslate Verb = "TR"
	VerbLearn     Verb = "LEARN"
	VerbSave      Verb = "SAVE"
	VerbLoad      Verb = "LOAD"
	VerbDrop      Verb = "DROP"
	VerbList      Verb = "LIST"
)

// arities maps each verb to its minimum and maximum argument count.
// Arity validation is a parse-time concern.
var arities = map[Verb][2]int{
	VerbTranslate: {1, 1},
	VerbLearn:     {2, 2},
	VerbSave:      {0, 1},
	VerbLoad:      {0, 1},
	VerbDrop:      {0, 0},
	VerbList:      {0, 0},
}

// Command is one parsed protocol command with its arguments attached.
type Command struct {
	Verb Verb
	Ctx  string
	Args []string
}

// ParseCommand parses a protocol line of the form
//
//	CMD [ctx] ||| arg1 [||| arg2 …]
//
// Each ||| separator may be surrounded by whitespace, which is stripped. A
// trailing empty field after the last ||| is tolerated. The head field
// splits on whitespace: one token is the bare verb, two tokens are verb and
// context name; the context defaults to defaultCtx. Unknown verbs and
// wrong arities are errors.
func ParseCommand(line, defaultCtx string) (Command, error) {
	fields := strings.Split(line, "|||")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) > 1 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	head := strings.Fields(fields[0])
	cmd := Command{Ctx: defaultCtx, Args: fields[1:]}
	switch len(head) {
	case 1:
		cmd.Verb = Verb(head[0])
	case 2:
		cmd.Verb = Verb(head[0])
		cmd.Ctx = head[1]
	default:
		return Command{}, fmt.Errorf("translator: malformed command head %q", fields[0])
	}

	arity, ok := arities[cmd.Verb]
	if !ok {
		return Command{}, fmt.Errorf("translator: unknown command %q", cmd.Verb)
	}
	if n := len(cmd.Args); n < arity[0] || n > arity[1] {
		return Command{}, fmt.Errorf("translator: %s takes %d to %d arguments, got %d", cmd.Verb, arity[0], arity[1], n)
	}
	return cmd, nil
}

// Execute parses and runs one protocol line. Responses are written to out;
// a LOAD without a filename reads the state stream from in. Client errors
// are logged and returned with no response written, per the protocol.
func (t *Translator) Execute(ctx context.Context, line string, in io.Reader, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, err := ParseCommand(line, t.cfg.Model.DefaultContext)
	if err != nil {
		t.metrics.RecordCommand(ctx, "invalid", "error")
		slog.Error("bad command", "line", line, "err", err)
		return err
	}

	err = t.dispatch(ctx, cmd, in, out)
	status := "ok"
	if err != nil {
		status = "error"
		slog.Error("command failed", "verb", string(cmd.Verb), "ctx", cmd.Ctx, "err", err)
	}
	t.metrics.RecordCommand(ctx, string(cmd.Verb), status)
	return err
}

func (t *Translator) dispatch(ctx context.Context, cmd Command, in io.Reader, out io.Writer) error {
	switch cmd.Verb {
	case VerbTranslate:
		hyp, err := t.Translate(ctx, cmd.Ctx, cmd.Args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hyp)
		return err

	case VerbLearn:
		return t.Learn(ctx, cmd.Ctx, cmd.Args[0], cmd.Args[1])

	case VerbSave:
		if len(cmd.Args) == 1 && cmd.Args[0] != "" {
			return t.Save(ctx, cmd.Ctx, cmd.Args[0])
		}
		return t.SaveTo(ctx, cmd.Ctx, out)

	case VerbLoad:
		if len(cmd.Args) == 1 && cmd.Args[0] != "" {
			return t.Load(ctx, cmd.Ctx, cmd.Args[0])
		}
		return t.LoadFrom(ctx, cmd.Ctx, in)

	case VerbDrop:
		return t.Drop(ctx, cmd.Ctx, false)

	case VerbList:
		_, err := fmt.Fprintln(out, t.List())
		return err
	}
	// Unreachable: ParseCommand rejects unknown verbs.
	return fmt.Errorf("translator: unhandled verb %q", cmd.Verb)
}
