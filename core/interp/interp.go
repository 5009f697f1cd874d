// Package interp executes command-structure trees.
//
// Execution is a post-order walk: substitutions and quoted strings among a
// node's children are resolved first, then the node's argument children are
// run as a single command. Pipelines and redirections wire the streams of
// the sub-trees they hold.
package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/josephlewis42/rsh/core/parser"
	"github.com/josephlewis42/rsh/core/token"
	"github.com/spf13/afero"
)

// Result is the outcome of executing a tree.
type Result struct {
	env.Status

	// job is set when the status is only known after a pipeline waits.
	job *job
}

func result(status env.Status) Result {
	return Result{Status: status}
}

// Interpreter executes trees against an Environment.
type Interpreter struct {
	Env *env.Environment
	// Fs opens redirection targets and resolves executables.
	Fs afero.Fs
	// Stderr receives error reports and the error stream of commands.
	Stderr io.Writer
	// ErrorColor colors error reports, nil writes them plain.
	ErrorColor *color.Color
	Log        *logger.Logger

	// jobs is non-nil while a pipeline is being composed.
	jobs *jobList
}

// New creates an Interpreter using the OS filesystem and standard error.
func New(e *env.Environment) *Interpreter {
	return &Interpreter{
		Env:        e,
		Fs:         afero.NewOsFs(),
		Stderr:     os.Stderr,
		ErrorColor: color.New(color.FgRed, color.Bold),
	}
}

// Errorf reports an error on the interpreter's standard error.
func (in *Interpreter) Errorf(format string, args ...interface{}) {
	msg := "rsh: " + fmt.Sprintf(format, args...)
	if in.ErrorColor != nil {
		in.ErrorColor.Fprintln(in.Stderr, msg)
	} else {
		fmt.Fprintln(in.Stderr, msg)
	}
	in.Log.Infof("%s", msg)
}

func (in *Interpreter) fs() afero.Fs {
	if in.Fs == nil {
		return afero.NewOsFs()
	}
	return in.Fs
}

// Execute runs the tree rooted at n. kind is the context the tree runs in:
// Node for a top level line, Subshell for a substitution or the pipeline stage
// kinds. A nil stdin reads from the null device.
func (in *Interpreter) Execute(ctx context.Context, n *parser.CommandNode, kind token.Kind, stdin io.Reader, stdout io.Writer) Result {
	in.Log.Debugf("execute %s in %s context: %q", n.Token.Kind, kind, n.Token.Text)

	var res Result
	switch n.Token.Kind {
	case token.PipelineRedirect:
		res = in.pipeline(ctx, n, stdin, stdout)
	case token.OutputRedirect, token.OutputRedirectAppend:
		res = in.redirect(ctx, n, kind, stdin, stdout)
	case token.QuotedString:
		res = in.resolve(ctx, n, kind, stdin, stdout)
		n.Token.Text = reassemble(n)
	default:
		res = in.command(ctx, n, kind, stdin, stdout)
	}

	if kind == token.Subshell {
		res.Continue = true
	}
	return res
}

// resolve executes the children of n that need it and returns the result of
// the last one.
func (in *Interpreter) resolve(ctx context.Context, n *parser.CommandNode, kind token.Kind, stdin io.Reader, stdout io.Writer) Result {
	res := result(env.Continued(0))
	for _, child := range n.Children {
		switch {
		case child.Token.Kind == token.Subshell:
			res = in.substitute(ctx, child, stdin)
		case child.Token.Kind == token.QuotedString:
			res = in.Execute(ctx, child, token.QuotedString, stdin, stdout)
		case child.IsLeaf():
			// Words are arguments of n.
			continue
		default:
			res = in.Execute(ctx, child, kind, stdin, stdout)
		}
		if !res.Continue {
			return res
		}
	}
	return res
}

// substitute runs a Subshell node and replaces its text with the captured
// output.
func (in *Interpreter) substitute(ctx context.Context, n *parser.CommandNode, stdin io.Reader) Result {
	buf := &bytes.Buffer{}

	jobs := in.jobs
	in.jobs = nil
	res := in.command(ctx, n, token.Subshell, stdin, buf)
	in.jobs = jobs

	n.Token.Text = strings.TrimSpace(buf.String())
	res.Continue = true
	return res
}

// reassemble concatenates the resolved text of a quoted string's children.
func reassemble(n *parser.CommandNode) string {
	sb := &strings.Builder{}
	for _, child := range n.Children {
		sb.WriteString(child.Token.Text)
	}
	return sb.String()
}

// arguments returns the resolved text of the argument children of n. Empty
// unquoted expansions are dropped.
func arguments(n *parser.CommandNode) []string {
	var args []string
	for _, child := range n.Children {
		if !child.IsArgument() {
			continue
		}
		if child.Token.Text == "" && child.Token.Kind != token.QuotedString {
			continue
		}
		args = append(args, child.Token.Text)
	}
	return args
}

func (in *Interpreter) command(ctx context.Context, n *parser.CommandNode, kind token.Kind, stdin io.Reader, stdout io.Writer) Result {
	if n.IsLeaf() {
		return result(env.Continued(0))
	}

	res := in.resolve(ctx, n, kind, stdin, stdout)
	if !res.Continue {
		return res
	}

	if !n.Children[0].IsArgument() {
		return res
	}

	args := arguments(n)
	if len(args) == 0 {
		return result(env.Continued(res.Code))
	}

	head := n.Children[0]
	wordKind := head.Token.WordKind
	if head.Token.Kind != token.Word || wordKind == token.NotWord || head.Token.Text != args[0] {
		wordKind = token.LookupWordKind(args[0], in.Env)
	}

	return in.run(ctx, wordKind, args, stdin, stdout)
}

// run dispatches a resolved argument list.
func (in *Interpreter) run(ctx context.Context, wordKind token.WordKind, args []string, stdin io.Reader, stdout io.Writer) Result {
	switch wordKind {
	case token.Builtin:
		return in.callBuiltin(ctx, in.Env.Builtins[args[0]], args, stdin, stdout)
	case token.Keyword:
		return in.callBuiltin(ctx, in.Env.Keywords[args[0]], args, stdin, stdout)
	case token.Function:
		return in.callFunction(ctx, args, stdin, stdout)
	default:
		return in.spawn(ctx, args, stdin, stdout)
	}
}

func (in *Interpreter) callBuiltin(ctx context.Context, b env.Builtin, args []string, stdin io.Reader, stdout io.Writer) Result {
	if b == nil {
		return in.spawn(ctx, args, stdin, stdout)
	}

	// Inside a pipeline the output is buffered and drained once the builtin
	// returns, the reading stage may not have started yet.
	jobs := in.jobs
	out := stdout
	var buf *bytes.Buffer
	if jobs != nil {
		buf = &bytes.Buffer{}
		out = buf
	}

	call := &env.Call{
		Name:   args[0],
		Args:   args[1:],
		Env:    in.Env,
		Stdin:  stdin,
		Stdout: out,
		Stderr: in.Stderr,
		Run: func(args []string) env.Status {
			if len(args) == 0 {
				return env.Continued(0)
			}

			// Commands run on behalf of a builtin finish before it returns.
			in.jobs = nil
			defer func() { in.jobs = jobs }()

			return in.run(ctx, token.LookupWordKind(args[0], in.Env), args, stdin, out).Status
		},
	}

	status, err := b.Main(call)
	if buf != nil {
		jobs.drain(buf, stdout)
	}
	if err != nil {
		in.Errorf("%s: %v", args[0], err)
		return result(env.Continued(1))
	}
	in.Log.With(logger.FieldCommand, args[0]).With(logger.FieldStatus, strconv.Itoa(status.Code)).Debugf("builtin finished")
	return result(status)
}

func (in *Interpreter) callFunction(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) Result {
	body := in.Env.Functions[args[0]]

	restore := in.setPositional(args[1:])
	defer restore()

	root := parser.Build(body, in.Env)
	return in.Execute(ctx, root, token.Node, stdin, stdout)
}

// setPositional sets the numbered argument variables and returns a function
// restoring the previous values.
func (in *Interpreter) setPositional(args []string) func() {
	type saved struct {
		key   string
		value string
		ok    bool
	}

	var previous []saved
	set := func(key, value string) {
		old, ok := in.Env.Lookup(key)
		previous = append(previous, saved{key, old, ok})
		_ = in.Env.Set(key, value)
	}

	set(env.VarArgCount, strconv.Itoa(len(args)))
	for i, arg := range args {
		set(strconv.Itoa(i+1), arg)
	}

	return func() {
		for i := len(previous) - 1; i >= 0; i-- {
			p := previous[i]
			if p.ok {
				_ = in.Env.Set(p.key, p.value)
			} else {
				_ = in.Env.Unset(p.key)
			}
		}
	}
}

// spawn starts an external command. Inside a pipeline the command is left
// running for the pipeline to wait on.
func (in *Interpreter) spawn(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) Result {
	log := in.Log.With(logger.FieldCommand, args[0])

	path, err := LookPath(in.fs(), in.Env.Get("PATH"), args[0])
	switch {
	case errors.Is(err, ErrNotFound):
		in.Errorf("%s: command not found", args[0])
		in.Env.SetStatus(1)
		return result(env.Continued(1))
	case errors.Is(err, fs.ErrPermission):
		in.Errorf("%s: permission denied", args[0])
		in.Env.SetStatus(1)
		return result(env.Continued(1))
	case err != nil:
		in.Errorf("%s: %v", args[0], err)
		in.Env.SetStatus(1)
		return result(env.Continued(1))
	}

	cmd := exec.CommandContext(ctx, path, args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Env = in.Env.Environ()
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.Stdout = stdout
	cmd.Stderr = in.Stderr

	if err := cmd.Start(); err != nil {
		in.Errorf("%s: %v", args[0], err)
		in.Env.SetStatus(1)
		return result(env.Continued(1))
	}
	log.Debugf("started %s", path)

	j := &job{name: args[0], cmd: cmd}
	if in.jobs != nil {
		in.jobs.add(j)
		return Result{Status: env.Continued(0), job: j}
	}

	in.wait(j)
	return result(env.Continued(j.code))
}

// wait waits for j to exit and records its status.
func (in *Interpreter) wait(j *job) {
	j.code = exitCode(j.cmd.Wait())
	in.Env.SetStatus(j.code)

	in.Log.With(logger.FieldCommand, j.name).With(logger.FieldStatus, strconv.Itoa(j.code)).Infof("external command finished")
}

// exitCode converts the result of waiting on a command to a status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}
