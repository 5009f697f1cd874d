// Package shell runs the read-eval loop.
package shell

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/input"
	"github.com/josephlewis42/rsh/core/interp"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/josephlewis42/rsh/core/parser"
	"github.com/josephlewis42/rsh/core/token"
)

// Shell reads logical lines and executes them until exit or end of input.
type Shell struct {
	Env    *env.Environment
	Interp *interp.Interpreter
	Input  input.LineReader

	// Stdin is handed to commands. It should be the process's standard input
	// rather than the line editor so children can read the terminal directly.
	Stdin  io.Reader
	Stdout io.Writer

	// Interactive shells exit 0 at end of input, others exit with the status
	// of the last command.
	Interactive bool

	Log *logger.Logger
}

// New creates a shell reading from r with the interpreter's environment.
func New(in *interp.Interpreter, r input.LineReader) *Shell {
	return &Shell{
		Env:    in.Env,
		Interp: in,
		Input:  r,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Log:    in.Log,
	}
}

// Run executes lines until exit, end of input or ctx is done and returns the
// shell's exit code.
func (s *Shell) Run(ctx context.Context) int {
	stop := ignoreInterrupts()
	defer stop()

	last := 0
	for {
		if ctx.Err() != nil {
			return last
		}

		ps1 := Prompt(s.Env, s.Env.Get(env.VarPrompt))
		ps2 := Prompt(s.Env, s.Env.Get(env.VarPrompt2))
		line, err := input.ReadLogical(s.Input, ps1, ps2)

		switch {
		case err == io.EOF:
			s.Log.Debugf("end of input")
			if s.Interactive {
				return 0
			}
			return last

		case err == input.ErrInterrupt:
			continue

		case err != nil:
			s.Interp.Errorf("read: %v", err)
			return 1

		case line == "":
			continue
		}

		status := s.RunLine(ctx, line)
		if !status.Continue {
			return status.Code
		}
		last = status.Code
	}
}

// RunLine builds and executes a single logical line.
func (s *Shell) RunLine(ctx context.Context, line string) env.Status {
	tree := parser.Build(line, s.Env)
	s.Log.With("line", line).Debugf("built %d top level nodes", len(tree.Children))

	res := s.Interp.Execute(ctx, tree, token.Node, s.Stdin, s.Stdout)
	return res.Status
}

// ignoreInterrupts keeps SIGINT from killing the shell. Unlike ignoring the
// signal outright, a handler is reset on exec so children still receive it.
func ignoreInterrupts() (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)

	go func() {
		for {
			select {
			case <-sigs:
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
