package input

import (
	"io"

	"github.com/abiosoft/readline"
)

// ErrInterrupt is returned when the user interrupts a line with ^C.
var ErrInterrupt = readline.ErrInterrupt

// ReadlineConfig configures an interactive line editor.
type ReadlineConfig struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// HistoryFile persists entered lines when set.
	HistoryFile  string
	HistoryLimit int

	// IsTerminal reports whether the streams are a terminal.
	IsTerminal func() bool
}

// Readline is a LineReader backed by a terminal line editor.
type Readline struct {
	*readline.Instance
}

var _ LineReader = (*Readline)(nil)

// NewReadline creates an interactive line editor.
func NewReadline(config ReadlineConfig) (*Readline, error) {
	cfg := &readline.Config{
		Stdin:           readline.NewCancelableStdin(config.Stdin),
		Stdout:          config.Stdout,
		Stderr:          config.Stderr,
		HistoryFile:     config.HistoryFile,
		HistoryLimit:    config.HistoryLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		FuncIsTerminal:  config.IsTerminal,
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &Readline{Instance: instance}, nil
}

// ReadLine implements LineReader.
func (r *Readline) ReadLine(prompt string) (string, error) {
	r.SetPrompt(prompt)
	return r.Readline()
}
