// Package env holds the shell's symbol table: variables and the builtin,
// keyword and function capability tables.
package env

import (
	"io"
	"os"
	"strconv"
)

const (
	VarStatus   = "?"
	VarPrompt   = "PS1"
	VarPrompt2  = "PS2"
	VarHome     = "HOME"
	VarPWD      = "PWD"
	VarOldPWD   = "OLDPWD"
	VarUser     = "USER"
	VarHostname = "HOSTNAME"
	VarArgCount = "#"

	DefaultPrompt  = "$ "
	DefaultPrompt2 = "> "
)

// Status is the outcome of running a command.
type Status struct {
	// Continue is false when the read-eval loop should stop.
	Continue bool
	Code     int
}

// Continued is a status that keeps the loop running.
func Continued(code int) Status {
	return Status{Continue: true, Code: code}
}

// Exited is a status that stops the loop.
func Exited(code int) Status {
	return Status{Continue: false, Code: code}
}

// Call holds a single capability invocation.
type Call struct {
	// Name is the name the capability was invoked with.
	Name string
	// Args holds the resolved arguments, not including Name.
	Args []string
	// Env is the mutable environment.
	Env *Environment

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Run executes args as a command with the call's streams.
	Run func(args []string) Status
}

// Builtin is a capability implemented inside the shell.
type Builtin interface {
	Main(c *Call) (Status, error)
}

// BuiltinFunc adapts a function to a Builtin.
type BuiltinFunc func(c *Call) (Status, error)

// Main implements Builtin.
func (f BuiltinFunc) Main(c *Call) (Status, error) {
	return f(c)
}

var _ Builtin = (BuiltinFunc)(nil)

// Environment is the shell's symbol table. Writes to variables are mirrored
// into the process environment so spawned children observe them.
type Environment struct {
	vars    *MapEnv
	process VEnv

	Builtins  map[string]Builtin
	Keywords  map[string]Builtin
	Functions map[string]string
}

// New creates an empty environment mirroring variable writes into process,
// which may be nil.
func New(process VEnv) *Environment {
	return &Environment{
		vars:      NewMapEnv(),
		process:   process,
		Builtins:  make(map[string]Builtin),
		Keywords:  make(map[string]Builtin),
		Functions: make(map[string]string),
	}
}

// Load seeds the variables from src then applies the shell defaults.
func (e *Environment) Load(src EnvironFetcher) error {
	if err := CopyEnv(e.vars, src); err != nil {
		return err
	}

	defaults := []string{
		VarStatus + "=0",
		VarPrompt + "=" + DefaultPrompt,
		VarPrompt2 + "=" + DefaultPrompt2,
	}
	return CopyEnv(e, EnvList(defaults))
}

// Lookup retrieves a variable and whether it was set.
func (e *Environment) Lookup(key string) (string, bool) {
	return e.vars.LookupEnv(key)
}

// Get retrieves a variable, unset variables are empty.
func (e *Environment) Get(key string) string {
	val, _ := e.Lookup(key)
	return val
}

// Set writes a variable.
func (e *Environment) Set(key, value string) error {
	if e.process != nil {
		if err := e.process.Setenv(key, value); err != nil {
			return err
		}
	}
	return e.vars.Setenv(key, value)
}

// Setenv implements VEnv.
func (e *Environment) Setenv(key, value string) error {
	return e.Set(key, value)
}

// Unset removes a variable.
func (e *Environment) Unset(key string) error {
	if e.process != nil {
		if err := e.process.Unsetenv(key); err != nil {
			return err
		}
	}
	return e.vars.Unsetenv(key)
}

// Unsetenv implements VEnv.
func (e *Environment) Unsetenv(key string) error {
	return e.Unset(key)
}

// LookupEnv implements VEnv.
func (e *Environment) LookupEnv(key string) (string, bool) {
	return e.Lookup(key)
}

// Environ returns the variables in "key=value" form, sorted by key.
func (e *Environment) Environ() []string {
	return e.vars.Environ()
}

// Getenv is an alias of Get for callers expecting os-style lookups.
func (e *Environment) Getenv(key string) string {
	return e.Get(key)
}

// Expand replaces $var and ${var} in s, unset variables become empty.
func (e *Environment) Expand(s string) string {
	return os.Expand(s, e.Get)
}

// SetStatus records the exit status of the last external command.
func (e *Environment) SetStatus(code int) {
	// "?" is always a valid name so the error can't happen.
	_ = e.Set(VarStatus, strconv.Itoa(code))
}

// IsBuiltin implements token.Tables.
func (e *Environment) IsBuiltin(name string) bool {
	_, ok := e.Builtins[name]
	return ok
}

// IsFunction implements token.Tables.
func (e *Environment) IsFunction(name string) bool {
	_, ok := e.Functions[name]
	return ok
}

// IsKeyword implements token.Tables.
func (e *Environment) IsKeyword(name string) bool {
	_, ok := e.Keywords[name]
	return ok
}

var _ VEnv = (*Environment)(nil)
