// Package builtins holds the capabilities implemented inside the shell.
package builtins

import (
	"fmt"
	"io"
	"sort"

	"github.com/josephlewis42/rsh/core/env"
	getopt "github.com/pborman/getopt/v2"
)

var (
	// AllBuiltins holds all registered shell builtins.
	AllBuiltins = make(map[string]env.Builtin)
	// AllKeywords holds all registered shell keywords.
	AllKeywords = make(map[string]env.Builtin)

	descriptions = make(map[string]string)
)

func addBuiltin(name, short string, f env.BuiltinFunc) {
	AllBuiltins[name] = f
	descriptions[name] = short
}

func addKeyword(name, short string, f env.BuiltinFunc) {
	AllKeywords[name] = f
	descriptions[name] = short
}

// Describe returns the one line description of a builtin or keyword.
func Describe(name string) string {
	return descriptions[name]
}

// Install adds every builtin and keyword to the capability tables of e.
func Install(e *env.Environment) {
	for name, b := range AllBuiltins {
		e.Builtins[name] = b
	}
	for name, k := range AllKeywords {
		e.Keywords[name] = k
	}
}

// Names returns the names in a capability table in sorted order.
func Names(table map[string]env.Builtin) []string {
	var out []string
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SimpleCommand parses the flags of a builtin.
type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Usage writes the one line usage to the call's standard error and returns
// the status of a malformed invocation.
func (s *SimpleCommand) Usage(c *env.Call) (env.Status, error) {
	fmt.Fprintf(c.Stderr, "usage: %s\n", s.Use)
	return env.Continued(1), nil
}

// Run parses the call's arguments, if flag parsing was successful call the
// callback.
func (s *SimpleCommand) Run(c *env.Call, callback func() (env.Status, error)) (env.Status, error) {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	args := append([]string{c.Name}, c.Args...)
	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(c.Stderr, "%s: %s\n\n", c.Name, err)
		s.PrintHelp(c.Stderr)
		return env.Continued(1), nil
	}

	if *s.ShowHelp {
		s.PrintHelp(c.Stdout)
		return env.Continued(0), nil
	}

	return callback()
}
