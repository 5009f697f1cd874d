package builtins

import (
	"fmt"
	"time"

	"github.com/josephlewis42/rsh/core/env"
)

// Not runs its arguments as a command and inverts the exit status.
func Not(c *env.Call) (env.Status, error) {
	status := c.Run(c.Args)
	if !status.Continue {
		return status, nil
	}

	if status.Code == 0 {
		return env.Continued(1), nil
	}
	return env.Continued(0), nil
}

// Time runs its arguments as a command and reports the elapsed wall time.
func Time(c *env.Call) (env.Status, error) {
	start := time.Now()
	status := c.Run(c.Args)
	elapsed := time.Since(start)

	fmt.Fprintf(c.Stderr, "\nreal\t%s\n", elapsed.Round(time.Millisecond))
	return status, nil
}

func init() {
	addKeyword("!", "Run a command and invert its exit status.", Not)
	addKeyword("time", "Run a command and report the elapsed time.", Time)
}
