package shell

import (
	"os"
	"strings"

	"github.com/josephlewis42/rsh/core/env"
)

var geteuid = os.Geteuid

// Prompt expands the escapes in a prompt string: \u user, \h host, \w working
// directory with ~ for HOME, and \$ which is # for root.
func Prompt(e *env.Environment, prompt string) string {
	if !strings.Contains(prompt, `\`) {
		return prompt
	}

	host := e.Get(env.VarHostname)
	if host == "" {
		host, _ = os.Hostname()
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = e.Get(env.VarPWD)
	}
	if home := e.Get(env.VarHome); home != "" && (pwd == home || strings.HasPrefix(pwd, home+"/")) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	sign := "$"
	if geteuid() == 0 {
		sign = "#"
	}

	return strings.NewReplacer(
		`\u`, e.Get(env.VarUser),
		`\h`, host,
		`\w`, pwd,
		`\$`, sign,
	).Replace(prompt)
}
