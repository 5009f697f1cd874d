package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/parser"
	"github.com/josephlewis42/rsh/core/token"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	in     *Interpreter
	env    *env.Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	e := env.New(env.NewMapEnv())
	require.Nil(t, e.Load(env.EnvList{"PATH=" + os.Getenv("PATH")}))

	e.Builtins["say"] = env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		fmt.Fprintln(c.Stdout, strings.Join(c.Args, " "))
		return env.Continued(0), nil
	})
	e.Builtins["exit"] = env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		if len(c.Args) == 0 {
			return env.Exited(0), nil
		}
		code, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return env.Continued(1), nil
		}
		return env.Exited(code), nil
	})
	e.Builtins["fail"] = env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		return env.Continued(0), errors.New("boom")
	})
	e.Keywords["invert"] = env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		status := c.Run(c.Args)
		if status.Code == 0 {
			return env.Continued(1), nil
		}
		return env.Continued(0), nil
	})
	e.Builtins["flood"] = env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		n, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return env.Continued(1), err
		}
		_, err = c.Stdout.Write(bytes.Repeat([]byte("x"), n))
		return env.Continued(0), err
	})
	e.Functions["greet"] = "echo hello $1 $#"

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	in := New(e)
	in.Stderr = stderr
	in.ErrorColor = nil

	return &fixture{in: in, env: e, stdout: stdout, stderr: stderr}
}

func (f *fixture) run(line string) Result {
	return f.runWithInput(line, nil)
}

func (f *fixture) runWithInput(line string, stdin io.Reader) Result {
	root := parser.Build(line, f.env)
	return f.in.Execute(context.Background(), root, token.Node, stdin, f.stdout)
}

func TestExecute_output(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"external":              {line: "echo hello world", want: "hello world\n"},
		"builtin":               {line: "say hello world", want: "hello world\n"},
		"empty":                 {line: "", want: ""},
		"single-quoted":         {line: `echo 'a   b'`, want: "a   b\n"},
		"quoted-substitution":   {line: `echo "a $(echo b) c"`, want: "a b c\n"},
		"adjacent-quotes":       {line: `echo "a" 'b'`, want: "a b\n"},
		"nested-substitution":   {line: "echo $(echo $(echo x))", want: "x\n"},
		"substitution-trimmed":  {line: `echo "[$(printf '  x  ')]"`, want: "[x]\n"},
		"substitution-pipeline": {line: "echo $(echo hi | cat)", want: "hi\n"},
		"pipeline":              {line: "echo hello | cat", want: "hello\n"},
		"long-pipeline":         {line: `printf 'x\ny\n' | cat | cat | cat`, want: "x\ny\n"},
		"builtin-in-pipeline":   {line: "say from builtin | cat", want: "from builtin\n"},
		"function":              {line: "greet world", want: "hello world 1\n"},
		"empty-expansion":       {line: "echo a $NOPE b", want: "a b\n"},
		"empty-quoted-argument": {line: `printf '[%s]' ""`, want: "[]"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)

			res := f.run(tc.line)

			assert.Equal(t, Result{Status: env.Continued(0)}, res)
			assert.Equal(t, tc.want, f.stdout.String())
			assert.Empty(t, f.stderr.String())
		})
	}
}

func TestExecute_status(t *testing.T) {
	cases := map[string]struct {
		line       string
		want       env.Status
		wantStatus string
	}{
		"true":               {line: "true", want: env.Continued(0), wantStatus: "0"},
		"false":              {line: "false", want: env.Continued(1), wantStatus: "1"},
		"exit-code":          {line: "sh -c 'exit 7'", want: env.Continued(7), wantStatus: "7"},
		"signalled":          {line: "sh -c 'kill -TERM $$'", want: env.Continued(143), wantStatus: "143"},
		"pipeline-rightmost": {line: "true | false", want: env.Continued(1), wantStatus: "1"},
		"pipeline-ignores-left": {
			line:       "false | true",
			want:       env.Continued(0),
			wantStatus: "0",
		},
		"exit":                   {line: "exit 3", want: env.Exited(3), wantStatus: "0"},
		"exit-bad":               {line: "exit abc", want: env.Continued(1), wantStatus: "0"},
		"exit-in-substitution":   {line: "echo $(exit 3)", want: env.Continued(0), wantStatus: "0"},
		"exit-in-pipeline":       {line: "exit 3 | cat", want: env.Continued(0), wantStatus: "0"},
		"keyword-inverts":        {line: "invert false", want: env.Continued(0), wantStatus: "1"},
		"keyword-inverts-ok":     {line: "invert true", want: env.Continued(1), wantStatus: "0"},
		"only-empty-expansion":   {line: "$NOPE", want: env.Continued(0), wantStatus: "0"},
		"substitution-only-fail": {line: "$(false)", want: env.Continued(1), wantStatus: "1"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)

			res := f.run(tc.line)

			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, tc.wantStatus, f.env.Get(env.VarStatus))
		})
	}
}

func TestExecute_errors(t *testing.T) {
	cases := map[string]struct {
		line       string
		want       env.Status
		wantStderr string
	}{
		"not-found": {
			line:       "definitely-not-a-command-rsh",
			want:       env.Continued(1),
			wantStderr: "rsh: definitely-not-a-command-rsh: command not found\n",
		},
		"builtin-error": {
			line:       "fail",
			want:       env.Continued(1),
			wantStderr: "rsh: fail: boom\n",
		},
		"missing-target": {
			line:       "echo x >",
			want:       env.Continued(2),
			wantStderr: "rsh: syntax error: redirection needs a command and a target\n",
		},
		"ambiguous-target": {
			line:       "echo x > $NOPE",
			want:       env.Continued(1),
			wantStderr: "rsh: $NOPE: ambiguous redirect\n",
		},
		"unopenable-target": {
			line:       "echo x > /nonexistent-rsh-dir/out.txt",
			want:       env.Continued(1),
			wantStderr: "rsh: open /nonexistent-rsh-dir/out.txt: no such file or directory\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)

			res := f.run(tc.line)

			assert.Equal(t, tc.want, res.Status)
			assert.Equal(t, tc.wantStderr, f.stderr.String())
			assert.Empty(t, f.stdout.String())
		})
	}
}

func TestExecute_notFoundSetsStatus(t *testing.T) {
	f := newFixture(t)

	res := f.run("definitely-not-a-command-rsh")

	assert.True(t, res.Continue)
	assert.NotEqual(t, "0", f.env.Get(env.VarStatus))
}

func TestExecute_statusVariable(t *testing.T) {
	f := newFixture(t)

	f.run("false")
	f.run("echo $?")
	f.run("true")
	f.run(`echo "status $?"`)

	assert.Equal(t, "1\nstatus 0\n", f.stdout.String())
}

func TestExecute_functionRestoresPositional(t *testing.T) {
	f := newFixture(t)
	f.env.Set("1", "outer")

	f.run("greet a b")

	assert.Equal(t, "hello a 2\n", f.stdout.String())
	assert.Equal(t, "outer", f.env.Get("1"))
	_, ok := f.env.Lookup(env.VarArgCount)
	assert.False(t, ok)
}

func TestExecute_stdin(t *testing.T) {
	f := newFixture(t)

	res := f.runWithInput("cat | cat", strings.NewReader("from stdin\n"))

	assert.Equal(t, env.Continued(0), res.Status)
	assert.Equal(t, "from stdin\n", f.stdout.String())
}

func TestExecute_redirect(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	f := newFixture(t)

	read := func() string {
		contents, err := os.ReadFile(out)
		require.Nil(t, err)
		return string(contents)
	}

	assert.Equal(t, env.Continued(0), f.run("echo one > "+out).Status)
	assert.Equal(t, "one\n", read())

	assert.Equal(t, env.Continued(0), f.run("echo two >> "+out).Status)
	assert.Equal(t, "one\ntwo\n", read())

	assert.Equal(t, env.Continued(0), f.run(`echo "three" > `+out).Status)
	assert.Equal(t, "three\n", read())

	assert.Equal(t, env.Continued(0), f.run("echo piped | cat >> "+out).Status)
	assert.Equal(t, "three\npiped\n", read())

	assert.Equal(t, env.Continued(0), f.run("ls "+dir+" > "+out).Status)
	assert.Equal(t, "out.txt\n", read())

	assert.Empty(t, f.stdout.String())
	assert.Empty(t, f.stderr.String())
}

func TestExecute_redirectQuotedArguments(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	cases := map[string]struct {
		line string
		want string
	}{
		"two-quoted":               {line: `echo "a" "b" > ` + out, want: "a b\n"},
		"two-substitutions":        {line: `echo $(echo a) $(echo b) > ` + out, want: "a b\n"},
		"quoted-and-substitution":  {line: `echo "$(echo a)" "b c" >> ` + out, want: "a b c\n"},
		"arguments-after-filename": {line: `echo "a" > ` + out + ` "b"`, want: "a b\n"},
		"quoted-filename":          {line: `echo "a" "b" > "` + out + `"`, want: "a b\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			require.Nil(t, os.WriteFile(out, nil, 0644))
			f := newFixture(t)

			res := f.run(tc.line)

			assert.Equal(t, env.Continued(0), res.Status)
			contents, err := os.ReadFile(out)
			require.Nil(t, err)
			assert.Equal(t, tc.want, string(contents))
			assert.Empty(t, f.stdout.String())
			assert.Empty(t, f.stderr.String())
		})
	}
}

func TestExecute_pipelineStatusVariable(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"get-not-found": {line: "echo a | definitely-not-a-command-rsh", want: "1"},
		"get-fails":     {line: "true | false", want: "1"},
		"send-fails":    {line: "false | true", want: "0"},
		"get-builtin":   {line: "false | say x", want: "0"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)

			res := f.run(tc.line)

			assert.Equal(t, tc.want, strconv.Itoa(res.Code))
			assert.Equal(t, tc.want, f.env.Get(env.VarStatus))
		})
	}
}

func TestExecute_pipelineBuiltinOutput(t *testing.T) {
	const size = 1 << 20
	f := newFixture(t)

	res := f.run("flood " + strconv.Itoa(size) + " | cat")

	assert.Equal(t, env.Continued(0), res.Status)
	assert.Equal(t, size, f.stdout.Len())

	f.stdout.Reset()
	res = f.run("echo a | say b")
	assert.Equal(t, env.Continued(0), res.Status)
	assert.Equal(t, "b\n", f.stdout.String())
}

func TestExecute_redirectSubstitutedTarget(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t)
	f.env.Set("DIR", dir)

	res := f.run(`say hi > "$(echo $DIR)/sub.txt"`)

	assert.Equal(t, env.Continued(0), res.Status)
	contents, err := os.ReadFile(filepath.Join(dir, "sub.txt"))
	require.Nil(t, err)
	assert.Equal(t, "hi\n", string(contents))
}

func TestExecute_redirectFs(t *testing.T) {
	f := newFixture(t)
	f.in.Fs = afero.NewMemMapFs()

	assert.Equal(t, env.Continued(0), f.run("say in memory > /out.txt").Status)
	assert.Equal(t, env.Continued(0), f.run("say again >> /out.txt").Status)

	contents, err := afero.ReadFile(f.in.Fs, "/out.txt")
	require.Nil(t, err)
	assert.Equal(t, "in memory\nagain\n", string(contents))
}

func TestExecute_subshellText(t *testing.T) {
	f := newFixture(t)
	root := parser.Build(`echo "a $(echo b) c"`, f.env)

	f.in.Execute(context.Background(), root, token.Node, nil, f.stdout)

	quoted := root.Children[1]
	assert.Equal(t, token.QuotedString, quoted.Token.Kind)
	assert.Equal(t, "a b c", quoted.Token.Text)
	assert.Equal(t, "b", quoted.Children[1].Token.Text)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("not an exit error")))
}

func TestLookPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/bin/tool", []byte("#!/bin/sh\n"), 0755))
	require.Nil(t, afero.WriteFile(fs, "/bin/data", []byte("data"), 0644))
	require.Nil(t, fs.MkdirAll("/bin/dir", 0755))

	path, err := LookPath(fs, "/usr/bin:/bin", "tool")
	assert.Nil(t, err)
	assert.Equal(t, "/bin/tool", path)

	_, err = LookPath(fs, "/usr/bin:/bin", "data")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LookPath(fs, "/usr/bin:/bin", "dir")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LookPath(fs, "/usr/bin:/bin", "/bin/data")
	assert.ErrorIs(t, err, os.ErrPermission)

	path, err = LookPath(fs, "", "/bin/tool")
	assert.Nil(t, err)
	assert.Equal(t, "/bin/tool", path)

	_, err = LookPath(fs, "/bin", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
