package parser

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/token"
	"github.com/kr/pretty"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func testEnv() *env.Environment {
	e := env.New(nil)
	nop := env.BuiltinFunc(func(c *env.Call) (env.Status, error) {
		return env.Continued(0), nil
	})
	e.Builtins["cd"] = nop
	e.Builtins["exit"] = nop
	e.Keywords["time"] = nop
	e.Functions["greet"] = "echo hello"
	e.Set("FOO", "bar")
	return e
}

func word(text string) *CommandNode {
	return &CommandNode{Token: token.Token{Kind: token.Word, WordKind: token.General, Text: text}}
}

func typedWord(text string, kind token.WordKind) *CommandNode {
	return &CommandNode{Token: token.Token{Kind: token.Word, WordKind: kind, Text: text}}
}

func node(kind token.Kind, text string, children ...*CommandNode) *CommandNode {
	return &CommandNode{Token: token.Token{Kind: kind, Text: text}, Children: children}
}

func TestBuild(t *testing.T) {
	cases := map[string]struct {
		line string
		want *CommandNode
	}{
		"empty": {
			line: "",
			want: node(token.Node, ""),
		},
		"simple": {
			line: "ls -la /tmp",
			want: node(token.Node, "ls -la /tmp", word("ls"), word("-la"), word("/tmp")),
		},
		"extra-space": {
			line: "  ls   /tmp ",
			want: node(token.Node, "  ls   /tmp ", word("ls"), word("/tmp")),
		},
		"capabilities": {
			line: "cd greet time ls",
			want: node(token.Node, "cd greet time ls",
				typedWord("cd", token.Builtin),
				typedWord("greet", token.Function),
				typedWord("time", token.Keyword),
				word("ls"),
			),
		},
		"variables": {
			line: "echo $FOO $NOPE x${FOO}y",
			want: node(token.Node, "echo $FOO $NOPE x${FOO}y", word("echo"), word("bar"), word(""), word("xbary")),
		},
		"pipeline": {
			line: "echo a | echo b",
			want: node(token.PipelineRedirect, "echo a | echo b",
				node(token.PipelineSendOutput, "echo a ", word("echo"), word("a")),
				node(token.PipelineGetInput, " echo b", word("echo"), word("b")),
			),
		},
		"pipeline-last-bias": {
			line: "a | b | c",
			want: node(token.PipelineRedirect, "a | b | c",
				node(token.PipelineSendOutput, "a | b ",
					node(token.PipelineRedirect, "a | b ",
						node(token.PipelineSendOutput, "a ", word("a")),
						node(token.PipelineGetInput, " b ", word("b")),
					),
				),
				node(token.PipelineGetInput, " c", word("c")),
			),
		},
		"pipeline-empty-side": {
			line: "echo a |",
			want: node(token.PipelineRedirect, "echo a |",
				node(token.PipelineSendOutput, "echo a ", word("echo"), word("a")),
				node(token.PipelineGetInput, ""),
			),
		},
		"redirect": {
			line: "ls > out.txt",
			want: node(token.OutputRedirect, "ls > out.txt",
				node(token.Node, "ls ", word("ls")),
				node(token.Node, " out.txt", word("out.txt")),
			),
		},
		"append": {
			line: "ls >> out.txt",
			want: node(token.OutputRedirectAppend, "ls >> out.txt",
				node(token.Node, "ls ", word("ls")),
				node(token.Node, " out.txt", word("out.txt")),
			),
		},
		"redirect-no-command": {
			line: "> out.txt",
			want: node(token.OutputRedirect, "> out.txt",
				node(token.Node, " out.txt", word("out.txt")),
			),
		},
		"quoted": {
			line: `echo 'a b'`,
			want: node(token.Node, `echo 'a b'`,
				word("echo"),
				node(token.QuotedString, "a b", word("a b")),
			),
		},
		"quoted-pipe": {
			line: `echo 'a|b'`,
			want: node(token.Node, `echo 'a|b'`,
				word("echo"),
				node(token.QuotedString, "a|b", word("a|b")),
			),
		},
		"quoted-substitution": {
			line: `echo "a $(echo b) c"`,
			want: node(token.Node, `echo "a $(echo b) c"`,
				word("echo"),
				node(token.QuotedString, "a $(echo b) c",
					word("a "),
					node(token.Subshell, "echo b", word("echo"), word("b")),
					word(" c"),
				),
			),
		},
		"double-quote-expands": {
			line: `echo "$FOO" '$FOO'`,
			want: node(token.Node, `echo "$FOO" '$FOO'`,
				word("echo"),
				node(token.QuotedString, "$FOO", word("bar")),
				node(token.QuotedString, "$FOO", word("$FOO")),
			),
		},
		"empty-quotes": {
			line: `echo ""`,
			want: node(token.Node, `echo ""`,
				word("echo"),
				node(token.QuotedString, ""),
			),
		},
		"substitution": {
			line: "echo $(pwd) done",
			want: node(token.Node, "echo $(pwd) done",
				word("echo"),
				node(token.Subshell, "pwd", word("pwd")),
				word("done"),
			),
		},
		"nested-substitution": {
			line: "echo $(echo $(echo x))",
			want: node(token.Node, "echo $(echo $(echo x))",
				word("echo"),
				node(token.Subshell, "echo $(echo x)",
					word("echo"),
					node(token.Subshell, "echo x", word("echo"), word("x")),
				),
			),
		},
		"substitution-pipeline": {
			line: "echo $(ls | wc -l)",
			want: node(token.Node, "echo $(ls | wc -l)",
				word("echo"),
				node(token.Subshell, "ls | wc -l",
					node(token.PipelineRedirect, "ls | wc -l",
						node(token.PipelineSendOutput, "ls ", word("ls")),
						node(token.PipelineGetInput, " wc -l", word("wc"), word("-l")),
					),
				),
			),
		},
		"quote-in-substitution": {
			line: "echo $(echo 'x')",
			want: node(token.Node, "echo $(echo 'x')",
				word("echo"),
				node(token.Subshell, "echo 'x'",
					word("echo"),
					node(token.QuotedString, "x", word("x")),
				),
			),
		},
		"quoted-then-redirect": {
			line: `echo "hi" > f`,
			want: node(token.Node, `echo "hi" > f`,
				node(token.OutputRedirect, " > f",
					node(token.Node, `echo "hi"`,
						word("echo"),
						node(token.QuotedString, "hi", word("hi")),
					),
					node(token.Node, " f", word("f")),
				),
			),
		},
		"quoted-then-words-redirect": {
			line: `echo "hi" there >> f`,
			want: node(token.Node, `echo "hi" there >> f`,
				node(token.OutputRedirectAppend, " there >> f",
					node(token.Node, `echo "hi" there `,
						word("echo"),
						node(token.QuotedString, "hi", word("hi")),
						word("there"),
					),
					node(token.Node, " f", word("f")),
				),
			),
		},
		"redirect-to-quoted": {
			line: `echo hi > "my file"`,
			want: node(token.Node, `echo hi > "my file"`,
				node(token.OutputRedirect, "echo hi > ",
					node(token.Node, "echo hi ", word("echo"), word("hi")),
					node(token.Node, "my file",
						node(token.QuotedString, "my file", word("my file")),
					),
				),
			),
		},
		"two-quoted-then-redirect": {
			line: `echo "a" "b" > out`,
			want: node(token.Node, `echo "a" "b" > out`,
				node(token.OutputRedirect, " > out",
					node(token.Node, `echo "a" "b"`,
						word("echo"),
						node(token.QuotedString, "a", word("a")),
						node(token.QuotedString, "b", word("b")),
					),
					node(token.Node, " out", word("out")),
				),
			),
		},
		"two-substitutions-then-redirect": {
			line: "echo $(echo a) $(echo b) > out",
			want: node(token.Node, "echo $(echo a) $(echo b) > out",
				node(token.OutputRedirect, " > out",
					node(token.Node, "echo $(echo a) $(echo b)",
						word("echo"),
						node(token.Subshell, "echo a", word("echo"), word("a")),
						node(token.Subshell, "echo b", word("echo"), word("b")),
					),
					node(token.Node, " out", word("out")),
				),
			),
		},
		"quoted-redirect-then-argument": {
			line: `echo "a" > out "b"`,
			want: node(token.Node, `echo "a" > out "b"`,
				node(token.OutputRedirect, " > out ",
					node(token.Node, `echo "a"`,
						word("echo"),
						node(token.QuotedString, "a", word("a")),
						node(token.QuotedString, "b", word("b")),
					),
					node(token.Node, " out ", word("out")),
				),
			),
		},
		"quoted-redirect-to-quoted": {
			line: `echo "hi" > "f"`,
			want: node(token.Node, `echo "hi" > "f"`,
				node(token.OutputRedirect, " > ",
					node(token.Node, `echo "hi"`,
						word("echo"),
						node(token.QuotedString, "hi", word("hi")),
					),
					node(token.Node, "f",
						node(token.QuotedString, "f", word("f")),
					),
				),
			),
		},
		"leftover-meta": {
			line: "cat a<b",
			want: node(token.Node, "cat a<b",
				word("cat"),
				&CommandNode{Token: token.Token{Kind: token.Node, Text: "a<b"}},
			),
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got := Build(tc.line, testEnv())

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Build(%q) mismatch (-want +got):\n%s\ngot: %# v", tc.line, diff, pretty.Formatter(got))
			}
		})
	}
}

func TestBuild_noMetaIsFlat(t *testing.T) {
	lines := []string{
		"ls",
		"git commit -m message",
		"a b c d e f",
		"./run.sh --flag=value",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			root := Build(line, testEnv())

			assert.Equal(t, token.Node, root.Token.Kind)
			assert.Equal(t, line, root.Token.Text)
			for _, child := range root.Children {
				assert.Equal(t, token.Word, child.Token.Kind)
				assert.True(t, child.IsLeaf())
			}
		})
	}
}

func TestBuild_pipelineInvariant(t *testing.T) {
	lines := []string{"a | b", "a | b | c | d", "| b", "a |", "echo $(a | b) | c"}

	var check func(t *testing.T, n *CommandNode)
	check = func(t *testing.T, n *CommandNode) {
		if n.Token.Kind == token.PipelineRedirect {
			if assert.Len(t, n.Children, 2) {
				assert.Equal(t, token.PipelineSendOutput, n.Children[0].Token.Kind)
				assert.Equal(t, token.PipelineGetInput, n.Children[1].Token.Kind)
			}
		}
		for _, child := range n.Children {
			check(t, child)
		}
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			check(t, Build(line, testEnv()))
		})
	}
}

func TestBuild_nilEnvironment(t *testing.T) {
	got := Build("ls $HOME", nil)

	want := node(token.Node, "ls $HOME", word("ls"), word(""))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandNode_IsArgument(t *testing.T) {
	assert.True(t, word("a").IsArgument())
	assert.True(t, node(token.Subshell, "x", word("x")).IsArgument())
	assert.True(t, node(token.QuotedString, "x", word("x")).IsArgument())
	assert.False(t, node(token.Node, "x", word("x")).IsArgument())
	assert.False(t, node(token.OutputRedirect, "x", word("x")).IsArgument())
}

func TestDump(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	cases := map[string]string{
		"pipeline": "echo a | cat",
		"quoted":   `echo "a $(echo b) c"`,
		"append":   "ls -l >> log.txt",
	}

	for tn, line := range cases {
		t.Run(tn, func(t *testing.T) {
			buf := &bytes.Buffer{}
			assert.Nil(t, Dump(buf, Build(line, env.New(nil))))

			g.Assert(t, tn, buf.Bytes())
		})
	}
}
