package token

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTables struct {
	builtins, functions, keywords []string
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeTables) IsBuiltin(name string) bool  { return contains(f.builtins, name) }
func (f *fakeTables) IsFunction(name string) bool { return contains(f.functions, name) }
func (f *fakeTables) IsKeyword(name string) bool  { return contains(f.keywords, name) }

func ExampleClassify() {
	fmt.Println(Classify("|", nil).Kind)
	fmt.Println(Classify(">>", nil).Kind)
	fmt.Println(Classify("a'b", nil).Kind)
	fmt.Println(Classify("ls", nil).WordKind)

	// Output: PipelineRedirect
	// OutputRedirectAppend
	// Node
	// General
}

func TestClassify(t *testing.T) {
	tables := &fakeTables{
		builtins:  []string{"cd", "shadowed"},
		functions: []string{"greet", "shadowed", "twice"},
		keywords:  []string{"time", "twice"},
	}

	cases := map[string]struct {
		text     string
		kind     Kind
		wordKind WordKind
	}{
		"pipe":         {"|", PipelineRedirect, NotWord},
		"redirect":     {">", OutputRedirect, NotWord},
		"append":       {">>", OutputRedirectAppend, NotWord},
		"builtin":      {"cd", Word, Builtin},
		"function":     {"greet", Word, Function},
		"keyword":      {"time", Word, Keyword},
		"general":      {"ls", Word, General},
		"builtin-wins": {"shadowed", Word, Builtin},
		"func-wins":    {"twice", Word, Function},
		"space":        {"a b", Node, NotWord},
		"dollar":       {"a$b", Node, NotWord},
		"paren":        {"(x)", Node, NotWord},
		"less-than":    {"a<b", Node, NotWord},
		"pipe-in-word": {"a|b", Node, NotWord},
		"empty":        {"", Word, General},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			tok := Classify(tc.text, tables)

			assert.Equal(t, tc.kind, tok.Kind)
			assert.Equal(t, tc.wordKind, tok.WordKind)
			assert.Equal(t, tc.text, tok.Text)
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "QuotedString", QuotedString.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.Equal(t, "Keyword", Keyword.String())

	text, err := Subshell.MarshalText()
	assert.Nil(t, err)
	assert.Equal(t, "Subshell", string(text))
}

func TestKind_IsStructural(t *testing.T) {
	assert.True(t, PipelineRedirect.IsStructural())
	assert.True(t, OutputRedirect.IsStructural())
	assert.True(t, OutputRedirectAppend.IsStructural())
	assert.False(t, Subshell.IsStructural())
	assert.False(t, Node.IsStructural())
}
