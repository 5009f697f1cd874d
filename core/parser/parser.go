// Package parser builds command-structure trees from input lines.
//
// The builder is a recursive descent over a fixed rule precedence, each rule
// applied to the whole remaining string:
//
//	1. pipeline            a | b
//	2. quoting             '...' or "..."
//	3. substitution        $( ... )
//	4. append redirection  a >> b
//	5. redirection         a > b
//	6. simple command      whitespace separated words
//
// Sub-strings produced by a rule are built through the same entry point so
// the precedence applies at every nesting level. Operators are only
// recognised outside quotes and substitutions, and the split point of
// pipelines and redirections is the last operator on the line.
package parser

import (
	"os"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/rsh/core/token"
)

// Environment provides the variable and capability lookups used while
// building.
type Environment interface {
	token.Tables
	Get(key string) string
}

// Build parses line into a command-structure tree. Building never fails,
// ambiguous input resolves through the rule precedence.
func Build(line string, e Environment) *CommandNode {
	b := &builder{
		env:      e,
		headless: make(map[*CommandNode]bool),
	}
	return b.build(line)
}

type builder struct {
	env Environment

	// headless holds redirections that had nothing before the operator.
	headless map[*CommandNode]bool
}

func (b *builder) getenv(key string) string {
	if b.env == nil {
		return ""
	}
	return b.env.Get(key)
}

func (b *builder) build(s string) *CommandNode {
	if i := lastTopLevel(s, "|"); i >= 0 {
		return b.pipeline(s, i)
	}
	if open, close, ok := findQuote(s); ok {
		return b.quoted(s, open, close)
	}
	if start, end, ok := findSubstitution(s); ok {
		return b.substitution(s, start, end)
	}
	if i := lastTopLevel(s, ">>"); i >= 0 {
		return b.redirect(s, i, len(">>"), token.OutputRedirectAppend)
	}
	if i := lastTopLevel(s, ">"); i >= 0 {
		return b.redirect(s, i, len(">"), token.OutputRedirect)
	}
	return b.simple(s)
}

func (b *builder) pipeline(s string, i int) *CommandNode {
	return newNode(token.PipelineRedirect, s,
		b.stage(s[:i], token.PipelineSendOutput),
		b.stage(s[i+1:], token.PipelineGetInput),
	)
}

// stage builds one side of a pipeline, empty sides become empty commands.
func (b *builder) stage(s string, kind token.Kind) *CommandNode {
	if strings.TrimSpace(s) == "" {
		return newNode(kind, s)
	}
	return retag(b.build(s), kind)
}

// retag changes the kind of a plain root; structural roots are wrapped so
// their shape survives.
func retag(n *CommandNode, kind token.Kind) *CommandNode {
	if n.Token.Kind == token.Node {
		n.Token.Kind = kind
		return n
	}
	return newNode(kind, n.Token.Text, n)
}

func (b *builder) quoted(s string, open, close int) *CommandNode {
	a := &assembly{b: b, root: newNode(token.Node, s)}
	a.splice(s[:open], "", false)
	a.add(b.quotedString(s[open+1:close], s[open]))
	a.splice(s[close+1:], s[:close+1], true)
	return a.root
}

// quotedString builds the interior of a quoted span. Its children alternate
// between literal text and substitutions.
func (b *builder) quotedString(inner string, quote byte) *CommandNode {
	q := newNode(token.QuotedString, inner)

	literal := func(text string) {
		if text == "" {
			return
		}
		if quote == '"' {
			text = os.Expand(text, b.getenv)
		}
		q.Children = append(q.Children, &CommandNode{
			Token: token.Token{Kind: token.Word, WordKind: token.General, Text: text},
		})
	}

	rest := inner
	for {
		start, end, ok := findSubstitution(rest)
		if !ok {
			break
		}
		literal(rest[:start])
		q.Children = append(q.Children, b.subshell(rest[start+2:end]))
		rest = rest[end+1:]
	}
	literal(rest)

	return q
}

func (b *builder) subshell(inner string) *CommandNode {
	return retag(b.build(inner), token.Subshell)
}

func (b *builder) substitution(s string, start, end int) *CommandNode {
	a := &assembly{b: b, root: newNode(token.Node, s)}
	a.splice(s[:start], "", false)
	a.add(b.subshell(s[start+2 : end]))
	a.splice(s[end+1:], s[:end+1], true)
	return a.root
}

func (b *builder) redirect(s string, i, width int, kind token.Kind) *CommandNode {
	before, after := s[:i], s[i+width:]

	node := newNode(kind, s)
	if strings.TrimSpace(before) != "" {
		node.Children = append(node.Children, b.build(before))
	} else {
		b.headless[node] = true
	}
	if strings.TrimSpace(after) != "" {
		node.Children = append(node.Children, b.build(after))
	}
	return node
}

func (b *builder) simple(s string) *CommandNode {
	root := newNode(token.Node, s)
	for _, word := range splitWords(s) {
		if strings.Contains(word, "$") {
			word = os.Expand(word, b.getenv)
		}
		tok := token.Classify(word, b.env)
		root.Children = append(root.Children, &CommandNode{Token: tok})
	}
	return root
}

// splitWords splits on white space honoring backslash escapes. Input the
// lexer rejects falls back to a plain split.
func splitWords(s string) []string {
	words, err := shlex.Split(s, true)
	if err != nil {
		return strings.Fields(s)
	}
	return words
}

// assembly collects the children of a node built from fragments around a
// quoted span or substitution.
type assembly struct {
	b    *builder
	root *CommandNode

	// pending is a redirection that ended its fragment and waits for the
	// next element to be its filename.
	pending *CommandNode
}

func (a *assembly) add(n *CommandNode) {
	if a.pending != nil {
		a.pending.Children = append(a.pending.Children, newNode(token.Node, n.Token.Text, n))
		a.pending = nil
		return
	}

	// Words after a redirection's filename still belong to its command.
	if last := a.last(); last != nil && last.Token.Kind.IsRedirect() && a.b.hasTarget(last) && n.IsArgument() {
		a.b.appendCommand(last, n)
		return
	}
	a.root.Children = append(a.root.Children, n)
}

func (a *assembly) last() *CommandNode {
	if len(a.root.Children) == 0 {
		return nil
	}
	return a.root.Children[len(a.root.Children)-1]
}

// splice builds frag and adds it to the root. Plain roots contribute their
// children, structural roots are added whole. prefix is the source already
// consumed before a trailing fragment.
func (a *assembly) splice(frag, prefix string, trailing bool) {
	trimmed := strings.TrimSpace(frag)
	if trimmed == "" {
		return
	}

	sub := a.b.build(frag)

	if trailing && len(a.root.Children) > 0 {
		// A redirection leading the fragment applies to everything built so
		// far, however deeply the fragment nested it.
		if head := leadingRedirect(sub); head != nil {
			a.b.prependCommand(head, a.root.Children, prefix)
			a.root.Children = nil
		}
	}

	if sub.Token.Kind == token.Node {
		for _, child := range sub.Children {
			a.add(child)
		}
	} else {
		a.add(sub)
	}

	if last := a.last(); !trailing && last != nil && last.Token.Kind.IsRedirect() && !a.b.hasTarget(last) {
		a.pending = last
	}
}

// leadingRedirect returns the redirection that starts the tree n or nil.
func leadingRedirect(n *CommandNode) *CommandNode {
	switch {
	case n.Token.Kind.IsRedirect():
		return n
	case n.Token.Kind == token.Node && len(n.Children) > 0 && n.Children[0].Token.Kind.IsRedirect():
		return n.Children[0]
	default:
		return nil
	}
}

// hasTarget reports whether the redirection r already holds its filename.
func (b *builder) hasTarget(r *CommandNode) bool {
	if b.headless[r] {
		return len(r.Children) >= 1
	}
	return len(r.Children) >= 2
}

// prependCommand puts words in front of the command run by the redirection
// chain rooted at r.
func (b *builder) prependCommand(r *CommandNode, words []*CommandNode, text string) {
	if b.headless[r] {
		delete(b.headless, r)
		r.Children = append([]*CommandNode{newNode(token.Node, text, words...)}, r.Children...)
		return
	}

	cmd := r.Children[0]
	switch {
	case cmd.Token.Kind.IsRedirect():
		b.prependCommand(cmd, words, text)
	case cmd.Token.Kind == token.Node:
		cmd.Children = append(append([]*CommandNode{}, words...), cmd.Children...)
		cmd.Token.Text = text + cmd.Token.Text
	default:
		r.Children[0] = newNode(token.Node, text+cmd.Token.Text, append(append([]*CommandNode{}, words...), cmd)...)
	}
}

// appendCommand adds n to the end of the command run by the redirection
// chain rooted at r.
func (b *builder) appendCommand(r, n *CommandNode) {
	if b.headless[r] {
		delete(b.headless, r)
		r.Children = append([]*CommandNode{newNode(token.Node, "", n)}, r.Children...)
		return
	}

	cmd := r.Children[0]
	switch {
	case cmd.Token.Kind.IsRedirect():
		b.appendCommand(cmd, n)
	case cmd.Token.Kind == token.Node:
		cmd.Children = append(cmd.Children, n)
	default:
		r.Children[0] = newNode(token.Node, cmd.Token.Text, cmd, n)
	}
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"'
}

func isSubstitutionStart(s string, i int) bool {
	return s[i] == '$' && i+1 < len(s) && s[i+1] == '('
}

// lastTopLevel returns the index of the last op outside quotes and
// substitutions or -1.
func lastTopLevel(s, op string) int {
	last := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuote(c):
			if end := strings.IndexByte(s[i+1:], c); end >= 0 {
				i += end + 1
				continue
			}
		case isSubstitutionStart(s, i):
			depth++
			i++
			continue
		case c == '(' && depth > 0:
			depth++
			continue
		case c == ')' && depth > 0:
			depth--
			continue
		}

		if depth == 0 && strings.HasPrefix(s[i:], op) {
			last = i
		}
	}
	return last
}

// findQuote returns the bounds of the first complete quoted span outside
// substitutions. Unterminated quotes are literal.
func findQuote(s string) (open, close int, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuote(c):
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				continue
			}
			if depth == 0 {
				return i, i + 1 + end, true
			}
			i += end + 1
		case isSubstitutionStart(s, i):
			depth++
			i++
		case c == '(' && depth > 0:
			depth++
		case c == ')' && depth > 0:
			depth--
		}
	}
	return 0, 0, false
}

// findSubstitution returns the bounds of the first balanced $( ... ), start
// indexes the '$' and end the closing ')'.
func findSubstitution(s string) (start, end int, ok bool) {
	start = strings.Index(s, "$(")
	if start < 0 {
		return 0, 0, false
	}

	depth := 0
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case isQuote(c):
			if end := strings.IndexByte(s[i+1:], c); end >= 0 {
				i += end + 1
			}
		case isSubstitutionStart(s, i):
			depth++
			i++
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return start, i, true
			}
		}
	}
	return 0, 0, false
}
