package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/josephlewis42/rsh/core/token"
)

// CommandNode is a node in the command-structure tree of one input line.
type CommandNode struct {
	Token    token.Token    `json:"token"`
	Children []*CommandNode `json:"children,omitempty"`
}

func newNode(kind token.Kind, text string, children ...*CommandNode) *CommandNode {
	return &CommandNode{
		Token:    token.Token{Kind: kind, Text: text},
		Children: children,
	}
}

// IsLeaf reports whether the node has no children.
func (n *CommandNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// IsArgument reports whether the node resolves to a single argument string:
// leaves, substitutions and quoted strings.
func (n *CommandNode) IsArgument() bool {
	switch n.Token.Kind {
	case token.Subshell, token.QuotedString:
		return true
	default:
		return n.IsLeaf()
	}
}

// Dump writes an indented, one node per line rendering of the tree.
func Dump(w io.Writer, n *CommandNode) error {
	return dump(w, n, 0)
}

func dump(w io.Writer, n *CommandNode, depth int) error {
	kind := n.Token.Kind.String()
	if n.Token.Kind == token.Word {
		kind = fmt.Sprintf("%s(%s)", kind, n.Token.WordKind)
	}

	if _, err := fmt.Fprintf(w, "%s%s %q\n", strings.Repeat("  ", depth), kind, n.Token.Text); err != nil {
		return err
	}

	for _, child := range n.Children {
		if err := dump(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (n *CommandNode) String() string {
	sb := &strings.Builder{}
	_ = Dump(sb, n)
	return sb.String()
}
