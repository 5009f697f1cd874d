// Package token classifies raw substrings of a command line.
package token

import (
	"fmt"
	"strings"
)

// Kind is the structural role of a token in a command tree.
type Kind int

const (
	Word Kind = iota
	Node
	PipelineRedirect
	PipelineSendOutput
	PipelineGetInput
	OutputRedirect
	OutputRedirectAppend
	QuotedString
	Subshell
)

var kindNames = map[Kind]string{
	Word:                 "Word",
	Node:                 "Node",
	PipelineRedirect:     "PipelineRedirect",
	PipelineSendOutput:   "PipelineSendOutput",
	PipelineGetInput:     "PipelineGetInput",
	OutputRedirect:       "OutputRedirect",
	OutputRedirectAppend: "OutputRedirectAppend",
	QuotedString:         "QuotedString",
	Subshell:             "Subshell",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsRedirect reports whether the kind is one of the output redirections.
func (k Kind) IsRedirect() bool {
	return k == OutputRedirect || k == OutputRedirectAppend
}

// IsStructural reports whether nodes of the kind wire streams rather than
// carry words.
func (k Kind) IsStructural() bool {
	return k == PipelineRedirect || k.IsRedirect()
}

// WordKind refines a Word token by the capability table it was found in.
type WordKind int

const (
	NotWord WordKind = iota
	Builtin
	Function
	Keyword
	General
)

var wordKindNames = map[WordKind]string{
	NotWord:  "NotWord",
	Builtin:  "Builtin",
	Function: "Function",
	Keyword:  "Keyword",
	General:  "General",
}

func (w WordKind) String() string {
	if name, ok := wordKindNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WordKind(%d)", int(w))
}

// MarshalText implements encoding.TextMarshaler.
func (w WordKind) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// Token is a single parsed unit.
type Token struct {
	Kind     Kind     `json:"kind"`
	WordKind WordKind `json:"word_kind,omitempty"`
	// Text holds the literal value. Subshell and QuotedString tokens have it
	// replaced with their resolved value during execution.
	Text string `json:"text"`
}

// Tables answers membership questions against the capability tables.
type Tables interface {
	IsBuiltin(name string) bool
	IsFunction(name string) bool
	IsKeyword(name string) bool
}

// MetaCharacters still need decomposition when found in a token.
const MetaCharacters = "|><'\"$()` \t\n\r"

// HasMeta reports whether s contains an unresolved meta-character.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, MetaCharacters)
}

// Classify determines the token kind for text. Classification never fails,
// unknown words are General.
func Classify(text string, tables Tables) Token {
	tok := Token{Kind: Word, Text: text}

	switch text {
	case "|":
		tok.Kind = PipelineRedirect
		return tok
	case ">":
		tok.Kind = OutputRedirect
		return tok
	case ">>":
		tok.Kind = OutputRedirectAppend
		return tok
	}

	if HasMeta(text) {
		tok.Kind = Node
		return tok
	}

	tok.WordKind = LookupWordKind(text, tables)
	return tok
}

// LookupWordKind resolves the capability table a word belongs to. Builtins
// shadow functions which shadow keywords.
func LookupWordKind(name string, tables Tables) WordKind {
	switch {
	case tables == nil:
		return General
	case tables.IsBuiltin(name):
		return Builtin
	case tables.IsFunction(name):
		return Function
	case tables.IsKeyword(name):
		return Keyword
	default:
		return General
	}
}
