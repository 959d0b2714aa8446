package analysis

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenPosition struct {
	Token    string
	Position uint64
}

// Analyzer defines the interface for text analysis.
type Analyzer interface {
	Analyze(text string) []TokenPosition
}

// Whitespace splits already-normalized text on runs of whitespace.
// No case folding or punctuation stripping is applied.
type Whitespace struct{}

func NewWhitespace() *Whitespace {
	return &Whitespace{}
}

// Analyze tokenizes text into tokens with positions.
func (a *Whitespace) Analyze(text string) []TokenPosition {
	fields := strings.Fields(text)
	tokens := make([]TokenPosition, len(fields))
	for i, f := range fields {
		tokens[i] = TokenPosition{Token: f, Position: uint64(i)}
	}
	return tokens
}

// Simple performs basic tokenization: lowercasing and splitting on non-alphanumeric.
type Simple struct{}

func NewSimple() *Simple {
	return &Simple{}
}

// Analyze tokenizes text into tokens with positions.
func (a *Simple) Analyze(text string) []TokenPosition {
	var tokens []TokenPosition
	var currentToken strings.Builder
	var position uint64

	text = strings.ToLower(text)

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			currentToken.WriteRune(r)
		} else {
			if currentToken.Len() > 0 {
				tokens = append(tokens, TokenPosition{
					Token:    currentToken.String(),
					Position: position,
				})
				position++
				currentToken.Reset()
			}
		}
	}

	if currentToken.Len() > 0 {
		tokens = append(tokens, TokenPosition{
			Token:    currentToken.String(),
			Position: position,
		})
	}

	return tokens
}

// Terms returns just the token strings of an analyzed text.
func Terms(a Analyzer, text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, tp := range tokens {
		terms[i] = tp.Token
	}
	return terms
}

// ByName returns the analyzer registered under name. An empty name selects
// the whitespace analyzer.
func ByName(name string) (Analyzer, error) {
	switch strings.ToLower(name) {
	case "", "whitespace":
		return NewWhitespace(), nil
	case "simple":
		return NewSimple(), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
}
