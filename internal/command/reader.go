// Package command parses chat command text against positional argument grammars.
package command

import "strings"

// Reader is a resettable token view over a raw command line.
// Parsing only ever moves the cursor, so a failed match leaves the text untouched.
type Reader struct {
	raw    string
	tokens []string
	pos    int
}

// NewReader splits text on whitespace.
func NewReader(text string) *Reader {
	return &Reader{
		raw:    text,
		tokens: strings.Fields(text),
	}
}

// Raw returns the text the reader was built from.
func (r *Reader) Raw() string {
	return r.raw
}

// Next returns the next token and advances the cursor.
func (r *Reader) Next() (string, bool) {
	if r.pos >= len(r.tokens) {
		return "", false
	}
	tok := r.tokens[r.pos]
	r.pos++
	return tok, true
}

// Peek returns the next token without advancing.
func (r *Reader) Peek() (string, bool) {
	if r.pos >= len(r.tokens) {
		return "", false
	}
	return r.tokens[r.pos], true
}

// Done reports whether every token has been consumed.
func (r *Reader) Done() bool {
	return r.pos >= len(r.tokens)
}

// Reset rewinds the cursor to the first token.
func (r *Reader) Reset() {
	r.pos = 0
}

// Len returns the number of tokens.
func (r *Reader) Len() int {
	return len(r.tokens)
}
