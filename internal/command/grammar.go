package command

import (
	"fmt"
	"strings"
)

// Grammar is an ordered list of positional checkers.
type Grammar []Checker

// Parse matches the whole reader against the grammar. The reader is rewound before the attempt
// and again after a failed one; a match requires every token to be consumed.
func (g Grammar) Parse(r *Reader) (Args, bool) {
	r.Reset()
	args := make(Args, 0, len(g))
	for _, c := range g {
		tok, ok := r.Next()
		if !ok {
			r.Reset()
			return nil, false
		}
		v, ok := c.Check(tok)
		if !ok {
			r.Reset()
			return nil, false
		}
		args = append(args, v)
	}
	if !r.Done() {
		r.Reset()
		return nil, false
	}
	return args, true
}

// Info renders the grammar as a usage line.
func (g Grammar) Info() string {
	parts := make([]string, 0, len(g))
	for _, c := range g {
		parts = append(parts, c.Info())
	}
	return strings.Join(parts, " ")
}

// Args holds parsed argument values in grammar order.
type Args []interface{}

// Int returns argument i as an int. It panics when the grammar did not produce an int there.
func (a Args) Int(i int) int {
	n, ok := a[i].(int)
	if !ok {
		panic(fmt.Sprintf("command: argument %d is %T, not int", i, a[i]))
	}
	return n
}

// String returns argument i as a string.
func (a Args) String(i int) string {
	s, ok := a[i].(string)
	if !ok {
		panic(fmt.Sprintf("command: argument %d is %T, not string", i, a[i]))
	}
	return s
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int) bool {
	b, ok := a[i].(bool)
	if !ok {
		panic(fmt.Sprintf("command: argument %d is %T, not bool", i, a[i]))
	}
	return b
}
