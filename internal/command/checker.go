package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Checker validates and converts a single token.
type Checker interface {
	Check(token string) (interface{}, bool)
	Info() string
}

type literal struct {
	word string
}

// Literal matches one fixed word, case-insensitively. The parsed value is the word itself.
func Literal(word string) Checker {
	return literal{word: word}
}

func (l literal) Check(token string) (interface{}, bool) {
	if strings.EqualFold(token, l.word) {
		return l.word, true
	}
	return nil, false
}

func (l literal) Info() string {
	return l.word
}

type intRange struct {
	min, max int
}

// Int matches a decimal integer in [min, max].
func Int(min, max int) Checker {
	return intRange{min: min, max: max}
}

func (c intRange) Check(token string) (interface{}, bool) {
	n, err := strconv.Atoi(token)
	if err != nil || n < c.min || n > c.max {
		return nil, false
	}
	return n, true
}

func (c intRange) Info() string {
	return fmt.Sprintf("<%d-%d>", c.min, c.max)
}

type choice struct {
	options []string
}

// Choice matches any of the given options, case-insensitively, and yields the canonical option.
func Choice(options ...string) Checker {
	return choice{options: options}
}

func (c choice) Check(token string) (interface{}, bool) {
	for _, opt := range c.options {
		if strings.EqualFold(token, opt) {
			return opt, true
		}
	}
	return nil, false
}

func (c choice) Info() string {
	return "<" + strings.Join(c.options, "|") + ">"
}

type boolean struct {
	yes, no string
}

// Bool matches yes or no and yields true or false.
func Bool(yes, no string) Checker {
	return boolean{yes: yes, no: no}
}

func (b boolean) Check(token string) (interface{}, bool) {
	switch {
	case strings.EqualFold(token, b.yes):
		return true, true
	case strings.EqualFold(token, b.no):
		return false, true
	}
	return nil, false
}

func (b boolean) Info() string {
	return "<" + b.yes + "|" + b.no + ">"
}

type text struct {
	name string
}

// Text matches any single token.
func Text(name string) Checker {
	return text{name: name}
}

func (t text) Check(token string) (interface{}, bool) {
	return token, true
}

func (t text) Info() string {
	return "<" + t.name + ">"
}
