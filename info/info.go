// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package info provides utility functions for manipulating info lines returned
// by the modem in response to AT commands, and in unsolicited result codes.
package info

import (
	"strconv"
	"strings"
)

// HasPrefix returns true if the line begins with the info prefix for the command.
func HasPrefix(line, cmd string) bool {
	return strings.HasPrefix(line, cmd+":")
}

// TrimPrefix removes the command  prefix, if any, and any intervening space
// from the info line.
func TrimPrefix(line, cmd string) string {
	return strings.TrimLeft(strings.TrimPrefix(line, cmd+":"), " ")
}

// Value is a single argument from an info line.
//
// Quoted arguments are always strings. Unquoted arguments that parse as a
// decimal integer also carry the integer value.
type Value struct {
	Str    string
	Int    int
	IsInt  bool
	Quoted bool
}

func (v Value) String() string {
	if v.Quoted {
		return strconv.Quote(v.Str)
	}
	return v.Str
}

// Split separates an info line into the tag and the arguments.
//
// The tag is the section prior to the ':', with any leading '+' or '^'
// removed, e.g. the line
//
//   +CMQTTRECV: 0,"a/b",1,"hello, world"
//
// has tag CMQTTRECV and the four arguments 0, "a/b", 1 and "hello, world".
//
// A line with no ':' is all tag, with no arguments.
func Split(line string) (tag string, args []Value) {
	return SplitN(line, -1)
}

// SplitN is Split limited to at most n arguments.
//
// The last argument is the unparsed remainder of the line, with any
// enclosing quotes removed, so it may contain any characters.
// If n is zero only the tag is returned. If n is negative there is no limit.
func SplitN(line string, n int) (tag string, args []Value) {
	line = strings.TrimRight(line, "\r\n")
	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return trimTag(line), nil
	}
	tag = trimTag(line[:idx])
	rest := strings.TrimLeft(line[idx+1:], " ")
	if len(rest) == 0 || n == 0 {
		return tag, nil
	}
	return tag, splitArgs(rest, n)
}

func trimTag(t string) string {
	return strings.TrimLeft(strings.TrimSpace(t), "+^")
}

// splitArgs splits a comma separated argument list into at most n
// arguments.
//
// A quoted argument runs to the first '"' that is followed by a ',' or the
// end of the line, so embedded quotes and commas are preserved.
func splitArgs(s string, n int) []Value {
	var args []Value
	for {
		s = strings.TrimLeft(s, " ")
		if len(args) == n-1 {
			return append(args, remainder(s))
		}
		if strings.HasPrefix(s, "\"") {
			end := closingQuote(s)
			if end == -1 {
				// unterminated - take the remainder as the string
				args = append(args, Value{Str: strings.TrimSuffix(s[1:], "\""), Quoted: true})
				return args
			}
			args = append(args, Value{Str: s[1:end], Quoted: true})
			s = strings.TrimLeft(s[end+1:], " ")
			if len(s) == 0 {
				return args
			}
			// skip separator
			s = s[1:]
			continue
		}
		idx := strings.IndexByte(s, ',')
		if idx == -1 {
			return append(args, newValue(strings.TrimSpace(s)))
		}
		args = append(args, newValue(strings.TrimSpace(s[:idx])))
		s = s[idx+1:]
	}
}

// remainder converts the rest of the line into a single argument.
func remainder(s string) Value {
	if strings.HasPrefix(s, "\"") {
		s = strings.TrimRight(s, " ")
		return Value{Str: strings.TrimSuffix(s[1:], "\""), Quoted: true}
	}
	return newValue(strings.TrimSpace(s))
}

// closingQuote returns the index of the quote terminating the quoted string
// starting at s[0], or -1 if there is none.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		rest := strings.TrimLeft(s[i+1:], " ")
		if len(rest) == 0 || rest[0] == ',' {
			return i
		}
	}
	return -1
}

func newValue(s string) Value {
	v := Value{Str: s}
	if i, err := strconv.Atoi(s); err == nil {
		v.Int = i
		v.IsInt = true
	}
	return v
}
