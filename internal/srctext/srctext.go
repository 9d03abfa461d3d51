// Package srctext holds small lexical helpers over raw source text: line
// arithmetic, bracket matching that skips string literals, and splitting a
// call's argument list at top level. Nothing here understands a particular
// language; the helpers only know about quotes and brackets.
package srctext

import (
	"regexp"
	"strings"
)

// LineAt returns the 1-based line number of a byte offset.
func LineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	if offset < 0 {
		offset = 0
	}
	return strings.Count(content[:offset], "\n") + 1
}

// LineStart returns the offset of the first byte of the line holding offset.
func LineStart(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	if offset <= 0 {
		return 0
	}
	return strings.LastIndexByte(content[:offset], '\n') + 1
}

// LineEnd returns the offset of the newline ending the line holding offset,
// or len(content) on the last line.
func LineEnd(content string, offset int) int {
	if offset >= len(content) {
		return len(content)
	}
	if offset < 0 {
		offset = 0
	}
	i := strings.IndexByte(content[offset:], '\n')
	if i < 0 {
		return len(content)
	}
	return offset + i
}

// Line returns the text of the line holding offset.
func Line(content string, offset int) string {
	return content[LineStart(content, offset):LineEnd(content, offset)]
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// MatchingClose returns the offset of the bracket closing the one at open,
// skipping over quoted strings. It returns -1 when open is not a bracket or
// the bracket is never closed.
func MatchingClose(content string, open int) int {
	if open < 0 || open >= len(content) {
		return -1
	}
	if _, ok := closers[content[open]]; !ok {
		return -1
	}
	var stack []byte
	for i := open; i < len(content); i++ {
		c := content[i]
		switch c {
		case '"', '\'', '`':
			i = skipString(content, i)
		case '(', '[', '{':
			stack = append(stack, closers[c])
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// skipString returns the offset of the quote closing the literal opened at i.
// Unterminated single and double quoted literals end at the line break.
func skipString(content string, i int) int {
	q := content[i]
	for j := i + 1; j < len(content); j++ {
		switch content[j] {
		case '\\':
			j++
		case q:
			return j
		case '\n':
			if q != '`' {
				return j
			}
		}
	}
	return len(content) - 1
}

// CallArgs splits the argument list of the call whose opening parenthesis is
// at open into top-level, trimmed arguments. It also returns the offset of
// the closing parenthesis (-1 when unbalanced, in which case the arguments
// seen up to the end of content are returned).
func CallArgs(content string, open int) ([]string, int) {
	if open < 0 || open >= len(content) {
		return nil, -1
	}
	end := MatchingClose(content, open)
	body := content
	if end > 0 {
		body = content[:end]
	}
	var args []string
	depth := 0
	start := open + 1
	for i := open + 1; i < len(body); i++ {
		switch body[i] {
		case '"', '\'', '`':
			i = skipString(body, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(body[start:]); last != "" {
		args = append(args, last)
	}
	return args, end
}

// Unquote returns the contents of a single, double or backtick quoted
// literal (optionally prefixed with r, f, b or @ as in Python and C#).
func Unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "rRfFbBu@$")
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'' && q != '`') || s[len(s)-1] != q {
		return "", false
	}
	return s[1 : len(s)-1], true
}

var (
	identPattern  = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:(?:\.|::|->)[A-Za-z_$][\w$]*)*`)
	inlineHandler = regexp.MustCompile(`^(?:async\b|function\b|func\b|fn\b|lambda\b|\(|\|)`)
)

// CalleeName returns the dotted identifier an argument starts with, so that
// "rateLimit({ max: 5 })" yields "rateLimit" and "auth.required" stays as is.
// Inline functions and literals yield "".
func CalleeName(arg string) string {
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "&")
	if arg == "" || inlineHandler.MatchString(arg) || strings.Contains(arg, "=>") {
		return ""
	}
	return identPattern.FindString(arg)
}

// Window returns content[from:to] with both bounds clamped.
func Window(content string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(content) {
		to = len(content)
	}
	if from >= to {
		return ""
	}
	return content[from:to]
}
