package textgrid

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokNumber
	tokFlag
)

func (k tokenKind) String() string {
	switch k {
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokFlag:
		return "flag"
	}
	return "EOF"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	line int
}

type lexer struct {
	src  []rune
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1}
}

// remaining returns the number of runes not yet consumed.
func (l *lexer) remaining() int {
	return len(l.src) - l.pos
}

// decodeText converts UTF-16 input (detected by its byte-order mark) to a Go
// string and strips a UTF-8 byte-order mark.
func decodeText(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return utf16String(data[2:], true)
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return utf16String(data[2:], false)
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:])
	}
	return string(data)
}

func utf16String(b []byte, bigEndian bool) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		if bigEndian {
			u[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
		} else {
			u[i] = uint16(b[2*i+1])<<8 | uint16(b[2*i])
		}
	}
	return string(utf16.Decode(u))
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// next returns the next value token, skipping keys, punctuation, bracketed
// indexes and comments.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '=' || c == ':':
			l.pos++
		case c == '!':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '[':
			for l.pos < len(l.src) && l.src[l.pos] != ']' {
				l.pos++
			}
			l.pos++
		case c == '"':
			return l.quoted()
		case c == '<':
			return l.flag()
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			return l.number()
		default:
			// Keys such as "xmin", "intervals" or "tiers?".
			l.pos++
			for l.pos < len(l.src) && isKeyRune(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func isKeyRune(c rune) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '=', ':', '"', '<', '[', '!':
		return false
	}
	return true
}

func (l *lexer) quoted() (token, error) {
	start := l.line
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '\n' {
			l.line++
		}
		if c == '"' {
			// A doubled quote is an escaped quote.
			if l.peek() == '"' {
				sb.WriteRune('"')
				l.pos++
				continue
			}
			return token{kind: tokString, text: sb.String(), line: start}, nil
		}
		sb.WriteRune(c)
	}
	return token{}, fmt.Errorf("%w: line %d: unterminated string", ErrSyntax, start)
}

func (l *lexer) flag() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		if l.src[l.pos] == '\n' {
			return token{}, fmt.Errorf("%w: line %d: unterminated flag", ErrSyntax, l.line)
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{}, fmt.Errorf("%w: line %d: unterminated flag", ErrSyntax, l.line)
	}
	text := string(l.src[start+1 : l.pos])
	l.pos++
	return token{kind: tokFlag, text: text, line: l.line}, nil
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			l.pos++
			continue
		}
		break
	}
	text := string(l.src[start:l.pos])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, fmt.Errorf("%w: line %d: bad number %q", ErrSyntax, l.line, text)
	}
	return token{kind: tokNumber, text: text, num: v, line: l.line}, nil
}
