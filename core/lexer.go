package core

import (
	"bytes"
	"fmt"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, operators
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R (after two numbers)
)

// Token represents a lexical token. For strings, Value holds the decoded
// bytes; for names, the name without its slash and with #xx escapes resolved.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int
}

// Lexer splits PDF syntax held in memory into tokens. Working on a byte
// slice lets callers jump to xref offsets and read raw stream bodies.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a new lexer over data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int { return l.pos }

// Seek moves the lexer to an absolute byte offset.
func (l *Lexer) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(l.data) {
		pos = len(l.data)
	}
	l.pos = pos
}

// Data returns the underlying input.
func (l *Lexer) Data() []byte { return l.data }

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.data) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	switch c := l.data[l.pos]; c {
	case '%':
		end := l.pos
		for end < len(l.data) && l.data[end] != '\r' && l.data[end] != '\n' {
			end++
		}
		l.pos = end
		return Token{Type: TokenComment, Value: l.data[start:end], Pos: start}, nil
	case '[':
		l.pos++
		return Token{Type: TokenArrayStart, Pos: start}, nil
	case ']':
		l.pos++
		return Token{Type: TokenArrayEnd, Pos: start}, nil
	case '{', '}':
		// PostScript calculator braces, treated as keywords
		l.pos++
		return Token{Type: TokenKeyword, Value: l.data[start:l.pos], Pos: start}, nil
	case '(':
		return l.readString()
	case '<':
		if l.peekAt(1) == '<' {
			l.pos += 2
			return Token{Type: TokenDictStart, Pos: start}, nil
		}
		return l.readHexString()
	case '>':
		if l.peekAt(1) == '>' {
			l.pos += 2
			return Token{Type: TokenDictEnd, Pos: start}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at offset %d", start)
	case ')':
		return Token{}, fmt.Errorf("unbalanced ')' at offset %d", start)
	case '/':
		return l.readName()
	}

	word := l.readRegular()
	if looksNumeric(word) {
		if bytes.ContainsAny(word, ".") {
			return Token{Type: TokenReal, Value: word, Pos: start}, nil
		}
		return Token{Type: TokenInteger, Value: word, Pos: start}, nil
	}
	if len(word) == 1 && word[0] == 'R' {
		return Token{Type: TokenIndirectRef, Value: word, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Value: word, Pos: start}, nil
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off < len(l.data) {
		return l.data[l.pos+off]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
}

// readRegular reads a run of regular (non-white, non-delimiter) characters.
func (l *Lexer) readRegular() []byte {
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return l.data[start:l.pos]
}

func looksNumeric(w []byte) bool {
	digits := 0
	for i, c := range w {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

// readString reads a literal string, resolving escapes and keeping
// balanced inner parentheses.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		case '\\':
			if l.pos >= len(l.data) {
				break
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.data) && isOctalDigit(l.data[l.pos]); i++ {
					v = v*8 + int(l.data[l.pos]-'0')
					l.pos++
				}
				buf.WriteByte(byte(v))
			default:
				// covers \( \) \\ and unknown escapes
				buf.WriteByte(e)
			}
		case '\r':
			// an unescaped end-of-line is read as a single LF
			if l.pos < len(l.data) && l.data[l.pos] == '\n' {
				l.pos++
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(c)
		}
	}
	return Token{}, fmt.Errorf("unterminated string at offset %d", start)
}

// readHexString reads <...> and returns the decoded bytes.
func (l *Lexer) readHexString() (Token, error) {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	var hi byte
	half := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if half {
				buf.WriteByte(hi << 4)
			}
			return Token{Type: TokenHexString, Value: buf.Bytes(), Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return Token{}, fmt.Errorf("invalid hex digit %q at offset %d", c, l.pos-1)
		}
		if half {
			buf.WriteByte(hi<<4 | hexValue(c))
		} else {
			hi = hexValue(c)
		}
		half = !half
	}
	return Token{}, fmt.Errorf("unterminated hex string at offset %d", start)
}

func (l *Lexer) readName() (Token, error) {
	start := l.pos
	l.pos++
	raw := l.readRegular()
	if bytes.IndexByte(raw, '#') < 0 {
		return Token{Type: TokenName, Value: raw, Pos: start}, nil
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) && isHexDigit(raw[i+1]) && isHexDigit(raw[i+2]) {
			out = append(out, hexValue(raw[i+1])<<4|hexValue(raw[i+2]))
			i += 2
			continue
		}
		out = append(out, raw[i])
	}
	return Token{Type: TokenName, Value: out, Pos: start}, nil
}

// SkipStreamEOL consumes the end-of-line marker that follows the stream
// keyword: CRLF or LF, and a lone CR which some writers emit.
func (l *Lexer) SkipStreamEOL() {
	// spaces before the EOL are a common violation
	for l.pos < len(l.data) && l.data[l.pos] == ' ' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
}

// ReadBytes returns the next n bytes and advances past them.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || l.pos+n > len(l.data) {
		return nil, fmt.Errorf("read of %d bytes at offset %d overruns input of %d bytes", n, l.pos, len(l.data))
	}
	b := l.data[l.pos : l.pos+n]
	l.pos += n
	return b, nil
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// IsWhitespace reports whether b is PDF white-space.
func IsWhitespace(b byte) bool { return isWhitespace(b) }

// IsDelimiter reports whether b is a PDF delimiter character.
func IsDelimiter(b byte) bool { return isDelimiter(b) }
