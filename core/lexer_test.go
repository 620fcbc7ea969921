package core

import (
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := "<< /Type /Page /Kids [1 0 R] >> % comment\n(str) <4142> -3.5 +7 T* ' \" true"
	want := []struct {
		typ TokenType
		val string
	}{
		{TokenDictStart, ""},
		{TokenName, "Type"},
		{TokenName, "Page"},
		{TokenName, "Kids"},
		{TokenArrayStart, ""},
		{TokenInteger, "1"},
		{TokenInteger, "0"},
		{TokenIndirectRef, "R"},
		{TokenArrayEnd, ""},
		{TokenDictEnd, ""},
		{TokenComment, "% comment"},
		{TokenString, "str"},
		{TokenHexString, "AB"},
		{TokenReal, "-3.5"},
		{TokenInteger, "+7"},
		{TokenKeyword, "T*"},
		{TokenKeyword, "'"},
		{TokenKeyword, "\""},
		{TokenKeyword, "true"},
		{TokenEOF, ""},
	}

	l := NewLexer([]byte(input))
	for i, w := range want {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
		if tok.Type != w.typ {
			t.Fatalf("token %d: type %v, want %v", i, tok.Type, w.typ)
		}
		if w.val != "" && string(tok.Value) != w.val {
			t.Errorf("token %d: value %q, want %q", i, tok.Value, w.val)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "(Hello)", "Hello"},
		{"nested parens", "(a(b)c)", "a(b)c"},
		{"escaped parens", `(a\)b\(c)`, "a)b(c"},
		{"newline escapes", `(a\nb\tc)`, "a\nb\tc"},
		{"octal", `(\101\60x)`, "A0x"},
		{"line continuation", "(ab\\\ncd)", "abcd"},
		{"bare CRLF", "(a\r\nb)", "a\nb"},
		{"backslash", `(a\\b)`, `a\b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewLexer([]byte(tt.input)).NextToken()
			if err != nil {
				t.Fatal(err)
			}
			if string(tok.Value) != tt.want {
				t.Errorf("got %q, want %q", tok.Value, tt.want)
			}
		})
	}
}

func TestLexerNameEscapes(t *testing.T) {
	tok, err := NewLexer([]byte("/A#20B#2f")).NextToken()
	if err != nil {
		t.Fatal(err)
	}
	if string(tok.Value) != "A B/" {
		t.Errorf("got %q, want %q", tok.Value, "A B/")
	}
}

func TestLexerHexOddDigits(t *testing.T) {
	tok, err := NewLexer([]byte("<41 4>")).NextToken()
	if err != nil {
		t.Fatal(err)
	}
	if string(tok.Value) != "A@" {
		t.Errorf("got %q", tok.Value)
	}
}

func TestLexerErrors(t *testing.T) {
	for _, in := range []string{"(unterminated", "<41", "<4Z>", ">", ")"} {
		if _, err := NewLexer([]byte(in)).NextToken(); err == nil {
			t.Errorf("NextToken(%q): expected error", in)
		}
	}
}

func TestSkipStreamEOL(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"\r\nX", 2},
		{"\nX", 1},
		{"\rX", 1},
		{"  \nX", 3},
		{"X", 0},
	}
	for _, tt := range tests {
		l := NewLexer([]byte(tt.in))
		l.SkipStreamEOL()
		if l.Pos() != tt.want {
			t.Errorf("SkipStreamEOL(%q) pos = %d, want %d", tt.in, l.Pos(), tt.want)
		}
	}
}
