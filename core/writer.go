package core

import (
	"bytes"
	"encoding/hex"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Format returns the PDF syntax for o. Dictionary keys are written in
// sorted order so output is deterministic.
func Format(o Object) string {
	var buf bytes.Buffer
	appendObject(&buf, o)
	return buf.String()
}

// WriteObject writes the PDF syntax for o to w. Streams are written with
// their dictionary, a /Length matching Data, and the raw data.
func WriteObject(w io.Writer, o Object) error {
	var buf bytes.Buffer
	appendObject(&buf, o)
	_, err := w.Write(buf.Bytes())
	return err
}

func appendObject(buf *bytes.Buffer, o Object) {
	switch v := o.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool, Int, Real, IndirectRef:
		buf.WriteString(v.String())
	case Name:
		appendName(buf, string(v))
	case String:
		appendString(buf, string(v))
	case Array:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			appendObject(buf, e)
		}
		buf.WriteByte(']')
	case Dict:
		appendDict(buf, v)
	case *Stream:
		d := v.Dict.Clone()
		d["Length"] = Int(len(v.Data))
		appendDict(buf, d)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	}
}

func appendDict(buf *bytes.Buffer, d Dict) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		appendName(buf, k)
		buf.WriteByte(' ')
		appendObject(buf, d[k])
	}
	buf.WriteString(">>")
}

func appendName(buf *bytes.Buffer, n string) {
	const hexDigits = "0123456789ABCDEF"
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			buf.WriteByte('#')
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0x0f])
			continue
		}
		buf.WriteByte(c)
	}
}

// appendString writes a literal string when the bytes are mostly
// printable and a hexadecimal string otherwise.
func appendString(buf *bytes.Buffer, s string) {
	binary := 0
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c < 0x20 && c != '\n' && c != '\r' && c != '\t') || c >= 0x7f {
			binary++
		}
	}
	if binary > len(s)/4 {
		buf.WriteByte('<')
		buf.WriteString(hex.EncodeToString([]byte(s)))
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if c < 0x20 || c >= 0x7f {
				buf.WriteByte('\\')
				buf.WriteString(strconv.FormatInt(int64(c)|0x200, 8)[1:])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// formatReal writes a number without exponent notation, which PDF does not
// allow, trimmed to at most six decimals.
func formatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}
