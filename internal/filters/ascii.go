package filters

import (
	"bytes"
	"fmt"
)

// ASCIIHexDecode decodes hexadecimal data terminated by '>'. Whitespace is
// skipped and an odd final digit is padded with 0.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for i, c := range data {
		if c == '>' {
			break
		}
		if isSpace(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("asciihex: invalid character %q at %d", c, i)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

// ASCII85Decode decodes base-85 data terminated by "~>". The 'z' shorthand
// for four zero bytes is accepted; a partial final group is completed with
// 'u' characters as the format requires.
func ASCII85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out := make([]byte, 0, len(data)*4/5)
	var group [5]byte
	n := 0
loop:
	for i, c := range data {
		switch {
		case c == '~':
			break loop
		case isSpace(c):
			continue
		case c == 'z' && n == 0:
			out = append(out, 0, 0, 0, 0)
			continue
		case c < '!' || c > 'u':
			return nil, fmt.Errorf("ascii85: invalid character %q at %d", c, i)
		}
		group[n] = c - '!'
		n++
		if n == 5 {
			out = appendGroup(out, group, 4)
			n = 0
		}
	}
	if n == 1 {
		return nil, fmt.Errorf("ascii85: dangling final character")
	}
	if n > 1 {
		for i := n; i < 5; i++ {
			group[i] = 'u' - '!'
		}
		out = appendGroup(out, group, n-1)
	}
	return out, nil
}

func appendGroup(out []byte, g [5]byte, keep int) []byte {
	var v uint32
	for _, d := range g {
		v = v*85 + uint32(d)
	}
	b := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	return append(out, b[:keep]...)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// isSpace reports PDF white-space characters.
func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
