package font

import (
	"errors"
	"unicode/utf16"

	"github.com/alzaheer/privacyshield/core"
)

// CMap maps character codes to Unicode (ToUnicode) and knows how input
// bytes split into codes (codespace ranges).
type CMap struct {
	codespaces []codespace
	chars      map[uint32]string
	ranges     []bfRange
}

type codespace struct {
	n         int
	low, high uint32
}

type bfRange struct {
	lo, hi uint32
	n      int // code length in bytes
	dst    []rune
	array  []string
}

// ParseCMap parses CMap program text. Unknown operators are skipped, so
// both ToUnicode maps and embedded encoding CMaps are accepted.
func ParseCMap(data []byte) (*CMap, error) {
	cm := &CMap{chars: map[uint32]string{}}
	p := core.NewContentParser(data)
	var operands []core.Object
	for {
		obj, kw, err := p.Next()
		if errors.Is(err, core.ErrEOF) {
			break
		}
		if err != nil {
			return cm, err
		}
		if kw == nil {
			operands = append(operands, obj)
			continue
		}
		switch string(kw) {
		case "endcodespacerange":
			for i := 0; i+1 < len(operands); i += 2 {
				lo, ok1 := operands[i].(core.String)
				hi, ok2 := operands[i+1].(core.String)
				if ok1 && ok2 && len(lo) == len(hi) && len(lo) > 0 && len(lo) <= 4 {
					cm.codespaces = append(cm.codespaces, codespace{n: len(lo), low: beUint(lo), high: beUint(hi)})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := operands[i].(core.String)
				if !ok || len(src) == 0 {
					continue
				}
				switch dst := operands[i+1].(type) {
				case core.String:
					cm.chars[beUint(src)] = utf16String([]byte(dst))
				case core.Name:
					cm.chars[beUint(src)] = glyphToUnicode(string(dst))
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, ok1 := operands[i].(core.String)
				hi, ok2 := operands[i+1].(core.String)
				if !ok1 || !ok2 || len(lo) == 0 {
					continue
				}
				r := bfRange{lo: beUint(lo), hi: beUint(hi), n: len(lo)}
				switch dst := operands[i+2].(type) {
				case core.String:
					r.dst = []rune(utf16String([]byte(dst)))
				case core.Array:
					for _, e := range dst {
						s, _ := e.(core.String)
						r.array = append(r.array, utf16String([]byte(s)))
					}
				default:
					continue
				}
				if r.hi >= r.lo && (len(r.dst) > 0 || len(r.array) > 0) {
					cm.ranges = append(cm.ranges, r)
				}
			}
		}
		operands = operands[:0]
	}
	return cm, nil
}

// Lookup returns the Unicode text for a code, if mapped.
func (cm *CMap) Lookup(code uint32) (string, bool) {
	if cm == nil {
		return "", false
	}
	if s, ok := cm.chars[code]; ok {
		return s, true
	}
	for _, r := range cm.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.array != nil {
			if int(off) < len(r.array) {
				return r.array[off], true
			}
			return "", false
		}
		// the last UTF-16 unit is incremented across the range
		out := append([]rune(nil), r.dst...)
		out[len(out)-1] += rune(off)
		return string(out), true
	}
	return "", false
}

// HasCodespace reports whether the CMap declares codespace ranges.
func (cm *CMap) HasCodespace() bool {
	return cm != nil && len(cm.codespaces) > 0
}

// codeLength returns the byte length of the code starting at b according
// to the codespace ranges, or 0 when nothing matches.
func (cm *CMap) codeLength(b []byte) int {
	for n := 1; n <= 4 && n <= len(b); n++ {
		v := beUint(core.String(b[:n]))
		for _, cs := range cm.codespaces {
			if cs.n == n && v >= cs.low && v <= cs.high {
				return n
			}
		}
	}
	return 0
}

func beUint(s core.String) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		v = v<<8 | uint32(s[i])
	}
	return v
}

// utf16String decodes UTF-16BE destination strings; odd lengths fall back
// to treating each byte as a code point.
func utf16String(b []byte) string {
	if len(b)%2 != 0 {
		rs := make([]rune, len(b))
		for i, c := range b {
			rs[i] = rune(c)
		}
		return string(rs)
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(u))
}
