package font

import (
	"golang.org/x/text/unicode/norm"

	"github.com/alzaheer/privacyshield/core"
)

// Resolver follows indirect references; other objects are returned as is.
type Resolver func(core.Object) core.Object

// Font is the subset of a PDF font needed to lay out and rewrite text:
// how strings split into codes, each code's advance width and the Unicode
// text it stands for.
type Font struct {
	BaseFont string
	Subtype  string

	composite bool
	encoding  *simpleEncoding
	codespace *CMap
	toUnicode *CMap

	firstChar    int
	widths       []float64
	missingWidth float64
	standard     *standardMetrics

	cidWidths    map[uint32]float64
	defaultWidth float64

	// glyph-space scale, 1 for everything except Type3 fonts
	scale float64

	// Ascent and Descent in glyph units
	Ascent  float64
	Descent float64
}

// Code is one character code taken from a string operand.
type Code struct {
	Value uint32
	Bytes []byte
}

// Load builds a Font from a font dictionary.
func Load(dict core.Dict, resolve Resolver) *Font {
	f := &Font{scale: 1, defaultWidth: 1000}
	sub, _ := dict.GetName("Subtype")
	base, _ := dict.GetName("BaseFont")
	f.Subtype, f.BaseFont = string(sub), string(base)

	if s, ok := resolve(dict["ToUnicode"]).(*core.Stream); ok {
		if data, err := s.Decode(); err == nil {
			f.toUnicode, _ = ParseCMap(data)
		}
	}

	if f.Subtype == "Type0" {
		f.loadComposite(dict, resolve)
	} else {
		f.loadSimple(dict, resolve)
	}
	if f.Ascent <= 0 {
		f.Ascent = 800
	}
	if f.Descent >= 0 {
		f.Descent = -200
	}
	return f
}

// Default returns a font with Helvetica metrics, used when a page names a
// font that cannot be found.
func Default() *Font {
	return Load(core.Dict{"Subtype": core.Name("Type1"), "BaseFont": core.Name("Helvetica")}, func(o core.Object) core.Object { return o })
}

func (f *Font) loadSimple(dict core.Dict, resolve Resolver) {
	desc, _ := resolve(dict["FontDescriptor"]).(core.Dict)
	f.readDescriptor(desc)
	if m, ok := lookupStandard(f.BaseFont); ok {
		f.standard = &m
		if f.Ascent == 0 {
			f.Ascent, f.Descent = m.ascent, m.descent
		}
	}

	flags, _ := desc.GetInt("Flags")
	symbolic := flags&4 != 0 && flags&32 == 0
	f.encoding = buildEncoding(resolve(dict["Encoding"]), symbolic)

	if fc, ok := resolve(dict["FirstChar"]).(core.Int); ok {
		f.firstChar = int(fc)
	}
	if arr, ok := resolve(dict["Widths"]).(core.Array); ok {
		f.widths = make([]float64, len(arr))
		for i, w := range arr {
			f.widths[i], _ = core.Number(resolve(w))
		}
	}

	if f.Subtype == "Type3" {
		if fm, ok := resolve(dict["FontMatrix"]).(core.Array); ok {
			if v, ok := fm.Floats(); ok && len(v) == 6 {
				f.scale = v[0] * 1000
			}
		}
	}
}

func (f *Font) loadComposite(dict core.Dict, resolve Resolver) {
	f.composite = true
	switch enc := resolve(dict["Encoding"]).(type) {
	case *core.Stream:
		if data, err := enc.Decode(); err == nil {
			f.codespace, _ = ParseCMap(data)
		}
	}

	kids, _ := resolve(dict["DescendantFonts"]).(core.Array)
	if len(kids) == 0 {
		return
	}
	cid, ok := resolve(kids[0]).(core.Dict)
	if !ok {
		return
	}
	desc, _ := resolve(cid["FontDescriptor"]).(core.Dict)
	f.readDescriptor(desc)
	if dw, ok := core.Number(resolve(cid["DW"])); ok {
		f.defaultWidth = dw
	}
	if w, ok := resolve(cid["W"]).(core.Array); ok {
		f.cidWidths = parseCIDWidths(w, resolve)
	}
}

func (f *Font) readDescriptor(desc core.Dict) {
	if desc == nil {
		return
	}
	f.Ascent, _ = desc.GetNumber("Ascent")
	f.Descent, _ = desc.GetNumber("Descent")
	f.missingWidth, _ = desc.GetNumber("MissingWidth")
}

// parseCIDWidths reads a /W array: "c [w1 w2 ...]" and "cfirst clast w".
func parseCIDWidths(w core.Array, resolve Resolver) map[uint32]float64 {
	out := map[uint32]float64{}
	for i := 0; i < len(w); {
		first, ok := core.Number(resolve(w[i]))
		if !ok || i+1 >= len(w) {
			break
		}
		if arr, ok := resolve(w[i+1]).(core.Array); ok {
			for j, e := range arr {
				if v, ok := core.Number(resolve(e)); ok {
					out[uint32(first)+uint32(j)] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last, ok1 := core.Number(resolve(w[i+1]))
		v, ok2 := core.Number(resolve(w[i+2]))
		if ok1 && ok2 && last >= first && last-first < 65536 {
			for c := uint32(first); c <= uint32(last); c++ {
				out[c] = v
			}
		}
		i += 3
	}
	return out
}

// Split breaks a string operand into character codes.
func (f *Font) Split(s []byte) []Code {
	if !f.composite {
		codes := make([]Code, len(s))
		for i := range s {
			codes[i] = Code{Value: uint32(s[i]), Bytes: s[i : i+1]}
		}
		return codes
	}

	var codes []Code
	for i := 0; i < len(s); {
		n := 2
		if f.codespace.HasCodespace() {
			if l := f.codespace.codeLength(s[i:]); l > 0 {
				n = l
			}
		}
		if i+n > len(s) {
			n = len(s) - i
		}
		b := s[i : i+n]
		codes = append(codes, Code{Value: beUint(core.String(b)), Bytes: b})
		i += n
	}
	return codes
}

// Width returns the horizontal advance of a code in glyph units
// (thousandths of text space).
func (f *Font) Width(c Code) float64 {
	if f.composite {
		if w, ok := f.cidWidths[c.Value]; ok {
			return w
		}
		return f.defaultWidth
	}
	if idx := int(c.Value) - f.firstChar; f.widths != nil && idx >= 0 && idx < len(f.widths) {
		return f.widths[idx] * f.scale
	}
	if f.standard != nil {
		return f.standard.width(f.encoding[c.Value&0xff])
	}
	if f.missingWidth > 0 {
		return f.missingWidth * f.scale
	}
	return 500
}

// IsSpace reports whether word spacing applies to the code: only the
// single-byte code 32 qualifies.
func (f *Font) IsSpace(c Code) bool {
	return len(c.Bytes) == 1 && c.Value == 32
}

// Text returns the NFC-normalized Unicode text of a code, or "" when the
// font gives no way to know it.
func (f *Font) Text(c Code) string {
	if s, ok := f.toUnicode.Lookup(c.Value); ok {
		return norm.NFC.String(s)
	}
	if f.composite {
		return ""
	}
	r := f.encoding[c.Value&0xff]
	if r == 0 || r == 0xfffd {
		return ""
	}
	return norm.NFC.String(string(r))
}

// Encode returns the string operand that shows text in this font, and
// false if some rune cannot be encoded. Only simple fonts are supported.
func (f *Font) Encode(text string) ([]byte, bool) {
	if f.composite {
		return nil, false
	}
	out := make([]byte, 0, len(text))
	for _, r := range text {
		found := false
		for code, er := range f.encoding {
			if er == r {
				out = append(out, byte(code))
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}
