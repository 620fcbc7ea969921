package font

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/alzaheer/privacyshield/core"
)

// simpleEncoding maps the 256 single-byte codes of a simple font to Unicode.
type simpleEncoding [256]rune

func fromCharmap(cm *charmap.Charmap) *simpleEncoding {
	var e simpleEncoding
	for i := 0; i < 256; i++ {
		e[i] = cm.DecodeByte(byte(i))
	}
	return &e
}

var (
	winAnsi  = fromCharmap(charmap.Windows1252)
	macRoman = fromCharmap(charmap.Macintosh)
	standard = func() *simpleEncoding {
		e := fromCharmap(charmap.ISO8859_1)
		e['\''] = '’'
		e['`'] = '‘'
		return e
	}()
)

// baseEncoding returns the named base encoding, defaulting to StandardEncoding.
func baseEncoding(name string) *simpleEncoding {
	switch name {
	case "WinAnsiEncoding":
		return winAnsi
	case "MacRomanEncoding", "MacExpertEncoding":
		return macRoman
	}
	return standard
}

// buildEncoding resolves a simple font's /Encoding entry, a name or a
// dictionary with /BaseEncoding and /Differences.
func buildEncoding(obj core.Object, symbolic bool) *simpleEncoding {
	var e simpleEncoding
	switch v := obj.(type) {
	case core.Name:
		e = *baseEncoding(string(v))
	case core.Dict:
		base, _ := v.GetName("BaseEncoding")
		e = *baseEncoding(string(base))
		if diffs, ok := v.GetArray("Differences"); ok {
			applyDifferences(&e, diffs)
		}
	default:
		if symbolic {
			// symbolic fonts without an encoding use their built-in one;
			// codes are the best Unicode guess available
			for i := range e {
				e[i] = rune(i)
			}
			return &e
		}
		e = *standard
	}
	return &e
}

func applyDifferences(e *simpleEncoding, diffs core.Array) {
	code := 0
	for _, d := range diffs {
		switch v := d.(type) {
		case core.Int:
			code = int(v)
		case core.Name:
			if code >= 0 && code < 256 {
				if s := glyphToUnicode(string(v)); s != "" {
					e[code] = []rune(s)[0]
				}
			}
			code++
		}
	}
}

// glyphToUnicode maps an Adobe glyph name to text. Only the names that
// occur in practice for Latin text are known; uniXXXX and uXXXX forms are
// decoded.
func glyphToUnicode(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		// suffixes such as a.sc or one.oldstyle
		name = name[:i]
	}
	if len(name) == 1 {
		return name
	}
	if r, ok := glyphNames[name]; ok {
		return string(r)
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		var out []rune
		for i := 3; i+4 <= len(name); i += 4 {
			v, err := strconv.ParseUint(name[i:i+4], 16, 32)
			if err != nil {
				return ""
			}
			out = append(out, rune(v))
		}
		return string(out)
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return string(rune(v))
		}
	}
	return ""
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"quoteright": '’', "quoteleft": '‘', "parenleft": '(',
	"parenright": ')', "asterisk": '*', "plus": '+', "comma": ',',
	"hyphen": '-', "minus": '−', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "asciicircum": '^',
	"underscore": '_', "grave": '`', "braceleft": '{', "bar": '|',
	"braceright": '}', "asciitilde": '~', "bullet": '•',
	"endash": '–', "emdash": '—', "quotedblleft": '“',
	"quotedblright": '”', "quotesinglbase": '‚',
	"quotedblbase": '„', "ellipsis": '…', "dagger": '†',
	"daggerdbl": '‡', "trademark": '™', "copyright": '©',
	"registered": '®', "degree": '°', "section": '§',
	"paragraph": '¶', "fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ',
	"ffi": 'ﬃ', "ffl": 'ﬄ', "nbspace": ' ',
	"eacute": 'é', "egrave": 'è', "ecircumflex": 'ê', "edieresis": 'ë',
	"aacute": 'á', "agrave": 'à', "acircumflex": 'â', "adieresis": 'ä',
	"atilde": 'ã', "aring": 'å', "ccedilla": 'ç', "iacute": 'í',
	"igrave": 'ì', "icircumflex": 'î', "idieresis": 'ï', "ntilde": 'ñ',
	"oacute": 'ó', "ograve": 'ò', "ocircumflex": 'ô', "odieresis": 'ö',
	"otilde": 'õ', "oslash": 'ø', "uacute": 'ú', "ugrave": 'ù',
	"ucircumflex": 'û', "udieresis": 'ü', "yacute": 'ý', "ydieresis": 'ÿ',
	"germandbls": 'ß', "Eacute": 'É', "Egrave": 'È', "Aacute": 'Á',
	"Agrave": 'À', "Adieresis": 'Ä', "Odieresis": 'Ö', "Udieresis": 'Ü',
	"Ccedilla": 'Ç', "Ntilde": 'Ñ', "Oslash": 'Ø', "Aring": 'Å',
	"ae": 'æ', "AE": 'Æ', "oe": 'œ', "OE": 'Œ', "euro": '€',
	"sterling": '£', "yen": '¥', "cent": '¢', "currency": '¤',
	"guillemotleft": '«', "guillemotright": '»', "periodcentered": '·',
	"multiply": '×', "divide": '÷', "plusminus": '±', "mu": 'µ',
}
