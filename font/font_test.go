package font

import (
	"testing"

	"github.com/alzaheer/privacyshield/core"
)

func identity(o core.Object) core.Object { return o }

const toUnicode = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <00660069>
endbfchar
2 beginbfrange
<0024> <0026> <0041>
<0030> <0031> [<0078> <0079>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseCMap(t *testing.T) {
	cm, err := ParseCMap([]byte(toUnicode))
	if err != nil {
		t.Fatalf("ParseCMap: %v", err)
	}
	tests := []struct {
		code uint32
		want string
		ok   bool
	}{
		{0x03, " ", true},
		{0x11, "fi", true},
		{0x24, "A", true},
		{0x26, "C", true},
		{0x27, "", false},
		{0x30, "x", true},
		{0x31, "y", true},
	}
	for _, tt := range tests {
		got, ok := cm.Lookup(tt.code)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%#x) = %q, %v; want %q, %v", tt.code, got, ok, tt.want, tt.ok)
		}
	}
	if !cm.HasCodespace() {
		t.Error("expected codespace ranges")
	}
}

func TestSimpleFontText(t *testing.T) {
	tests := []struct {
		name string
		dict core.Dict
		code byte
		want string
	}{
		{"winansi", core.Dict{"Subtype": core.Name("TrueType"), "Encoding": core.Name("WinAnsiEncoding")}, 0x80, "€"},
		{"standard quote", core.Dict{"Subtype": core.Name("Type1")}, '\'', "’"},
		{"differences", core.Dict{
			"Subtype": core.Name("Type1"),
			"Encoding": core.Dict{
				"Differences": core.Array{core.Int(65), core.Name("Eacute"), core.Name("uni0042")},
			},
		}, 66, "B"},
		{"differences glyph", core.Dict{
			"Subtype":  core.Name("Type1"),
			"Encoding": core.Dict{"Differences": core.Array{core.Int(65), core.Name("Eacute")}},
		}, 65, "É"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Load(tt.dict, identity)
			codes := f.Split([]byte{tt.code})
			if len(codes) != 1 {
				t.Fatalf("Split returned %d codes", len(codes))
			}
			if got := f.Text(codes[0]); got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWidths(t *testing.T) {
	f := Load(core.Dict{
		"Subtype":   core.Name("TrueType"),
		"BaseFont":  core.Name("ABCDEF+Arial"),
		"FirstChar": core.Int(65),
		"Widths":    core.Array{core.Int(700), core.Int(650)},
	}, identity)

	tests := []struct {
		code byte
		want float64
	}{
		{'A', 700},
		{'B', 650},
		{'C', 722}, // outside /Widths, Helvetica metrics
		{' ', 278},
	}
	for _, tt := range tests {
		c := f.Split([]byte{tt.code})[0]
		if got := f.Width(c); got != tt.want {
			t.Errorf("Width(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
	if !f.IsSpace(f.Split([]byte(" "))[0]) {
		t.Error("code 32 should be a space")
	}
}

func TestCompositeFont(t *testing.T) {
	tu, err := core.NewFlateStream(core.Dict{}, []byte(toUnicode))
	if err != nil {
		t.Fatal(err)
	}
	f := Load(core.Dict{
		"Subtype":   core.Name("Type0"),
		"Encoding":  core.Name("Identity-H"),
		"ToUnicode": tu,
		"DescendantFonts": core.Array{core.Dict{
			"Subtype": core.Name("CIDFontType2"),
			"DW":      core.Int(1000),
			"W": core.Array{
				core.Int(3), core.Array{core.Int(250)},
				core.Int(36), core.Int(38), core.Int(600),
			},
			"FontDescriptor": core.Dict{"Ascent": core.Int(900), "Descent": core.Int(-250)},
		}},
	}, identity)

	codes := f.Split([]byte{0x00, 0x24, 0x00, 0x03, 0x00, 0x11, 0x00, 0x40})
	if len(codes) != 4 {
		t.Fatalf("Split returned %d codes, want 4", len(codes))
	}
	wantText := []string{"A", " ", "fi", ""}
	wantWidth := []float64{600, 250, 1000, 1000}
	for i, c := range codes {
		if got := f.Text(c); got != wantText[i] {
			t.Errorf("code %d: Text = %q, want %q", i, got, wantText[i])
		}
		if got := f.Width(c); got != wantWidth[i] {
			t.Errorf("code %d: Width = %v, want %v", i, got, wantWidth[i])
		}
	}
	if f.IsSpace(codes[1]) {
		t.Error("two-byte codes never take word spacing")
	}
	if f.Ascent != 900 || f.Descent != -250 {
		t.Errorf("ascent/descent = %v/%v", f.Ascent, f.Descent)
	}
}

func TestNFC(t *testing.T) {
	cm := `1 beginbfchar
<01> <00650301>
endbfchar`
	s, err := core.NewFlateStream(core.Dict{}, []byte(cm))
	if err != nil {
		t.Fatal(err)
	}
	f := Load(core.Dict{"Subtype": core.Name("Type1"), "ToUnicode": s}, identity)
	if got := f.Text(Code{Value: 1, Bytes: []byte{1}}); got != "é" {
		t.Errorf("Text = %q, want precomposed é", got)
	}
}

func TestEncode(t *testing.T) {
	f := Default()
	b, ok := f.Encode("[REDACTED]")
	if !ok || string(b) != "[REDACTED]" {
		t.Errorf("Encode = %q, %v", b, ok)
	}
	if _, ok := f.Encode("日本"); ok {
		t.Error("expected failure for unencodable text")
	}
}
