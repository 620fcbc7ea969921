package filters

import (
	"bytes"
	"compress/lzw"
	"encoding/ascii85"
	"errors"
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("BT /F1 12 Tf 72 720 Td (Hello) Tj ET"),
		bytes.Repeat([]byte{0, 1, 2, 3, 255}, 1000),
	}
	for _, in := range inputs {
		enc, err := FlateEncode(in)
		if err != nil {
			t.Fatalf("FlateEncode: %v", err)
		}
		got, err := FlateDecode(enc, nil)
		if err != nil {
			t.Fatalf("FlateDecode: %v", err)
		}
		if !bytes.Equal(got, in) {
			t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(in))
		}
	}
}

func TestFlateDecodeTruncated(t *testing.T) {
	in := bytes.Repeat([]byte("redacted text "), 500)
	enc, err := FlateEncode(in)
	if err != nil {
		t.Fatal(err)
	}
	// drop the adler-32 trailer
	got, err := FlateDecode(enc[:len(enc)-4], nil)
	if err != nil {
		t.Fatalf("truncated stream should still decode: %v", err)
	}
	if !bytes.Equal(in, got) {
		t.Errorf("got %d bytes, want %d", len(got), len(in))
	}
}

func TestFlateDecodeGarbage(t *testing.T) {
	if _, err := FlateDecode([]byte("not zlib at all"), nil); err == nil {
		t.Error("expected error for invalid zlib header")
	}
}

func TestPNGPredictors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []byte
	}{
		{"none", []byte{0, 1, 2, 3, 0, 4, 5, 6}, []byte{1, 2, 3, 4, 5, 6}},
		{"sub", []byte{1, 1, 1, 1, 1, 2, 2, 2}, []byte{1, 2, 3, 2, 4, 6}},
		{"up", []byte{0, 1, 2, 3, 2, 1, 1, 1}, []byte{1, 2, 3, 2, 3, 4}},
		{"average", []byte{0, 2, 4, 6, 3, 1, 1, 1}, []byte{2, 4, 6, 2, 4, 6}},
		{"paeth", []byte{0, 1, 2, 3, 4, 0, 0, 0}, []byte{1, 2, 3, 1, 2, 3}},
	}
	params := Params{"Predictor": 12, "Columns": 3, "Colors": 1, "BitsPerComponent": 8}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unpredict(tt.data, params)
			if err != nil {
				t.Fatalf("unpredict: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPNGPredictorBadLength(t *testing.T) {
	params := Params{"Predictor": 12, "Columns": 3}
	if _, err := unpredict([]byte{0, 1, 2}, params); err == nil {
		t.Error("expected error for short row")
	}
	if _, err := unpredict([]byte{9, 1, 2, 3}, params); err == nil {
		t.Error("expected error for unknown row filter")
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := Params{"Predictor": 2, "Columns": 3, "Colors": 1}
	got, err := unpredict([]byte{10, 1, 1, 20, 2, 2}, params)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 11, 12, 20, 22, 24}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"48656C6C6F>", []byte("Hello"), false},
		{"48 65\n6c 6c 6f>", []byte("Hello"), false},
		{"4>", []byte{0x40}, false},
		{"414", []byte{0x41, 0x40}, false},
		{"4G>", nil, true},
	}
	for _, tt := range tests {
		got, err := ASCIIHexDecode([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ASCIIHexDecode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !bytes.Equal(got, tt.want) {
			t.Errorf("ASCIIHexDecode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestASCII85Decode(t *testing.T) {
	for _, in := range []string{"", "a", "ab", "abc", "abcd", "Hello, World!", "\x00\x00\x00\x00tail"} {
		enc := make([]byte, ascii85.MaxEncodedLen(len(in)))
		n := ascii85.Encode(enc, []byte(in))
		wrapped := append([]byte("<~"), enc[:n]...)
		wrapped = append(wrapped, "~>"...)

		got, err := ASCII85Decode(wrapped)
		if err != nil {
			t.Fatalf("ASCII85Decode(%q): %v", in, err)
		}
		if string(got) != in {
			t.Errorf("ASCII85Decode = %q, want %q", got, in)
		}
	}
	if _, err := ASCII85Decode([]byte("ab{cd~>")); err == nil {
		t.Error("expected error for invalid character")
	}
}

func TestRunLengthDecode(t *testing.T) {
	got, err := RunLengthDecode([]byte{2, 'a', 'b', 'c', 254, 'x', 128, 'z'})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcxxx" {
		t.Errorf("got %q, want %q", got, "abcxxx")
	}
	if _, err := RunLengthDecode([]byte{5, 'a'}); err == nil {
		t.Error("expected error for overrun literal")
	}
}

func TestLZWDecodeEarlyChangeZero(t *testing.T) {
	in := []byte("TOBEORNOTTOBEORTOBEORNOT")
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write(in)
	w.Close()

	got, err := LZWDecode(buf.Bytes(), Params{"EarlyChange": 0})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, in) {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestDecodeDispatch(t *testing.T) {
	if got, err := Decode("AHx", []byte("41>"), nil); err != nil || string(got) != "A" {
		t.Errorf("Decode(AHx) = %q, %v", got, err)
	}
	if _, err := Decode("DCTDecode", []byte{0xff, 0xd8}, nil); !errors.Is(err, ErrImageCodec) {
		t.Errorf("DCTDecode error = %v, want ErrImageCodec", err)
	}
	if _, err := Decode("NoSuchDecode", nil, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unknown filter error = %v, want ErrUnsupported", err)
	}
}

func TestParams(t *testing.T) {
	p := Params{"Columns": 8, "Colors": 3.0, "BlackIs1": true, "K": "x"}
	if got := intParam(p, "Columns", 1); got != 8 {
		t.Errorf("Columns = %d", got)
	}
	if got := intParam(p, "Colors", 1); got != 3 {
		t.Errorf("Colors = %d", got)
	}
	if got := intParam(p, "K", -1); got != -1 {
		t.Errorf("K = %d, want default", got)
	}
	if got := intParam(nil, "Rows", 7); got != 7 {
		t.Errorf("nil params = %d", got)
	}
	if !boolParam(p, "BlackIs1", false) {
		t.Error("BlackIs1 should be true")
	}
}
