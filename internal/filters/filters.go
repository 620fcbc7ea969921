package filters

import (
	"errors"
	"fmt"
)

// Params represents decode parameters from a PDF stream dictionary.
// Values are plain Go values: int, float64, bool, string or []byte.
type Params map[string]interface{}

var (
	// ErrUnsupported is returned for filter names this package does not know.
	ErrUnsupported = errors.New("unsupported filter")

	// ErrImageCodec is returned for image codecs whose output is an encoded
	// image rather than a byte stream (DCT, JPX, JBIG2).
	ErrImageCodec = errors.New("image codec filter")
)

// abbreviations used by inline images
var shortNames = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// Canonical returns the full filter name for an inline-image abbreviation.
func Canonical(name string) string {
	if full, ok := shortNames[name]; ok {
		return full
	}
	return name
}

// IsImageCodec reports whether name is a filter whose output is an encoded
// image that must be handed to an image decoder as is.
func IsImageCodec(name string) bool {
	switch Canonical(name) {
	case "DCTDecode", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

// Decode applies a single named filter to data.
func Decode(name string, data []byte, params Params) ([]byte, error) {
	switch Canonical(name) {
	case "FlateDecode":
		return FlateDecode(data, params)
	case "LZWDecode":
		return LZWDecode(data, params)
	case "ASCIIHexDecode":
		return ASCIIHexDecode(data)
	case "ASCII85Decode":
		return ASCII85Decode(data)
	case "RunLengthDecode":
		return RunLengthDecode(data)
	case "CCITTFaxDecode":
		return CCITTFaxDecode(data, params)
	case "Crypt":
		// identity crypt filter
		return data, nil
	}
	if IsImageCodec(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrImageCodec)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnsupported)
}

// intParam reads an integer parameter, accepting whole floats.
func intParam(params Params, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func boolParam(params Params, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}
