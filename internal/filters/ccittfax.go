package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITTFaxDecode decodes Group 3 or Group 4 fax data into packed 1-bit rows.
//
// The result uses the PDF convention for DeviceGray images: a 0 bit is
// black unless BlackIs1 is set.
//   - K < 0 selects Group 4, K >= 0 Group 3
//   - Columns defaults to 1728
//   - Rows of 0 lets the decoder find the height from the data
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	columns := intParam(params, "Columns", 1728)
	rows := intParam(params, "Rows", 0)
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	sf := ccitt.Group3
	if intParam(params, "K", 0) < 0 {
		sf = ccitt.Group4
	}
	opts := &ccitt.Options{Invert: boolParam(params, "BlackIs1", false)}
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, opts)
	return io.ReadAll(r)
}
