// Package filters implements the PDF stream filters used when reading and
// rewriting documents.
//
// Decoding is available for FlateDecode (with TIFF and PNG predictors),
// LZWDecode, ASCIIHexDecode, ASCII85Decode, RunLengthDecode and
// CCITTFaxDecode. Image codecs such as DCTDecode and JPXDecode are not
// decoded here; Decode reports them with ErrImageCodec so callers can hand
// the raw bytes to an image decoder.
//
// Only FlateDecode is available for encoding:
//
//	compressed, err := filters.FlateEncode(content)
//
// Decode parameters come from the stream's /DecodeParms dictionary:
//
//	params := filters.Params{
//	    "Predictor": 12,
//	    "Columns":   100,
//	    "Colors":    3,
//	}
//	decoded, err := filters.Decode("FlateDecode", data, params)
package filters
