// Package contentstream parses and writes PDF content streams.
//
// A content stream is a flat sequence of operands followed by operators:
//
//	ops, err := contentstream.Parse(data)
//	for _, op := range ops {
//	    fmt.Printf("%s %v\n", op.Operator, op.Operands)
//	}
//
// Inline images (BI ... ID ... EI) are returned as a single "BI" operation
// with Image set. [Write] turns a sequence of operations back into bytes,
// which is how redacted pages get their new content.
//
// Operators of interest when rewriting text:
//   - BT, ET: begin and end a text object
//   - Tf, Tc, Tw, Tz, TL, Ts: text state
//   - Tm, Td, TD, T*: text positioning
//   - Tj, TJ, ', ": text showing
//   - q, Q, cm: graphics state and the CTM
//   - Do: paint an XObject
package contentstream
