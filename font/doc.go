// Package font reads the parts of PDF fonts that text layout depends on.
//
// A [Font] splits string operands into character codes ([Font.Split]),
// reports each code's advance width ([Font.Width]) and maps codes to
// Unicode text ([Font.Text]) through, in order of preference, the
// ToUnicode CMap, the font's simple encoding with /Differences, or the
// standard encodings from golang.org/x/text/encoding/charmap. Text is
// normalized to NFC.
//
// Simple fonts (Type1, TrueType, Type3) use one byte per code; composite
// (Type0) fonts use the codespace ranges of an embedded CMap, or two bytes
// for Identity-H and the predefined CMaps.
//
// Widths come from /Widths or /W when present and otherwise from the
// built-in metrics of the standard 14 fonts.
package font
