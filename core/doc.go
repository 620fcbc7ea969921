// Package core implements the PDF object model and the low-level syntax
// layer: lexing, parsing, cross-reference sections, object streams, stream
// filters and serialization.
//
// The eight basic object types are [Null], [Bool], [Int], [Real],
// [String], [Name], [Array] and [Dict]. [Stream] pairs a dictionary with
// raw, still-encoded bytes and [IndirectRef] points at a numbered object.
//
// Parsing works on a byte slice held in memory:
//
//	p := core.NewParser(data)
//	p.Seek(offset)
//	obj, err := p.ParseIndirectObject()
//
// [LoadXRef] merges every cross-reference section of a file, classic
// tables and xref streams alike, and [ReconstructXRef] rebuilds one by
// scanning when the file is damaged.
//
// [Format] and [WriteObject] produce PDF syntax, which the document writer
// uses to save modified files.
package core
