// Package document opens, mutates and saves PDF files.
//
// A [Document] holds the whole file in memory. Objects are parsed lazily
// through the merged cross-reference data (classic tables, xref streams,
// object streams and incremental updates); when that data is damaged the
// file is scanned for object headers instead and [Document.Repaired] is
// set.
//
//	doc, err := document.Open("in.pdf")
//	if err != nil {
//	    return err
//	}
//	defer doc.Close()
//
// Mutations work on the cached objects: [Document.Add], [Document.Replace],
// [Document.Delete], [Document.SetPageContent] and
// [Document.ReplaceObject], which inserts a new object and deletes the old
// one. References to the old object resolve to the new one at once and
// are rewritten in a single pass when the document is saved.
//
// [Document.Save] writes only what is reachable from the trailer,
// renumbered and with unfiltered streams compressed. Close may be called
// any number of times.
package document
