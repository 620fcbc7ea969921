package core

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// XRefKind distinguishes free, uncompressed and compressed objects.
type XRefKind int

const (
	XRefFree XRefKind = iota
	XRefInUse
	XRefCompressed
)

// XRefEntry locates one object. InUse entries carry a byte Offset;
// Compressed entries name the object stream and the index inside it.
type XRefEntry struct {
	Kind       XRefKind
	Offset     int
	Generation int
	Stream     int
	Index      int
}

// XRefTable represents a merged cross-reference section and its trailer.
type XRefTable struct {
	Entries map[int]XRefEntry
	Trailer Dict
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(num int) (XRefEntry, bool) {
	e, ok := x.Entries[num]
	return e, ok
}

// FindStartXRef returns the offset recorded after the last "startxref".
func FindStartXRef(data []byte) (int, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}
	l := NewLexer(tail[idx+len("startxref"):])
	tok, err := l.NextToken()
	if err != nil || tok.Type != TokenInteger {
		return 0, fmt.Errorf("invalid startxref offset")
	}
	off, err := strconv.Atoi(string(tok.Value))
	if err != nil || off < 0 || off >= len(data) {
		return 0, fmt.Errorf("startxref offset %q out of range", tok.Value)
	}
	return off, nil
}

// LoadXRef reads every cross-reference section reachable from startxref,
// following /Prev and /XRefStm, and merges them so newer entries win.
func LoadXRef(data []byte) (*XRefTable, error) {
	off, err := FindStartXRef(data)
	if err != nil {
		return nil, err
	}

	var sections []*XRefTable
	seen := map[int]bool{}
	for off >= 0 && !seen[off] {
		seen[off] = true
		sec, err := ParseXRefAt(data, off)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
		// hybrid files: XRefStm entries rank below the table, above /Prev
		if stm, ok := sec.Trailer.GetInt("XRefStm"); ok && !seen[int(stm)] {
			seen[int(stm)] = true
			if hybrid, err := ParseXRefAt(data, int(stm)); err == nil {
				sections = append(sections, &XRefTable{Entries: hybrid.Entries, Trailer: Dict{}})
			}
		}

		prev, ok := sec.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		off = int(prev)
	}

	// oldest first
	for i, j := 0, len(sections)-1; i < j; i, j = i+1, j-1 {
		sections[i], sections[j] = sections[j], sections[i]
	}
	merged := MergeXRefTables(sections...)
	if _, ok := merged.Trailer["Root"]; !ok {
		return nil, fmt.Errorf("trailer has no /Root")
	}
	return merged, nil
}

// ParseXRefAt parses a classic xref table or an xref stream at offset.
func ParseXRefAt(data []byte, offset int) (*XRefTable, error) {
	if offset < 0 || offset >= len(data) {
		return nil, fmt.Errorf("xref offset %d out of range", offset)
	}
	p := NewParser(data)
	p.Seek(offset)
	mark := p.lexer.Pos()
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenKeyword && string(tok.Value) == "xref" {
		return parseXRefTable(p)
	}
	p.Seek(mark)
	return parseXRefStream(p)
}

func parseXRefTable(p *Parser) (*XRefTable, error) {
	table := NewXRefTable()
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && string(tok.Value) == "trailer" {
			obj, err := p.ParseObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			d, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is %s, not a dictionary", obj.Type())
			}
			table.Trailer = d
			return table, nil
		}
		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("xref subsection header expected at offset %d", tok.Pos)
		}
		first, _ := strconv.Atoi(string(tok.Value))
		count, err := p.expectInt("subsection count")
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			off, err := p.expectInt("entry offset")
			if err != nil {
				return nil, err
			}
			gen, err := p.expectInt("entry generation")
			if err != nil {
				return nil, err
			}
			flag, err := p.next()
			if err != nil {
				return nil, err
			}
			num := first + i
			if _, dup := table.Entries[num]; dup {
				continue
			}
			switch string(flag.Value) {
			case "n":
				table.Entries[num] = XRefEntry{Kind: XRefInUse, Offset: off, Generation: gen}
			case "f":
				table.Entries[num] = XRefEntry{Kind: XRefFree, Generation: gen}
			default:
				return nil, fmt.Errorf("invalid xref entry flag %q", flag.Value)
			}
		}
	}
}

func parseXRefStream(p *Parser) (*XRefTable, error) {
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	s, ok := ind.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object at xref offset is not a stream")
	}
	if t, _ := s.Dict.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("stream at xref offset has /Type %q", t)
	}
	wArr, ok := s.Dict.GetArray("W")
	if !ok || len(wArr) != 3 {
		return nil, fmt.Errorf("xref stream /W must have three entries")
	}
	var w [3]int
	for i := range w {
		n, ok := wArr[i].(Int)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid xref stream /W entry %v", wArr[i])
		}
		w[i] = int(n)
	}
	size, _ := s.Dict.GetInt("Size")
	index := []int{0, int(size)}
	if arr, ok := s.Dict.GetArray("Index"); ok {
		index = index[:0]
		for _, e := range arr {
			if n, ok := e.(Int); ok {
				index = append(index, int(n))
			}
		}
	}

	body, err := s.Decode()
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}

	table := NewXRefTable()
	table.Trailer = s.Dict
	rec := w[0] + w[1] + w[2]
	if rec == 0 {
		return table, nil
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count && pos+rec <= len(body); j++ {
			kind := 1
			if w[0] > 0 {
				kind = readField(body[pos:], w[0])
			}
			f2 := readField(body[pos+w[0]:], w[1])
			f3 := readField(body[pos+w[0]+w[1]:], w[2])
			pos += rec

			var e XRefEntry
			switch kind {
			case 0:
				e = XRefEntry{Kind: XRefFree, Generation: f3}
			case 1:
				e = XRefEntry{Kind: XRefInUse, Offset: f2, Generation: f3}
			case 2:
				e = XRefEntry{Kind: XRefCompressed, Stream: f2, Index: f3}
			default:
				// unknown types are treated as null references
				continue
			}
			table.Entries[first+j] = e
		}
	}
	return table, nil
}

func readField(b []byte, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(b[i])
	}
	return v
}

// MergeXRefTables merges sections ordered oldest first. Later entries
// override earlier ones and trailer keys of later sections win.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()
	for _, t := range tables {
		for num, e := range t.Entries {
			merged.Entries[num] = e
		}
		for k, v := range t.Trailer {
			merged.Trailer[k] = v
		}
	}
	return merged
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n ])(\d+)[ \t\r\n]+(\d+)[ \t\r\n]+obj\b`)

// ReconstructXRef rebuilds a table by scanning the whole file for
// "n g obj" headers, for files whose xref is missing or corrupt. The
// trailer is taken from the last "trailer" dictionary, or from the
// catalog found while scanning.
func ReconstructXRef(data []byte) (*XRefTable, error) {
	table := NewXRefTable()
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		table.Entries[num] = XRefEntry{Kind: XRefInUse, Offset: m[2], Generation: gen}
	}
	if len(table.Entries) == 0 {
		return nil, fmt.Errorf("no objects found")
	}

	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		p := NewParser(data)
		p.Seek(idx + len("trailer"))
		if obj, err := p.ParseObject(); err == nil {
			if d, ok := obj.(Dict); ok {
				table.Trailer = d
			}
		}
	}
	if _, ok := table.Trailer["Root"]; !ok {
		// find the catalog directly
		for num, e := range table.Entries {
			p := NewParser(data)
			p.Seek(e.Offset)
			ind, err := p.ParseIndirectObject()
			if err != nil {
				continue
			}
			var d Dict
			switch v := ind.Object.(type) {
			case Dict:
				d = v
			case *Stream:
				d = v.Dict
			}
			if t, _ := d.GetName("Type"); t == "Catalog" {
				table.Trailer["Root"] = IndirectRef{Number: num, Generation: e.Generation}
				break
			}
			if t, _ := d.GetName("Type"); t == "XRef" {
				if root, ok := d["Root"]; ok {
					table.Trailer["Root"] = root
					break
				}
			}
		}
	}
	if _, ok := table.Trailer["Root"]; !ok {
		return nil, fmt.Errorf("no document catalog found")
	}
	return table, nil
}
