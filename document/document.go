package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/pages"
)

var (
	// ErrClosed is returned by every operation on a closed document.
	ErrClosed = errors.New("document is closed")
	// ErrEncrypted is returned by Open for encrypted documents.
	ErrEncrypted = errors.New("encrypted documents are not supported")
	// ErrNoObject is returned when a reference names no live object.
	ErrNoObject = errors.New("no such object")
)

var versionRe = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// Document is a PDF object graph held in memory. Objects are parsed on
// first use and cached; the cached values are the ones mutated and saved.
type Document struct {
	data    []byte
	xref    *core.XRefTable
	trailer core.Dict
	version string

	objects map[int]core.Object
	deleted map[int]bool
	// forward maps replaced object numbers to their replacements until
	// flushForwards rewrites the references.
	forward map[int]core.IndirectRef
	pending bool
	objStms map[int]*core.ObjectStream
	loading map[int]bool
	nextNum int

	tree   *pages.PageTree
	closed bool

	// Repaired is set when the cross-reference data had to be rebuilt by
	// scanning the file.
	Repaired bool
}

// Ensure Document implements the resolver interfaces used by the parser
// and the page tree.
var (
	_ pages.ObjectResolver   = (*Document)(nil)
	_ core.ReferenceResolver = (*Document)(nil)
)

// Open reads and opens the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return OpenBytes(data)
}

// Read opens a PDF read in full from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return OpenBytes(data)
}

// OpenBytes opens a PDF held in memory. The slice must not be modified
// while the document is open.
func OpenBytes(data []byte) (*Document, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := versionRe.FindSubmatch(head)
	if m == nil {
		return nil, fmt.Errorf("invalid PDF header")
	}

	d := &Document{
		data:    data,
		version: string(m[1]),
		objects: make(map[int]core.Object),
		deleted: make(map[int]bool),
		forward: make(map[int]core.IndirectRef),
		objStms: make(map[int]*core.ObjectStream),
		loading: make(map[int]bool),
	}

	xref, err := core.LoadXRef(data)
	if err == nil {
		d.useXRef(xref)
		if _, err = d.Catalog(); err != nil {
			d.resetCache()
		}
	}
	if err != nil {
		rebuilt, rerr := core.ReconstructXRef(data)
		if rerr != nil {
			return nil, fmt.Errorf("failed to load xref: %w (repair: %v)", err, rerr)
		}
		d.useXRef(rebuilt)
		d.Repaired = true
		if _, err := d.Catalog(); err != nil {
			return nil, err
		}
	}

	if d.trailer.Has("Encrypt") {
		return nil, ErrEncrypted
	}
	return d, nil
}

func (d *Document) useXRef(x *core.XRefTable) {
	d.xref = x
	d.trailer = x.Trailer
	d.nextNum = 1
	for num := range x.Entries {
		if num >= d.nextNum {
			d.nextNum = num + 1
		}
	}
	if size, ok := x.Trailer.GetInt("Size"); ok && int(size) > d.nextNum {
		d.nextNum = int(size)
	}
}

func (d *Document) resetCache() {
	d.objects = make(map[int]core.Object)
	d.objStms = make(map[int]*core.ObjectStream)
	d.tree = nil
}

// Close releases the document. Calling it again is a no-op.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.data = nil
	d.objects = nil
	d.forward = nil
	d.objStms = nil
	d.tree = nil
	return nil
}

// Closed reports whether Close has been called.
func (d *Document) Closed() bool { return d.closed }

// Version returns the version from the file header, e.g. "1.7".
func (d *Document) Version() string { return d.version }

// Trailer returns the trailer dictionary.
func (d *Document) Trailer() core.Dict { return d.trailer }

// Object returns object num, loading it on first use. Missing and free
// objects are null.
func (d *Document) Object(num int) (core.Object, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.deleted[num] {
		return core.Null{}, nil
	}
	if obj, ok := d.objects[num]; ok {
		return obj, nil
	}
	entry, ok := d.xref.Get(num)
	if !ok || entry.Kind == core.XRefFree {
		return core.Null{}, nil
	}
	if d.loading[num] {
		return nil, fmt.Errorf("object %d refers to itself while loading", num)
	}
	d.loading[num] = true
	defer delete(d.loading, num)

	var obj core.Object
	var err error
	if entry.Kind == core.XRefCompressed {
		obj, err = d.loadCompressed(num, entry)
	} else {
		obj, err = d.loadAt(num, entry.Offset)
	}
	if err != nil {
		return nil, err
	}
	d.objects[num] = obj
	return obj, nil
}

func (d *Document) loadAt(num, offset int) (core.Object, error) {
	if offset < 0 || offset >= len(d.data) {
		return nil, fmt.Errorf("object %d offset %d out of range", num, offset)
	}
	p := core.NewParser(d.data)
	p.SetReferenceResolver(d)
	p.Seek(offset)
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", num, err)
	}
	if ind.Ref.Number != num {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", num, ind.Ref.Number)
	}
	return ind.Object, nil
}

func (d *Document) loadCompressed(num int, entry core.XRefEntry) (core.Object, error) {
	stm, ok := d.objStms[entry.Stream]
	if !ok {
		obj, err := d.Object(entry.Stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.Stream, err)
		}
		s, isStream := obj.(*core.Stream)
		if !isStream {
			return nil, fmt.Errorf("object stream %d is a %T", entry.Stream, obj)
		}
		if stm, err = core.NewObjectStream(s); err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.Stream, err)
		}
		d.objStms[entry.Stream] = stm
	}
	obj, ok := stm.Find(num)
	if !ok {
		return nil, fmt.Errorf("object %d not in object stream %d", num, entry.Stream)
	}
	return obj, nil
}

// ResolveReference resolves an indirect reference. References to an
// object swapped out by ReplaceObject resolve to its replacement.
func (d *Document) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return d.Object(d.forwarded(ref).Number)
}

// Current returns the reference ref resolves to once every ReplaceObject
// so far is taken into account.
func (d *Document) Current(ref core.IndirectRef) core.IndirectRef {
	return d.forwarded(ref)
}

func (d *Document) forwarded(ref core.IndirectRef) core.IndirectRef {
	for {
		next, ok := d.forward[ref.Number]
		if !ok {
			return ref
		}
		ref = next
	}
}

// Resolve follows indirect references until it reaches a direct object.
func (d *Document) Resolve(obj core.Object) (core.Object, error) {
	for hops := 0; hops < 8; hops++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return obj, nil
		}
		var err error
		if obj, err = d.ResolveReference(ref); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("reference chain too long")
}

// MustResolve is Resolve for callers that treat unreadable objects as
// absent: errors resolve to nil.
func (d *Document) MustResolve(obj core.Object) core.Object {
	r, err := d.Resolve(obj)
	if err != nil {
		return nil
	}
	return r
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (core.Dict, error) {
	root := d.trailer.Get("Root")
	if root == nil {
		return nil, fmt.Errorf("trailer missing /Root entry")
	}
	obj, err := d.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}
	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary: %T", obj)
	}
	return catalog, nil
}

// Pages returns the document's pages in order.
func (d *Document) Pages() ([]*pages.Page, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.tree == nil {
		catalog, err := d.Catalog()
		if err != nil {
			return nil, err
		}
		root, err := pages.NewCatalog(catalog, d).Pages()
		if err != nil {
			return nil, err
		}
		d.tree = pages.NewPageTree(root, d)
	}
	return d.tree.Pages()
}

// PageCount returns the number of pages.
func (d *Document) PageCount() (int, error) {
	p, err := d.Pages()
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Page returns the page at index (0-based).
func (d *Document) Page(index int) (*pages.Page, error) {
	p, err := d.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(p))
	}
	return p[index], nil
}

// Has reports whether ref names a live, readable object.
func (d *Document) Has(ref core.IndirectRef) bool {
	obj, err := d.Object(ref.Number)
	if err != nil {
		return false
	}
	_, isNull := obj.(core.Null)
	return !isNull
}

// Add inserts obj under a fresh object number.
func (d *Document) Add(obj core.Object) core.IndirectRef {
	num := d.nextNum
	d.nextNum++
	d.objects[num] = obj
	return core.IndirectRef{Number: num}
}

// Replace sets the value of an existing object, keeping its number.
func (d *Document) Replace(ref core.IndirectRef, obj core.Object) error {
	if d.closed {
		return ErrClosed
	}
	if !d.Has(ref) {
		return fmt.Errorf("replace %s: %w", ref, ErrNoObject)
	}
	d.objects[ref.Number] = obj
	return nil
}

// Delete removes an object. References left pointing at it read as null.
func (d *Document) Delete(ref core.IndirectRef) error {
	if d.closed {
		return ErrClosed
	}
	if !d.Has(ref) {
		return fmt.Errorf("delete %s: %w", ref, ErrNoObject)
	}
	delete(d.objects, ref.Number)
	d.deleted[ref.Number] = true
	return nil
}

// ReplaceObject swaps old for a newly inserted obj: old must exist; on
// return old is deleted, obj has a new number, and every reference to old
// anywhere in the document (trailer included) resolves to the new number.
// The references themselves are rewritten in one pass on the next Save or
// References call.
func (d *Document) ReplaceObject(old core.IndirectRef, obj core.Object) (core.IndirectRef, error) {
	if d.closed {
		return core.IndirectRef{}, ErrClosed
	}
	if !d.Has(old) {
		return core.IndirectRef{}, fmt.Errorf("replace object %s: %w", old, ErrNoObject)
	}

	repl := d.Add(obj)
	d.forward[old.Number] = repl
	d.pending = true
	delete(d.objects, old.Number)
	d.deleted[old.Number] = true
	return repl, nil
}

// flushForwards rewrites every reference to a replaced object.
func (d *Document) flushForwards() {
	if !d.pending {
		return
	}
	repoint := func(r core.IndirectRef) core.IndirectRef {
		if _, ok := d.forward[r.Number]; ok {
			return d.forwarded(r)
		}
		return r
	}
	for _, num := range d.liveNumbers() {
		o, err := d.Object(num)
		if err != nil {
			continue
		}
		core.RewriteRefs(o, repoint)
	}
	core.RewriteRefs(d.trailer, repoint)
	d.pending = false
}

// References returns the numbers of the live objects that refer to ref.
func (d *Document) References(ref core.IndirectRef) []int {
	if d.closed {
		return nil
	}
	d.flushForwards()
	var out []int
	for _, num := range d.liveNumbers() {
		o, err := d.Object(num)
		if err != nil {
			continue
		}
		for _, r := range core.Refs(o, nil) {
			if r.Number == ref.Number {
				out = append(out, num)
				break
			}
		}
	}
	return out
}

// liveNumbers lists every object number that is in use, sorted.
func (d *Document) liveNumbers() []int {
	seen := map[int]bool{}
	var nums []int
	add := func(n int) {
		if !seen[n] && !d.deleted[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	for num, e := range d.xref.Entries {
		if e.Kind != core.XRefFree {
			add(num)
		}
	}
	for num := range d.objects {
		add(num)
	}
	sort.Ints(nums)
	return nums
}

// SetPageContent replaces the page's content streams with one
// Flate-compressed stream holding content.
func (d *Document) SetPageContent(page *pages.Page, content []byte) error {
	if d.closed {
		return ErrClosed
	}
	s, err := core.NewFlateStream(nil, content)
	if err != nil {
		return fmt.Errorf("failed to compress content: %w", err)
	}
	page.Dict()["Contents"] = d.Add(s)
	return nil
}
