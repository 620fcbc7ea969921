package pages

import (
	"bytes"
	"fmt"

	"github.com/alzaheer/privacyshield/core"
	"github.com/alzaheer/privacyshield/model"
)

// ObjectResolver resolves indirect references
type ObjectResolver interface {
	Resolve(obj core.Object) (core.Object, error)
}

// inheritable attributes are looked up through the ancestors of a page
var inheritable = []string{"MediaBox", "CropBox", "Resources", "Rotate"}

// maxDepth bounds page tree recursion on malformed files
const maxDepth = 64

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver ObjectResolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver ObjectResolver) *Catalog {
	return &Catalog{dict: dict, resolver: resolver}
}

// Pages returns the page tree root
func (c *Catalog) Pages() (core.Dict, error) {
	pagesRef := c.dict.Get("Pages")
	if pagesRef == nil {
		return nil, fmt.Errorf("catalog missing /Pages entry")
	}

	pagesObj, err := c.resolver.Resolve(pagesRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}

	pagesDict, ok := pagesObj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid /Pages type: %T", pagesObj)
	}
	return pagesDict, nil
}

// PageTree represents the PDF page tree
type PageTree struct {
	root     core.Dict
	resolver ObjectResolver
	pages    []*Page // flattened, loaded on first use
}

// NewPageTree creates a new page tree from the root pages dictionary
func NewPageTree(root core.Dict, resolver ObjectResolver) *PageTree {
	return &PageTree{root: root, resolver: resolver}
}

// Count returns the number of leaf pages actually reachable, which can
// differ from a damaged /Count entry.
func (t *PageTree) Count() (int, error) {
	pages, err := t.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(index int) (*Page, error) {
	pages, err := t.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(pages))
	}
	return pages[index], nil
}

// Pages returns all pages in document order
func (t *PageTree) Pages() ([]*Page, error) {
	if t.pages == nil {
		if err := t.loadPages(); err != nil {
			return nil, err
		}
	}
	return t.pages, nil
}

func (t *PageTree) loadPages() error {
	t.pages = make([]*Page, 0)
	visited := map[core.IndirectRef]bool{}
	if err := t.traverse(t.root, core.IndirectRef{}, core.Dict{}, visited, 0); err != nil {
		t.pages = nil
		return fmt.Errorf("failed to traverse page tree: %w", err)
	}
	return nil
}

// traverse walks one node. inherited carries the inheritable attributes
// collected from its ancestors.
func (t *PageTree) traverse(node core.Dict, ref core.IndirectRef, inherited core.Dict, visited map[core.IndirectRef]bool, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxDepth)
	}

	typeName, _ := node.GetName("Type")
	isLeaf := typeName == "Page"
	if typeName == "" {
		// some writers omit /Type; a node without /Kids is a page
		isLeaf = !node.Has("Kids")
	}

	if isLeaf {
		t.pages = append(t.pages, &Page{
			Index:     len(t.pages),
			Ref:       ref,
			dict:      node,
			inherited: inherited,
			resolver:  t.resolver,
		})
		return nil
	}
	if typeName != "" && typeName != "Pages" {
		return fmt.Errorf("unexpected page node type: %s", typeName)
	}

	next := inherited.Clone()
	for _, key := range inheritable {
		if v, ok := node[key]; ok {
			next[key] = v
		}
	}

	kidsResolved, err := t.resolver.Resolve(node.Get("Kids"))
	if err != nil {
		return fmt.Errorf("failed to resolve /Kids: %w", err)
	}
	kids, ok := kidsResolved.(core.Array)
	if !ok {
		return fmt.Errorf("invalid /Kids type: %T", kidsResolved)
	}

	for i, kidObj := range kids {
		kidRef, isRef := kidObj.(core.IndirectRef)
		if isRef {
			if visited[kidRef] {
				return fmt.Errorf("page tree cycle at %s", kidRef)
			}
			visited[kidRef] = true
		}
		kidResolved, err := t.resolver.Resolve(kidObj)
		if err != nil {
			return fmt.Errorf("failed to resolve kid %d: %w", i, err)
		}
		kidDict, ok := kidResolved.(core.Dict)
		if !ok {
			return fmt.Errorf("invalid kid type: %T", kidResolved)
		}
		if err := t.traverse(kidDict, kidRef, next, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Page is a leaf of the page tree. Its dictionary is shared with the
// document, so changes made through Dict are saved with it.
type Page struct {
	Index int
	// Ref is the page object's reference, zero for a direct dictionary.
	Ref core.IndirectRef

	dict      core.Dict
	inherited core.Dict
	resolver  ObjectResolver
}

// NewPage creates a page from its dictionary and the attributes inherited
// from its ancestors (nil when there are none).
func NewPage(dict, inherited core.Dict, resolver ObjectResolver) *Page {
	return &Page{dict: dict, inherited: inherited, resolver: resolver}
}

// Dict returns the page dictionary.
func (p *Page) Dict() core.Dict {
	return p.dict
}

// attr returns a page attribute, falling back to the inherited value.
func (p *Page) attr(name string) (core.Object, error) {
	obj := p.dict.Get(name)
	if obj == nil {
		obj = p.inherited.Get(name)
	}
	if obj == nil {
		return nil, nil
	}
	return p.resolver.Resolve(obj)
}

// MediaBox returns the page media box
func (p *Page) MediaBox() (model.Rect, error) {
	return p.getBox("MediaBox")
}

// CropBox returns the page crop box, defaulting to the MediaBox
func (p *Page) CropBox() (model.Rect, error) {
	box, err := p.getBox("CropBox")
	if err != nil {
		return p.MediaBox()
	}
	return box, nil
}

func (p *Page) getBox(name string) (model.Rect, error) {
	boxObj, err := p.attr(name)
	if err != nil {
		return model.Rect{}, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if boxObj == nil {
		return model.Rect{}, fmt.Errorf("%s not found", name)
	}

	boxArr, ok := boxObj.(core.Array)
	if !ok {
		return model.Rect{}, fmt.Errorf("invalid %s type: %T", name, boxObj)
	}
	if len(boxArr) != 4 {
		return model.Rect{}, fmt.Errorf("invalid %s length: %d (expected 4)", name, len(boxArr))
	}

	var v [4]float64
	for i, elem := range boxArr {
		resolved, err := p.resolver.Resolve(elem)
		if err != nil {
			return model.Rect{}, err
		}
		n, ok := core.Number(resolved)
		if !ok {
			return model.Rect{}, fmt.Errorf("invalid %s element type: %T", name, elem)
		}
		v[i] = n
	}
	return model.NewRect(v[0], v[1], v[2], v[3]), nil
}

// Resources returns the page resources dictionary, or an empty one. The
// result may be shared with other pages through inheritance.
func (p *Page) Resources() (core.Dict, error) {
	obj, err := p.attr("Resources")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	if obj == nil {
		return core.Dict{}, nil
	}
	res, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid Resources type: %T", obj)
	}
	return res, nil
}

// Contents returns the page content streams in order.
func (p *Page) Contents() ([]*core.Stream, error) {
	contentsObj := p.dict.Get("Contents")
	if contentsObj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(contentsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	switch v := resolved.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for i, elem := range v {
			r, err := p.resolver.Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			s, ok := r.(*core.Stream)
			if !ok {
				continue
			}
			streams = append(streams, s)
		}
		return streams, nil
	case core.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid Contents type: %T", resolved)
	}
}

// ContentData returns the decoded content streams joined by newlines, so
// that an operator split across two streams still parses.
func (p *Page) ContentData() ([]byte, error) {
	streams, err := p.Contents()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i, s := range streams {
		data, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content stream %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Rotate returns the page rotation normalized to 0, 90, 180 or 270.
func (p *Page) Rotate() int {
	obj, err := p.attr("Rotate")
	if err != nil {
		return 0
	}
	rotate, ok := obj.(core.Int)
	if !ok {
		return 0
	}
	r := int(rotate) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Width returns the page width (from MediaBox)
func (p *Page) Width() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return box.Width(), nil
}

// Height returns the page height (from MediaBox)
func (p *Page) Height() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return box.Height(), nil
}
