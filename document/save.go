package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alzaheer/privacyshield/core"
)

// Save writes the document as a new PDF. Only objects reachable from the
// trailer's /Root and /Info are written, renumbered from 1 in traversal
// order; object streams are unpacked, and streams without a filter are
// Flate-compressed. The result has a single classic xref section.
func (d *Document) Save(w io.Writer) error {
	if d.closed {
		return ErrClosed
	}
	d.flushForwards()

	renum := map[int]int{}
	var order []int
	visit := func(r core.IndirectRef) {
		if _, ok := renum[r.Number]; !ok {
			order = append(order, r.Number)
			renum[r.Number] = len(order)
		}
	}
	for _, key := range []string{"Root", "Info"} {
		if r, ok := d.trailer.GetIndirectRef(key); ok {
			visit(r)
		}
	}
	if len(order) == 0 {
		return fmt.Errorf("trailer has no indirect /Root")
	}

	objs := make([]core.Object, 0, len(order))
	for i := 0; i < len(order); i++ {
		obj, err := d.Object(order[i])
		if err != nil {
			// unreadable objects are written as null
			obj = core.Null{}
		}
		objs = append(objs, obj)
		for _, r := range core.Refs(obj, nil) {
			visit(r)
		}
	}

	mapRef := func(r core.IndirectRef) core.IndirectRef {
		return core.IndirectRef{Number: renum[r.Number]}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", d.version)

	offsets := make([]int, len(objs))
	for i, obj := range objs {
		out := deepCopy(obj)
		if r, ok := out.(core.IndirectRef); ok {
			out = mapRef(r)
		}
		core.RewriteRefs(out, mapRef)
		if s, ok := out.(*core.Stream); ok && !s.Dict.Has("Filter") && len(s.Data) > 0 {
			if err := s.SetContent(s.Data); err != nil {
				return fmt.Errorf("failed to compress object %d: %w", order[i], err)
			}
		}

		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		if err := core.WriteObject(&buf, out); err != nil {
			return err
		}
		buf.WriteString("\nendobj\n")
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := core.Dict{"Size": core.Int(len(objs) + 1)}
	for _, key := range []string{"Root", "Info"} {
		if r, ok := d.trailer.GetIndirectRef(key); ok {
			trailer[key] = mapRef(r)
		}
	}
	if id, ok := d.trailer.GetArray("ID"); ok {
		trailer["ID"] = deepCopy(id)
	}
	buf.WriteString("trailer\n")
	if err := core.WriteObject(&buf, trailer); err != nil {
		return err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefAt)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// SaveFile saves to path through a temporary file in the same directory,
// so a failed save never leaves a partial file behind.
func (d *Document) SaveFile(path string) (err error) {
	if d.closed {
		return ErrClosed
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = d.Save(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// deepCopy copies containers so that renumbering during Save never
// touches the live object graph. Stream data is shared.
func deepCopy(o core.Object) core.Object {
	switch v := o.(type) {
	case core.Array:
		c := make(core.Array, len(v))
		for i, e := range v {
			c[i] = deepCopy(e)
		}
		return c
	case core.Dict:
		c := make(core.Dict, len(v))
		for k, e := range v {
			c[k] = deepCopy(e)
		}
		return c
	case *core.Stream:
		return &core.Stream{Dict: deepCopy(v.Dict).(core.Dict), Data: v.Data}
	}
	return o
}
