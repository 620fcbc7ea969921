package contentstream

import (
	"bytes"
	"sort"

	"github.com/alzaheer/privacyshield/core"
)

// Write serializes operations back into content stream syntax, one
// operation per line.
func Write(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		AppendOperation(&buf, op)
	}
	return buf.Bytes()
}

// AppendOperation writes a single operation followed by a newline.
func AppendOperation(buf *bytes.Buffer, op Operation) {
	for _, o := range op.Operands {
		buf.WriteString(core.Format(o))
		buf.WriteByte(' ')
	}
	buf.WriteString(op.Operator)
	if op.Image != nil {
		for _, k := range sortedKeys(op.Image.Dict) {
			buf.WriteByte(' ')
			buf.WriteString(core.Format(core.Name(k)))
			buf.WriteByte(' ')
			buf.WriteString(core.Format(op.Image.Dict[k]))
		}
		buf.WriteString(" ID ")
		buf.Write(op.Image.Data)
		buf.WriteString("\nEI")
	}
	buf.WriteByte('\n')
}

func sortedKeys(d core.Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Op is a convenience constructor for operations built in code.
func Op(operator string, operands ...core.Object) Operation {
	return Operation{Operator: operator, Operands: operands}
}

// Nums converts float64 values to numeric operands.
func Nums(vals ...float64) []core.Object {
	out := make([]core.Object, len(vals))
	for i, v := range vals {
		out[i] = core.Real(v)
	}
	return out
}
