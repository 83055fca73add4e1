package object

import "github.com/ostreego/ostree/gvariant"

// marshalXattrs serializes a sorted xattr set as the 'a(ayay)' array from
// spec.md §6: each element is (name-bytes, value-bytes), both
// varint-length-framed rather than GVariant-offset-framed (see
// gvariant.Writer doc comment).
func marshalXattrs(xs []Xattr) []byte {
	sorted := sortXattrs(xs)
	elems := make([][]byte, len(sorted))
	for i, x := range sorted {
		w := gvariant.NewWriter()
		w.PutBytes([]byte(x.Name))
		w.PutBytes(x.Value)
		elems[i] = w.Bytes()
	}
	w := gvariant.NewWriter()
	w.PutArray(elems)
	return w.Bytes()
}

func unmarshalXattrs(r *gvariant.Reader) ([]Xattr, error) {
	n, err := r.ArrayCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Xattr, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		val, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		nameCopy := make([]byte, len(name))
		copy(nameCopy, name)
		valCopy := make([]byte, len(val))
		copy(valCopy, val)
		out = append(out, Xattr{Name: string(nameCopy), Value: valCopy})
	}
	return out, nil
}
