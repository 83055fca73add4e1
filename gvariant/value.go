package gvariant

import "golang.org/x/xerrors"

// Kind tags the dynamic type of a Value inside a commit's metadata dict
// or a static delta's detached-metadata map — the "truly schemaless
// dictionary" spec.md §9 says is the only place a dynamic variant type
// needs to survive the move away from GVariant containers.
type Kind byte

// Value kinds, matching the grammar in spec.md §9.
const (
	KindByte Kind = iota + 1
	KindInt16
	KindInt32
	KindInt64
	KindUint16
	KindUint32
	KindUint64
	KindBool
	KindDouble
	KindString
	KindBytes
	KindArray
	KindDict
	KindTuple
)

// Value is a single dynamically-typed value, recursively composed for
// Array/Dict/Tuple.
type Value struct {
	Kind   Kind
	Byte   byte
	Int    int64
	Uint   uint64
	Bool   bool
	Double float64
	Str    string
	Bin    []byte
	Arr    []Value
	Dict   map[string]Value
	Tuple  []Value
}

// Bytes wraps b as a KindBytes Value.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bin: b} }

// String wraps s as a KindString Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Uint32 wraps v as a KindUint32 Value.
func Uint32(v uint32) Value { return Value{Kind: KindUint32, Uint: uint64(v)} }

// Uint64 wraps v as a KindUint64 Value.
func Uint64(v uint64) Value { return Value{Kind: KindUint64, Uint: v} }

// Dict wraps m as a KindDict Value (the a{sv} metadata dictionary).
func Dict(m map[string]Value) Value { return Value{Kind: KindDict, Dict: m} }

// marshal serializes v canonically into w.
func (v Value) marshal(w *Writer) error {
	w.buf = append(w.buf, byte(v.Kind))
	switch v.Kind {
	case KindByte:
		w.buf = append(w.buf, v.Byte)
	case KindInt16, KindInt32, KindInt64:
		w.PutU64(uint64(v.Int))
	case KindUint16, KindUint32, KindUint64:
		w.PutU64(v.Uint)
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		w.buf = append(w.buf, b)
	case KindDouble:
		w.PutU64(doubleToBits(v.Double))
	case KindString:
		w.PutBytes([]byte(v.Str))
	case KindBytes:
		w.PutBytes(v.Bin)
	case KindArray:
		elems := make([][]byte, len(v.Arr))
		for i, e := range v.Arr {
			sub := NewWriter()
			if err := e.marshal(sub); err != nil {
				return err
			}
			elems[i] = sub.Bytes()
		}
		w.PutArray(elems)
	case KindDict:
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sortStrings(keys)
		elems := make([][]byte, 0, len(keys))
		for _, k := range keys {
			sub := NewWriter()
			sub.PutBytes([]byte(k))
			if err := v.Dict[k].marshal(sub); err != nil {
				return err
			}
			elems = append(elems, sub.Bytes())
		}
		w.PutArray(elems)
	case KindTuple:
		elems := make([][]byte, len(v.Tuple))
		for i, e := range v.Tuple {
			sub := NewWriter()
			if err := e.marshal(sub); err != nil {
				return err
			}
			elems[i] = sub.Bytes()
		}
		w.PutArray(elems)
	default:
		return xerrors.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

// Marshal returns the canonical serialization of v.
func Marshal(v Value) ([]byte, error) {
	w := NewWriter()
	if err := v.marshal(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (r *Reader) value() (Value, error) {
	if r.Remaining() < 1 {
		return Value{}, ErrTruncated
	}
	kind := Kind(r.buf[r.off])
	r.off++
	switch kind {
	case KindByte:
		if r.Remaining() < 1 {
			return Value{}, ErrTruncated
		}
		b := r.buf[r.off]
		r.off++
		return Value{Kind: kind, Byte: b}, nil
	case KindInt16, KindInt32, KindInt64:
		u, err := r.U64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Int: int64(u)}, nil
	case KindUint16, KindUint32, KindUint64:
		u, err := r.U64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Uint: u}, nil
	case KindBool:
		if r.Remaining() < 1 {
			return Value{}, ErrTruncated
		}
		b := r.buf[r.off]
		r.off++
		return Value{Kind: kind, Bool: b != 0}, nil
	case KindDouble:
		u, err := r.U64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Double: bitsToDouble(u)}, nil
	case KindString:
		b, err := r.Bytes()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Str: string(b)}, nil
	case KindBytes:
		b, err := r.Bytes()
		if err != nil {
			return Value{}, err
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		return Value{Kind: kind, Bin: cp}, nil
	case KindArray:
		n, err := r.ArrayCount()
		if err != nil {
			return Value{}, err
		}
		arr := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			e, err := r.value()
			if err != nil {
				return Value{}, xerrors.Errorf("array element %d: %w", i, err)
			}
			arr = append(arr, e)
		}
		return Value{Kind: kind, Arr: arr}, nil
	case KindDict:
		n, err := r.ArrayCount()
		if err != nil {
			return Value{}, err
		}
		dict := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			kb, err := r.Bytes()
			if err != nil {
				return Value{}, xerrors.Errorf("dict key %d: %w", i, err)
			}
			v, err := r.value()
			if err != nil {
				return Value{}, xerrors.Errorf("dict value %d: %w", i, err)
			}
			dict[string(kb)] = v
		}
		return Value{Kind: kind, Dict: dict}, nil
	case KindTuple:
		n, err := r.ArrayCount()
		if err != nil {
			return Value{}, err
		}
		tup := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			e, err := r.value()
			if err != nil {
				return Value{}, xerrors.Errorf("tuple element %d: %w", i, err)
			}
			tup = append(tup, e)
		}
		return Value{Kind: kind, Tuple: tup}, nil
	default:
		return Value{}, xerrors.Errorf("unknown value kind %d", kind)
	}
}

// Unmarshal parses a single canonical Value from buf.
func Unmarshal(buf []byte) (Value, error) {
	r := NewReader(buf)
	v, err := r.value()
	if err != nil {
		return Value{}, err
	}
	if r.Remaining() != 0 {
		return Value{}, xerrors.Errorf("trailing bytes after value")
	}
	return v, nil
}

func sortStrings(s []string) {
	// small, allocation-light insertion sort: metadata dicts are tiny
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
