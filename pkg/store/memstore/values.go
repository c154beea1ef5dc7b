package memstore

import (
	"fmt"
	"math"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// normalize checks that v fits t and converts it to the canonical native form
// described in the store package documentation.
func normalize(t *store.Type, v any) (any, error) {
	switch t.Class {
	case store.ClassInteger:
		return normalizeInt(t, v)
	case store.ClassEnum:
		base := t.Base
		if base == nil {
			base = &store.Type{Class: store.ClassInteger, Size: t.Size, Signed: t.Signed}
		}
		n, err := normalizeInt(base, v)
		if err != nil {
			return nil, err
		}
		if u, ok := n.(uint64); ok {
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("enum value %d: %w", u, store.ErrTypeMismatch)
			}
			return int64(u), nil
		}
		return n, nil
	case store.ClassFloat:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%T is not a float: %w", v, store.ErrTypeMismatch)
		}
		if t.Size == 4 && !math.IsInf(f, 0) && !math.IsNaN(f) {
			if math.Abs(f) > math.MaxFloat32 {
				return nil, fmt.Errorf("%g overflows a 32-bit float: %w", f, store.ErrTypeMismatch)
			}
			f = float64(float32(f))
		}
		return f, nil
	case store.ClassString:
		b, ok := toBytes(v)
		if !ok {
			return nil, fmt.Errorf("%T is not a string: %w", v, store.ErrTypeMismatch)
		}
		pad := byte(0)
		if t.StrPad == store.StrPadSpacePad {
			pad = ' '
		}
		return fixBytes(b, t.Size, pad), nil
	case store.ClassOpaque:
		b, ok := toBytes(v)
		if !ok {
			return nil, fmt.Errorf("%T is not opaque data: %w", v, store.ErrTypeMismatch)
		}
		return fixBytes(b, t.Size, 0), nil
	case store.ClassVlen:
		if t.IsVariableString() {
			switch x := v.(type) {
			case string:
				return x, nil
			case []byte:
				return string(x), nil
			}
			return nil, fmt.Errorf("%T is not a string: %w", v, store.ErrTypeMismatch)
		}
		seq, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%T is not a sequence: %w", v, store.ErrTypeMismatch)
		}
		return normalizeEach(t.Base, seq)
	case store.ClassArray:
		seq, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%T is not an array: %w", v, store.ErrTypeMismatch)
		}
		if len(seq) != t.ArrayLen() {
			return nil, fmt.Errorf("array of %d elements for dims %v: %w", len(seq), t.Dims, store.ErrTypeMismatch)
		}
		return normalizeEach(t.Base, seq)
	case store.ClassCompound:
		return normalizeCompound(t, v)
	case store.ClassReference:
		return normalizeRef(t, v)
	}
	return nil, fmt.Errorf("type class %v: %w", t.Class, store.ErrTypeMismatch)
}

func normalizeEach(base *store.Type, seq []any) ([]any, error) {
	if base == nil {
		return nil, fmt.Errorf("sequence type without a base: %w", store.ErrTypeMismatch)
	}
	out := make([]any, len(seq))
	for i, e := range seq {
		n, err := normalize(base, e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func normalizeCompound(t *store.Type, v any) (any, error) {
	switch x := v.(type) {
	case []any:
		if len(x) != len(t.Members) {
			return nil, fmt.Errorf("%d values for %d compound members: %w", len(x), len(t.Members), store.ErrTypeMismatch)
		}
		out := make([]any, len(x))
		for i, m := range t.Members {
			n, err := normalize(m.Type, x[i])
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		seq := make([]any, len(t.Members))
		for i, m := range t.Members {
			e, ok := x[m.Name]
			if !ok {
				return nil, fmt.Errorf("missing compound member %q: %w", m.Name, store.ErrTypeMismatch)
			}
			seq[i] = e
		}
		return normalizeCompound(t, seq)
	}
	return nil, fmt.Errorf("%T is not a compound value: %w", v, store.ErrTypeMismatch)
}

func normalizeRef(t *store.Type, v any) (any, error) {
	switch t.RefKind {
	case store.RefObject:
		switch x := v.(type) {
		case nil:
			return store.ObjectRef{}, nil
		case store.ObjectRef:
			return x, nil
		case *store.ObjectRef:
			return *x, nil
		}
	case store.RefRegion:
		switch x := v.(type) {
		case nil:
			return store.RegionRef{}, nil
		case store.RegionRef:
			return x, nil
		case *store.RegionRef:
			return *x, nil
		}
	}
	return nil, fmt.Errorf("%T is not a reference of this kind: %w", v, store.ErrTypeMismatch)
}

func normalizeInt(t *store.Type, v any) (any, error) {
	size := t.Size
	if size < 1 || size > 8 {
		size = 8
	}
	bits := uint(size * 8)
	var neg bool
	var mag uint64
	switch x := v.(type) {
	case int:
		neg, mag = x < 0, absInt(int64(x))
	case int8:
		neg, mag = x < 0, absInt(int64(x))
	case int16:
		neg, mag = x < 0, absInt(int64(x))
	case int32:
		neg, mag = x < 0, absInt(int64(x))
	case int64:
		neg, mag = x < 0, absInt(x)
	case uint:
		mag = uint64(x)
	case uint8:
		mag = uint64(x)
	case uint16:
		mag = uint64(x)
	case uint32:
		mag = uint64(x)
	case uint64:
		mag = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) || math.Abs(x) >= 1<<63 {
			return nil, fmt.Errorf("%g is not an integer: %w", x, store.ErrTypeMismatch)
		}
		neg, mag = x < 0, absInt(int64(x))
	case bool:
		if x {
			mag = 1
		}
	default:
		return nil, fmt.Errorf("%T is not an integer: %w", v, store.ErrTypeMismatch)
	}
	if t.Signed {
		limit := uint64(1) << (bits - 1)
		if (!neg && mag >= limit) || (neg && mag > limit) {
			return nil, fmt.Errorf("%s%d overflows a signed %d-bit integer: %w", sign(neg), mag, bits, store.ErrTypeMismatch)
		}
		if neg {
			return -int64(mag-1) - 1, nil
		}
		return int64(mag), nil
	}
	if neg {
		return nil, fmt.Errorf("-%d is negative for an unsigned integer: %w", mag, store.ErrTypeMismatch)
	}
	if bits < 64 && mag >= uint64(1)<<bits {
		return nil, fmt.Errorf("%d overflows an unsigned %d-bit integer: %w", mag, bits, store.ErrTypeMismatch)
	}
	if bits == 64 {
		return mag, nil
	}
	return int64(mag), nil
}

func absInt(x int64) uint64 {
	if x < 0 {
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}

func sign(neg bool) string {
	if neg {
		return "-"
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	}
	return 0, false
}

func toBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

// fixBytes truncates or pads b to exactly size bytes.
func fixBytes(b []byte, size int, pad byte) []byte {
	out := make([]byte, size)
	n := copy(out, b)
	for i := n; i < size; i++ {
		out[i] = pad
	}
	return out
}

// zeroValue is the value new elements take when no fill value is set.
func zeroValue(t *store.Type) any {
	switch t.Class {
	case store.ClassInteger:
		if !t.Signed && t.Size == 8 {
			return uint64(0)
		}
		return int64(0)
	case store.ClassEnum:
		return int64(0)
	case store.ClassFloat:
		return float64(0)
	case store.ClassString:
		if t.StrPad == store.StrPadSpacePad {
			return fixBytes(nil, t.Size, ' ')
		}
		return make([]byte, t.Size)
	case store.ClassOpaque:
		return make([]byte, t.Size)
	case store.ClassVlen:
		if t.IsVariableString() {
			return ""
		}
		return []any{}
	case store.ClassArray:
		out := make([]any, t.ArrayLen())
		for i := range out {
			out[i] = zeroValue(t.Base)
		}
		return out
	case store.ClassCompound:
		out := make([]any, len(t.Members))
		for i, m := range t.Members {
			out[i] = zeroValue(m.Type)
		}
		return out
	case store.ClassReference:
		if t.RefKind == store.RefRegion {
			return store.RegionRef{}
		}
		return store.ObjectRef{}
	}
	return nil
}
