package typecodec

import (
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// Size is the serialized size of one element.
// Variable is set when the element has no fixed size,
// in which case only the structured value path can carry it.
type Size struct {
	Bytes    int
	Variable bool
}

func (s Size) String() string {
	if s.Variable {
		return h5api.LengthVariable
	}
	return strconv.Itoa(s.Bytes)
}

var variable = Size{Variable: true}

// ElementSize computes the size of one element of d.
// Vlen and reference types, and anything containing them, are Variable.
//
// Errors:
//
//   - h5json-error-invalid-type -- when the descriptor is incomplete
//   - h5json-error-not-found -- when a Named descriptor does not resolve
func (c *Codec) ElementSize(d h5api.TypeDescriptor) (Size, error) {
	return c.elementSize(d, 0)
}

func (c *Codec) elementSize(d h5api.TypeDescriptor, depth int) (Size, error) {
	if depth > MaxDepth {
		return Size{}, h5api.ErrorInvalidType("type nesting is too deep", [2]string{"depth", strconv.Itoa(depth)})
	}
	switch {
	case d.Named != nil:
		t, err := c.resolveNamed(d.Named)
		if err != nil {
			return Size{}, err
		}
		inner, err := decode(t, depth+1)
		if err != nil {
			return Size{}, err
		}
		return c.elementSize(inner, depth+1)
	case d.Integer != nil:
		return Size{Bytes: d.Integer.Bits / 8}, nil
	case d.Float != nil:
		return Size{Bytes: d.Float.Bits / 8}, nil
	case d.String != nil:
		if d.String.Variable {
			return variable, nil
		}
		return Size{Bytes: d.String.Length}, nil
	case d.Vlen != nil, d.Reference != nil:
		return variable, nil
	case d.Opaque != nil:
		return Size{Bytes: d.Opaque.Size}, nil
	case d.Enum != nil:
		return Size{Bytes: d.Enum.Base.Bits / 8}, nil
	case d.Array != nil:
		base, err := c.elementSize(d.Array.Base, depth+1)
		if err != nil || base.Variable {
			return base, err
		}
		for _, n := range d.Array.Dims {
			base.Bytes *= n
		}
		return base, nil
	case d.Compound != nil:
		if len(d.Compound.Fields) == 0 {
			return Size{}, h5api.ErrorInvalidType("compound type has no fields")
		}
		var total Size
		for _, f := range d.Compound.Fields {
			fs, err := c.elementSize(f.Type, depth+1)
			if err != nil {
				return Size{}, err
			}
			if fs.Variable {
				return variable, nil
			}
			total.Bytes += fs.Bytes
		}
		return total, nil
	}
	return Size{}, h5api.ErrorInvalidType("type descriptor is empty")
}
