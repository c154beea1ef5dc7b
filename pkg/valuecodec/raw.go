package valuecodec

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/typecodec"
)

// EncodeRaw packs flat native values into their binary element layout,
// honoring each member's byte order.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the type has a variable size
//   - h5json-error-shape-mismatch -- when a value does not fit its type
func (c *Codec) EncodeRaw(d h5api.TypeDescriptor, values []any) ([]byte, error) {
	d, size, err := c.fixedSize(d)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, size*len(values))
	for _, v := range values {
		out, err = appendRaw(out, d, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeRaw is the inverse of EncodeRaw.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the type has a variable size, or raw is not a whole number of elements
func (c *Codec) DecodeRaw(d h5api.TypeDescriptor, raw []byte) ([]any, error) {
	d, size, err := c.fixedSize(d)
	if err != nil {
		return nil, err
	}
	if size == 0 || len(raw)%size != 0 {
		return nil, h5api.ErrorInvalidArgument("binary data is not a whole number of elements",
			[2]string{"length", strconv.Itoa(len(raw))},
			[2]string{"itemsize", strconv.Itoa(size)},
		)
	}
	out := make([]any, len(raw)/size)
	for i := range out {
		out[i] = readRaw(d, raw[i*size:(i+1)*size])
	}
	return out, nil
}

func (c *Codec) fixedSize(d h5api.TypeDescriptor) (h5api.TypeDescriptor, int, error) {
	d, err := c.expand(d, 0)
	if err != nil {
		return d, 0, err
	}
	size, err := (&typecodec.Codec{}).ElementSize(d)
	if err != nil {
		return d, 0, err
	}
	if size.Variable {
		return d, 0, h5api.ErrorInvalidArgument("binary transfer is not supported for variable length types")
	}
	return d, size.Bytes, nil
}

// byteOrder reads and appends fixed width integers.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func order(o h5api.ByteOrder) byteOrder {
	if o == h5api.ByteOrder_BE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func appendUint(out []byte, bo byteOrder, bits int, u uint64) []byte {
	switch bits {
	case 8:
		return append(out, byte(u))
	case 16:
		return bo.AppendUint16(out, uint16(u))
	case 32:
		return bo.AppendUint32(out, uint32(u))
	}
	return bo.AppendUint64(out, u)
}

func appendRaw(out []byte, d h5api.TypeDescriptor, v any) ([]byte, error) {
	switch {
	case d.Integer != nil, d.Enum != nil:
		it := d.Integer
		if it == nil {
			it = &d.Enum.Base
		}
		var u uint64
		switch x := v.(type) {
		case int64:
			u = uint64(x)
		case uint64:
			u = x
		default:
			return nil, mismatch("integer", v)
		}
		return appendUint(out, order(it.Order), it.Bits, u), nil
	case d.Float != nil:
		f, ok := v.(float64)
		if !ok {
			return nil, mismatch("float", v)
		}
		if d.Float.Bits == 32 {
			return appendUint(out, order(d.Float.Order), 32, uint64(math.Float32bits(float32(f)))), nil
		}
		return appendUint(out, order(d.Float.Order), 64, math.Float64bits(f)), nil
	case d.String != nil:
		return appendFixed(out, v, d.String.Length)
	case d.Opaque != nil:
		return appendFixed(out, v, d.Opaque.Size)
	case d.Compound != nil:
		fields, ok := v.([]any)
		if !ok || len(fields) != len(d.Compound.Fields) {
			return nil, mismatch("compound", v)
		}
		var err error
		for i, f := range d.Compound.Fields {
			if out, err = appendRaw(out, f.Type, fields[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case d.Array != nil:
		elems, ok := v.([]any)
		if !ok || len(elems) != product(d.Array.Dims) {
			return nil, mismatch("array", v)
		}
		var err error
		for _, e := range elems {
			if out, err = appendRaw(out, d.Array.Base, e); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, h5api.ErrorInvalidArgument("binary transfer is not supported for " + string(d.Class()))
}

func appendFixed(out []byte, v any, size int) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, mismatch("fixed length", v)
	}
	start := len(out)
	out = append(out, make([]byte, size)...)
	copy(out[start:], b)
	return out, nil
}

func readUint(b []byte, bo byteOrder, bits int) uint64 {
	switch bits {
	case 8:
		return uint64(b[0])
	case 16:
		return uint64(bo.Uint16(b))
	case 32:
		return uint64(bo.Uint32(b))
	}
	return bo.Uint64(b)
}

// readRaw assumes b is exactly one element of a fixed size type.
func readRaw(d h5api.TypeDescriptor, b []byte) any {
	switch {
	case d.Integer != nil, d.Enum != nil:
		it := d.Integer
		if it == nil {
			it = &d.Enum.Base
		}
		u := readUint(b, order(it.Order), it.Bits)
		if !it.Signed {
			if it.Bits == 64 && d.Enum == nil {
				return u
			}
			return int64(u)
		}
		shift := 64 - uint(it.Bits)
		return int64(u<<shift) >> shift
	case d.Float != nil:
		if d.Float.Bits == 32 {
			return float64(math.Float32frombits(uint32(readUint(b, order(d.Float.Order), 32))))
		}
		return math.Float64frombits(readUint(b, order(d.Float.Order), 64))
	case d.String != nil, d.Opaque != nil:
		return append([]byte(nil), b...)
	case d.Compound != nil:
		out := make([]any, len(d.Compound.Fields))
		off := 0
		for i, f := range d.Compound.Fields {
			n := rawSize(f.Type)
			out[i] = readRaw(f.Type, b[off:off+n])
			off += n
		}
		return out
	case d.Array != nil:
		n := rawSize(d.Array.Base)
		out := make([]any, product(d.Array.Dims))
		for i := range out {
			out[i] = readRaw(d.Array.Base, b[i*n:(i+1)*n])
		}
		return out
	}
	return nil
}

func rawSize(d h5api.TypeDescriptor) int {
	size, _ := (&typecodec.Codec{}).ElementSize(d)
	return size.Bytes
}
