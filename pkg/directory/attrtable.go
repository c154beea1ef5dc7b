package directory

import (
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// The directory keeps its tables as scalar attributes of private groups.

var (
	stringType = &store.Type{Class: store.ClassVlen, Base: &store.Type{Class: store.ClassString, Size: 1, CharSet: store.CharSetUTF8}}
	int64Type  = &store.Type{Class: store.ClassInteger, Size: 8, Order: store.OrderLE, Signed: true}
	refType    = &store.Type{Class: store.ClassReference, Size: 8, RefKind: store.RefObject}
	scalar     = store.Space{Class: store.SpaceScalar}
)

func setString(attrs store.Attributes, name, v string) error {
	return attrs.Set(name, store.Attribute{Type: stringType, Space: scalar, Values: []any{v}})
}

func setInt64(attrs store.Attributes, name string, v int64) error {
	return attrs.Set(name, store.Attribute{Type: int64Type, Space: scalar, Values: []any{v}})
}

func setRef(attrs store.Attributes, name string, addr store.Addr) error {
	return attrs.Set(name, store.Attribute{Type: refType, Space: scalar, Values: []any{store.ObjectRef{Addr: addr}}})
}

func has(attrs store.Attributes, name string) bool {
	_, err := attrs.Get(name)
	return err == nil
}

// scalarValue reads a scalar attribute; ok is false when it is absent.
func scalarValue(attrs store.Attributes, name string) (any, bool) {
	a, err := attrs.Get(name)
	if err != nil || len(a.Values) != 1 {
		return nil, false
	}
	return a.Values[0], true
}

func getString(attrs store.Attributes, name string) (string, bool) {
	v, ok := scalarValue(attrs, name)
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

func getInt64(attrs store.Attributes, name string) (int64, bool) {
	v, ok := scalarValue(attrs, name)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}
