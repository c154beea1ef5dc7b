package valuecodec

import (
	"fmt"
	"math"
	"sort"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// ToNode converts a JSON value tree to a data model node.
// Map keys come out sorted.
// Non-finite floats become the strings "NaN", "Infinity" and "-Infinity".
//
// Errors:
//
//   - h5json-error-serialization -- when the tree holds a value with no JSON form
func ToNode(v any) (datamodel.Node, error) {
	n, err := qp.BuildMap(basicnode.Prototype.Any, -1, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "v", valueAssembler(v))
	})
	if err != nil {
		return nil, h5api.ErrorSerialization("building value node", err)
	}
	return n.LookupByString("v")
}

func valueAssembler(v any) qp.Assemble {
	switch x := v.(type) {
	case nil:
		return qp.Null()
	case bool:
		return qp.Bool(x)
	case int64:
		return qp.Int(x)
	case int:
		return qp.Int(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return qp.Float(float64(x))
		}
		return qp.Int(int64(x))
	case float64:
		switch {
		case math.IsNaN(x):
			return qp.String("NaN")
		case math.IsInf(x, 1):
			return qp.String("Infinity")
		case math.IsInf(x, -1):
			return qp.String("-Infinity")
		}
		return qp.Float(x)
	case string:
		return qp.String(x)
	case []byte:
		return qp.String(string(x))
	case []any:
		return qp.List(int64(len(x)), func(la datamodel.ListAssembler) {
			for _, e := range x {
				qp.ListEntry(la, valueAssembler(e))
			}
		})
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return qp.Map(int64(len(x)), func(ma datamodel.MapAssembler) {
			for _, k := range keys {
				qp.MapEntry(ma, k, valueAssembler(x[k]))
			}
		})
	}
	return func(na datamodel.NodeAssembler) {
		panic(fmt.Errorf("no JSON form for %T", v))
	}
}

// FromNode converts a data model node to a JSON value tree.
//
// Errors:
//
//   - h5json-error-serialization -- when the node holds bytes or links
func FromNode(n datamodel.Node) (any, error) {
	switch n.Kind() {
	case datamodel.Kind_Null:
		return nil, nil
	case datamodel.Kind_Bool:
		return n.AsBool()
	case datamodel.Kind_Int:
		return n.AsInt()
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_String:
		return n.AsString()
	case datamodel.Kind_List:
		out := make([]any, 0, n.Length())
		itr := n.ListIterator()
		for !itr.Done() {
			_, v, err := itr.Next()
			if err != nil {
				return nil, h5api.ErrorSerialization("reading value node", err)
			}
			x, err := FromNode(v)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case datamodel.Kind_Map:
		out := make(map[string]any, n.Length())
		itr := n.MapIterator()
		for !itr.Done() {
			k, v, err := itr.Next()
			if err != nil {
				return nil, h5api.ErrorSerialization("reading value node", err)
			}
			ks, err := k.AsString()
			if err != nil {
				return nil, h5api.ErrorSerialization("reading value node", err)
			}
			x, err := FromNode(v)
			if err != nil {
				return nil, err
			}
			out[ks] = x
		}
		return out, nil
	}
	return nil, h5api.ErrorSerialization("reading value node", fmt.Errorf("no JSON form for kind %s", n.Kind()))
}
