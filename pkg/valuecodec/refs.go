package valuecodec

import (
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// RefResolver maps store addresses to object identities and back.
type RefResolver interface {
	// ObjectID names the object at addr.
	ObjectID(addr store.Addr) (h5api.ObjectKind, string, error)
	// ObjectAddr resolves an object identity to its address.
	ObjectAddr(kind h5api.ObjectKind, uuid string) (store.Addr, error)
	// DatasetRank resolves a dataset uuid to its address and rank.
	DatasetRank(uuid string) (store.Addr, int, error)
}

var selectTypes = map[store.SelectionKind]h5api.SelectType{
	store.SelectNone:       h5api.SelectType_None,
	store.SelectAll:        h5api.SelectType_All,
	store.SelectPoints:     h5api.SelectType_Points,
	store.SelectHyperslabs: h5api.SelectType_Hyperslabs,
}

func (c *Codec) decodeRef(rt *h5api.ReferenceType, v any) (any, error) {
	switch rt.Kind {
	case h5api.RefKind_Object:
		var ref store.ObjectRef
		switch x := v.(type) {
		case store.ObjectRef:
			ref = x
		case *store.ObjectRef:
			if x != nil {
				ref = *x
			}
		case nil:
		default:
			return nil, mismatch("object reference", v)
		}
		if ref.IsNull() {
			return h5api.NullRefString, nil
		}
		kind, uuid, err := c.resolver().ObjectID(ref.Addr)
		if err != nil {
			// Dangling references read as null.
			if h5api.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return h5api.ObjectRefString(kind, uuid), nil
	case h5api.RefKind_Region:
		var ref store.RegionRef
		switch x := v.(type) {
		case store.RegionRef:
			ref = x
		case *store.RegionRef:
			if x != nil {
				ref = *x
			}
		case nil:
		default:
			return nil, mismatch("region reference", v)
		}
		sel, err := c.RegionToWire(ref)
		if err != nil {
			return nil, err
		}
		return RegionValue(sel), nil
	}
	return nil, h5api.ErrorInvalidType("unknown reference kind", [2]string{"base", string(rt.Kind)})
}

func (c *Codec) encodeRef(rt *h5api.ReferenceType, v any) (any, error) {
	switch rt.Kind {
	case h5api.RefKind_Object:
		switch x := v.(type) {
		case nil:
			return store.ObjectRef{}, nil
		case string:
			if x == "" || x == h5api.NullRefString {
				return store.ObjectRef{}, nil
			}
			kind, uuid, err := h5api.ParseObjectRefString(x)
			if err != nil {
				return nil, err
			}
			addr, err := c.resolver().ObjectAddr(kind, uuid)
			if err != nil {
				return nil, err
			}
			return store.ObjectRef{Addr: addr}, nil
		}
		return nil, badValue("object reference", v)
	case h5api.RefKind_Region:
		switch x := v.(type) {
		case nil:
			return store.RegionRef{}, nil
		case string:
			if x == "" || x == h5api.NullRefString {
				return store.RegionRef{}, nil
			}
		case map[string]any:
			sel, err := RegionFromValue(x)
			if err != nil {
				return nil, err
			}
			return c.RegionFromWire(sel)
		}
		return nil, badValue("region reference", v)
	}
	return nil, h5api.ErrorInvalidType("unknown reference kind", [2]string{"base", string(rt.Kind)})
}

// RegionToWire converts a stored region reference.
// Hyperslab stops become exclusive.
// The null region converts to the zero RegionSelection.
//
// Errors:
//
//   - h5json-error-not-found -- when the referenced dataset is gone and the resolver reports it as an error
func (c *Codec) RegionToWire(ref store.RegionRef) (h5api.RegionSelection, error) {
	if ref.IsNull() {
		return h5api.RegionSelection{}, nil
	}
	_, uuid, err := c.resolver().ObjectID(ref.Addr)
	if err != nil {
		if h5api.IsNotFound(err) {
			return h5api.RegionSelection{}, nil
		}
		return h5api.RegionSelection{}, err
	}
	sel := h5api.RegionSelection{ID: uuid, SelectType: selectTypes[ref.Kind]}
	switch ref.Kind {
	case store.SelectPoints:
		sel.Points = make([][]int, len(ref.Points))
		for i, p := range ref.Points {
			sel.Points[i] = append([]int(nil), p...)
		}
	case store.SelectHyperslabs:
		sel.Hyperslabs = make([]h5api.Hyperslab, len(ref.Blocks))
		for i, b := range ref.Blocks {
			stop := make([]int, len(b.End))
			for j, e := range b.End {
				stop[j] = e + 1
			}
			sel.Hyperslabs[i] = h5api.Hyperslab{Start: append([]int(nil), b.Start...), Stop: stop}
		}
	}
	return sel, nil
}

// RegionFromWire validates a region selection against its dataset and
// converts it for storage.
// A none selection without an id is the null region.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the selection is malformed or does not match the dataset's rank
//   - h5json-error-not-found -- when the id is not a dataset
func (c *Codec) RegionFromWire(sel h5api.RegionSelection) (store.RegionRef, error) {
	if sel.SelectType == "" {
		return store.RegionRef{}, h5api.ErrorInvalidArgument("select_type not provided for region selection")
	}
	var kind store.SelectionKind
	found := false
	for k, name := range selectTypes {
		if name == sel.SelectType {
			kind, found = k, true
		}
	}
	if !found {
		return store.RegionRef{}, h5api.ErrorInvalidArgument("unknown select_type", [2]string{"select_type", string(sel.SelectType)})
	}
	if kind == store.SelectNone && sel.ID == "" {
		return store.RegionRef{}, nil
	}
	if sel.ID == "" {
		return store.RegionRef{}, h5api.ErrorInvalidArgument("id not provided for region selection")
	}
	if len(sel.ID) != h5api.UUIDLen {
		return store.RegionRef{}, h5api.ErrorInvalidArgument("region reference id is not valid", [2]string{"id", sel.ID})
	}
	addr, rank, err := c.resolver().DatasetRank(sel.ID)
	if err != nil {
		return store.RegionRef{}, err
	}
	ref := store.RegionRef{Addr: addr, Kind: kind}
	switch kind {
	case store.SelectPoints:
		if sel.Points == nil {
			return store.RegionRef{}, h5api.ErrorInvalidArgument("selection key not provided for point selection")
		}
		ref.Points = make([][]int, len(sel.Points))
		for i, p := range sel.Points {
			if len(p) != rank {
				return store.RegionRef{}, h5api.ErrorInvalidArgument("invalid point for selection: rank does not match",
					[2]string{"rank", strconv.Itoa(rank)},
					[2]string{"found", strconv.Itoa(len(p))},
				)
			}
			for _, x := range p {
				if x < 0 {
					return store.RegionRef{}, h5api.ErrorInvalidArgument("invalid point for selection: negative coordinate")
				}
			}
			ref.Points[i] = append([]int(nil), p...)
		}
	case store.SelectHyperslabs:
		if sel.Hyperslabs == nil {
			return store.RegionRef{}, h5api.ErrorInvalidArgument("selection key not provided for hyperslab selection")
		}
		ref.Blocks = make([]store.Block, len(sel.Hyperslabs))
		for i, slab := range sel.Hyperslabs {
			if len(slab.Start) != rank || len(slab.Stop) != rank {
				return store.RegionRef{}, h5api.ErrorInvalidArgument("invalid hyperslab for selection: rank does not match",
					[2]string{"rank", strconv.Itoa(rank)},
				)
			}
			end := make([]int, rank)
			for j := range slab.Start {
				if slab.Start[j] < 0 {
					return store.RegionRef{}, h5api.ErrorInvalidArgument("invalid hyperslab for selection: negative start")
				}
				if slab.Stop[j] <= slab.Start[j] {
					return store.RegionRef{}, h5api.ErrorInvalidArgument("invalid hyperslab for selection: stop must be greater than start")
				}
				end[j] = slab.Stop[j] - 1
			}
			ref.Blocks[i] = store.Block{Start: append([]int(nil), slab.Start...), End: end}
		}
	}
	return ref, nil
}

// RegionValue renders a region selection as a JSON value tree.
// The null region renders as an empty map.
func RegionValue(sel h5api.RegionSelection) map[string]any {
	out := map[string]any{}
	if sel.ID == "" {
		return out
	}
	out["id"] = sel.ID
	out["select_type"] = string(sel.SelectType)
	switch sel.SelectType {
	case h5api.SelectType_Points:
		points := make([]any, len(sel.Points))
		for i, p := range sel.Points {
			points[i] = intList(p)
		}
		out["selection"] = points
	case h5api.SelectType_Hyperslabs:
		slabs := make([]any, len(sel.Hyperslabs))
		for i, s := range sel.Hyperslabs {
			slabs[i] = []any{intList(s.Start), intList(s.Stop)}
		}
		out["selection"] = slabs
	default:
		out["selection"] = nil
	}
	return out
}

// RegionFromValue reads the JSON form of a region reference.
// An empty map is the null region.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the map is not a region value
func RegionFromValue(m map[string]any) (h5api.RegionSelection, error) {
	if len(m) == 0 {
		return h5api.RegionSelection{SelectType: h5api.SelectType_None}, nil
	}
	var sel h5api.RegionSelection
	if v, ok := m["select_type"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return sel, h5api.ErrorInvalidArgument("select_type must be a string")
		}
		sel.SelectType = h5api.SelectType(s)
	}
	if v, ok := m["id"]; ok && v != nil {
		s, isStr := v.(string)
		if !isStr {
			return sel, h5api.ErrorInvalidArgument("region reference id must be a string")
		}
		sel.ID = s
	}
	raw, ok := m["selection"]
	if !ok || raw == nil {
		return sel, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return sel, h5api.ErrorInvalidArgument("selection must be a list")
	}
	switch sel.SelectType {
	case h5api.SelectType_Points:
		sel.Points = make([][]int, len(items))
		for i, item := range items {
			p, err := toInts(item)
			if err != nil {
				return sel, err
			}
			sel.Points[i] = p
		}
	case h5api.SelectType_Hyperslabs:
		sel.Hyperslabs = make([]h5api.Hyperslab, len(items))
		for i, item := range items {
			pair, isList := item.([]any)
			if !isList || len(pair) != 2 {
				return sel, h5api.ErrorInvalidArgument("hyperslab must be a [start, stop] pair")
			}
			start, err := toInts(pair[0])
			if err != nil {
				return sel, err
			}
			stop, err := toInts(pair[1])
			if err != nil {
				return sel, err
			}
			sel.Hyperslabs[i] = h5api.Hyperslab{Start: start, Stop: stop}
		}
	}
	return sel, nil
}

func (c *Codec) resolver() RefResolver {
	if c.Refs == nil {
		return noRefs{}
	}
	return c.Refs
}

type noRefs struct{}

func (noRefs) ObjectID(store.Addr) (h5api.ObjectKind, string, error) {
	return "", "", h5api.ErrorInternal("references are not available here", nil)
}

func (noRefs) ObjectAddr(h5api.ObjectKind, string) (store.Addr, error) {
	return 0, h5api.ErrorInternal("references are not available here", nil)
}

func (noRefs) DatasetRank(string) (store.Addr, int, error) {
	return 0, 0, h5api.ErrorInternal("references are not available here", nil)
}

func intList(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

// toInts reads a coordinate list; a bare integer is a one element list.
func toInts(v any) ([]int, error) {
	switch x := v.(type) {
	case int64:
		return []int{int(x)}, nil
	case []any:
		out := make([]int, len(x))
		for i, e := range x {
			n, ok := e.(int64)
			if !ok {
				return nil, h5api.ErrorInvalidArgument("coordinate must be an integer", [2]string{"found", typeName(e)})
			}
			out[i] = int(n)
		}
		return out, nil
	}
	return nil, h5api.ErrorInvalidArgument("coordinates must be a list of integers", [2]string{"found", typeName(v)})
}
