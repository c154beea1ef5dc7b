package memstore

import (
	"fmt"
	"strings"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// maxLinkDepth bounds soft link chasing.
const maxLinkDepth = 16

// object is a group, dataset or committed datatype.
// Which fields are in use depends on typ.
type object struct {
	st     *Store
	addr   store.Addr
	typ    store.ObjectType
	nlinks int
	attrs  *attrTable

	// groups
	links []store.LinkInfo

	// datasets and datatypes
	dtype *store.Type

	// datasets
	space store.Space
	spec  store.DatasetSpec
	data  []any
}

var (
	_ store.Group    = (*object)(nil)
	_ store.Dataset  = (*object)(nil)
	_ store.Datatype = (*object)(nil)
)

func (o *object) Addr() store.Addr       { return o.addr }
func (o *object) Type() store.ObjectType { return o.typ }
func (o *object) Attrs() store.Attributes {
	return o.attrs
}

func (o *object) Name() string {
	return o.st.pathOf(o.addr)
}

func (o *object) Links() []store.LinkInfo {
	out := make([]store.LinkInfo, len(o.links))
	copy(out, o.links)
	return out
}

func (o *object) Link(name string) (store.LinkInfo, bool) {
	i := o.linkIndex(name)
	if i < 0 {
		return store.LinkInfo{}, false
	}
	return o.links[i], true
}

func (o *object) linkIndex(name string) int {
	for i, l := range o.links {
		if l.Name == name {
			return i
		}
	}
	return -1
}

func (o *object) Get(path string) (store.Object, error) {
	obj, err := o.resolve(path, 0)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *object) resolve(path string, depth int) (*object, error) {
	if depth > maxLinkDepth {
		return nil, fmt.Errorf("resolving %q: too many levels of soft links: %w", path, store.ErrNotFound)
	}
	cur := o
	if strings.HasPrefix(path, "/") {
		cur = o.st.objects[o.st.root]
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		if cur.typ != store.ObjectGroup {
			return nil, fmt.Errorf("resolving %q: %q is not a group: %w", path, part, store.ErrNotFound)
		}
		i := cur.linkIndex(part)
		if i < 0 {
			return nil, fmt.Errorf("resolving %q: no link %q: %w", path, part, store.ErrNotFound)
		}
		l := cur.links[i]
		switch l.Class {
		case store.LinkHard:
			next, ok := o.st.objects[l.Target]
			if !ok {
				return nil, fmt.Errorf("resolving %q: dangling link %q: %w", path, part, store.ErrNotFound)
			}
			cur = next
		case store.LinkSoft:
			next, err := cur.resolve(l.Path, depth+1)
			if err != nil {
				return nil, err
			}
			cur = next
		default:
			return nil, fmt.Errorf("resolving %q: link %q does not resolve within this file: %w", path, part, store.ErrNotFound)
		}
	}
	return cur, nil
}

func (o *object) checkNewLink(name string) error {
	if err := o.st.checkWritable(); err != nil {
		return err
	}
	if o.typ != store.ObjectGroup {
		return fmt.Errorf("object %d is not a group: %w", o.addr, store.ErrTypeMismatch)
	}
	if name == "" || strings.Contains(name, "/") || name == "." {
		return fmt.Errorf("invalid link name %q: %w", name, store.ErrInvalidSelection)
	}
	if o.linkIndex(name) >= 0 {
		return fmt.Errorf("link %q: %w", name, store.ErrExists)
	}
	return nil
}

func (o *object) addLink(l store.LinkInfo) {
	o.links = append(o.links, l)
	o.st.dirty = true
}

func (o *object) LinkHard(name string, target store.Object) error {
	if err := o.checkNewLink(name); err != nil {
		return err
	}
	t, ok := o.st.objects[target.Addr()]
	if !ok {
		return fmt.Errorf("link target %d: %w", target.Addr(), store.ErrNotFound)
	}
	t.nlinks++
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkHard, Target: t.addr})
	return nil
}

func (o *object) LinkSoft(name string, path string) error {
	if err := o.checkNewLink(name); err != nil {
		return err
	}
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkSoft, Path: path})
	return nil
}

func (o *object) LinkExternal(name string, file string, path string) error {
	if err := o.checkNewLink(name); err != nil {
		return err
	}
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkExternal, Path: path, File: file})
	return nil
}

func (o *object) Unlink(name string) error {
	if err := o.st.checkWritable(); err != nil {
		return err
	}
	i := o.linkIndex(name)
	if i < 0 {
		return fmt.Errorf("link %q: %w", name, store.ErrNotFound)
	}
	l := o.links[i]
	o.links = append(o.links[:i:i], o.links[i+1:]...)
	o.st.dirty = true
	if l.Class == store.LinkHard {
		if t, ok := o.st.objects[l.Target]; ok && t.addr != o.st.root {
			t.nlinks--
			if t.nlinks <= 0 {
				o.st.free(t)
			}
		}
	}
	return nil
}

func (o *object) CreateGroup(name string) (store.Group, error) {
	if err := o.checkNewLink(name); err != nil {
		return nil, err
	}
	g := o.st.newObject(store.ObjectGroup)
	g.nlinks = 1
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkHard, Target: g.addr})
	return g, nil
}

func (o *object) CreateDataset(name string, spec store.DatasetSpec) (store.Dataset, error) {
	if err := o.checkNewLink(name); err != nil {
		return nil, err
	}
	if spec.Type == nil {
		return nil, fmt.Errorf("dataset %q has no type: %w", name, store.ErrTypeMismatch)
	}
	if err := checkSpace(spec.Space); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if spec.Space.MaxDims != nil && spec.Chunks == nil {
		// Extendable spaces need a chunked layout.
		spec.Chunks = defaultChunks(spec.Space)
	}
	if spec.Chunks != nil && len(spec.Chunks) != spec.Space.Rank() {
		return nil, fmt.Errorf("dataset %q: chunk rank %d does not match space rank %d: %w",
			name, len(spec.Chunks), spec.Space.Rank(), store.ErrInvalidSelection)
	}
	fill := zeroValue(spec.Type)
	if spec.FillValue != nil {
		v, err := normalize(spec.Type, spec.FillValue)
		if err != nil {
			return nil, fmt.Errorf("dataset %q fill value: %w", name, err)
		}
		fill = v
		spec.FillValue = v
	}
	d := o.st.newObject(store.ObjectDataset)
	d.nlinks = 1
	d.dtype = spec.Type
	d.space = copySpace(spec.Space)
	d.spec = spec
	d.spec.Space = d.space
	d.data = make([]any, spec.Space.NumElements())
	for i := range d.data {
		d.data[i] = fill
	}
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkHard, Target: d.addr})
	return d, nil
}

func (o *object) CommitType(name string, t *store.Type) (store.Datatype, error) {
	if err := o.checkNewLink(name); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("datatype %q has no type: %w", name, store.ErrTypeMismatch)
	}
	d := o.st.newObject(store.ObjectDatatype)
	d.nlinks = 1
	d.dtype = t.Clone()
	d.dtype.Addr = d.addr
	o.addLink(store.LinkInfo{Name: name, Class: store.LinkHard, Target: d.addr})
	return d, nil
}

func (o *object) DataType() *store.Type {
	return o.dtype
}

func (o *object) Space() store.Space {
	return copySpace(o.space)
}

func (o *object) Spec() store.DatasetSpec {
	s := o.spec
	s.Space = copySpace(o.space)
	return s
}

func checkSpace(sp store.Space) error {
	switch sp.Class {
	case store.SpaceNull, store.SpaceScalar:
		if len(sp.Dims) != 0 || len(sp.MaxDims) != 0 {
			return fmt.Errorf("null and scalar spaces have no dims: %w", store.ErrInvalidSelection)
		}
	case store.SpaceSimple:
		if len(sp.Dims) == 0 {
			return fmt.Errorf("simple space needs at least one dim: %w", store.ErrInvalidSelection)
		}
		for _, d := range sp.Dims {
			if d < 0 {
				return fmt.Errorf("negative extent %d: %w", d, store.ErrInvalidSelection)
			}
		}
		if sp.MaxDims != nil {
			if len(sp.MaxDims) != len(sp.Dims) {
				return fmt.Errorf("maxdims rank %d does not match dims rank %d: %w", len(sp.MaxDims), len(sp.Dims), store.ErrInvalidSelection)
			}
			for i, m := range sp.MaxDims {
				if m != store.Unlimited && m < sp.Dims[i] {
					return fmt.Errorf("maxdim %d is less than dim %d: %w", m, sp.Dims[i], store.ErrInvalidSelection)
				}
			}
		}
	default:
		return fmt.Errorf("unknown space class %d: %w", sp.Class, store.ErrInvalidSelection)
	}
	return nil
}

func copySpace(sp store.Space) store.Space {
	c := store.Space{Class: sp.Class}
	if sp.Dims != nil {
		c.Dims = append([]int(nil), sp.Dims...)
	}
	if sp.MaxDims != nil {
		c.MaxDims = append([]int(nil), sp.MaxDims...)
	}
	return c
}

func defaultChunks(sp store.Space) []int {
	chunks := make([]int, len(sp.Dims))
	for i, d := range sp.Dims {
		if d < 1 {
			d = 1
		}
		chunks[i] = d
	}
	chunks[0] = 1
	if len(chunks) == 1 {
		chunks[0] = 1024
	}
	return chunks
}

// attrTable keeps attributes in creation order.
type attrTable struct {
	owner *object
	names []string
	vals  map[string]*store.Attribute
}

func (a *attrTable) Names() []string {
	return append([]string(nil), a.names...)
}

func (a *attrTable) Len() int {
	return len(a.names)
}

func (a *attrTable) Get(name string) (*store.Attribute, error) {
	v, ok := a.vals[name]
	if !ok {
		return nil, fmt.Errorf("attribute %q: %w", name, store.ErrNotFound)
	}
	out := &store.Attribute{Type: v.Type, Space: copySpace(v.Space)}
	out.Values = append([]any(nil), v.Values...)
	return out, nil
}

// Set creates or replaces an attribute. Values must match the space's element count.
func (a *attrTable) Set(name string, attr store.Attribute) error {
	if err := a.owner.st.checkWritable(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("empty attribute name: %w", store.ErrInvalidSelection)
	}
	if attr.Type == nil {
		return fmt.Errorf("attribute %q has no type: %w", name, store.ErrTypeMismatch)
	}
	if err := checkSpace(attr.Space); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	n := attr.Space.NumElements()
	if len(attr.Values) != n {
		return fmt.Errorf("attribute %q: %d values for %d elements: %w", name, len(attr.Values), n, store.ErrInvalidSelection)
	}
	vals := make([]any, n)
	for i, v := range attr.Values {
		nv, err := normalize(attr.Type, v)
		if err != nil {
			return fmt.Errorf("attribute %q element %d: %w", name, i, err)
		}
		vals[i] = nv
	}
	if a.vals == nil {
		a.vals = map[string]*store.Attribute{}
	}
	if _, exists := a.vals[name]; !exists {
		a.names = append(a.names, name)
	}
	a.vals[name] = &store.Attribute{Type: attr.Type, Space: copySpace(attr.Space), Values: vals}
	a.owner.st.dirty = true
	return nil
}

func (a *attrTable) Delete(name string) error {
	if err := a.owner.st.checkWritable(); err != nil {
		return err
	}
	if _, ok := a.vals[name]; !ok {
		return fmt.Errorf("attribute %q: %w", name, store.ErrNotFound)
	}
	delete(a.vals, name)
	for i, n := range a.names {
		if n == name {
			a.names = append(a.names[:i:i], a.names[i+1:]...)
			break
		}
	}
	a.owner.st.dirty = true
	return nil
}
