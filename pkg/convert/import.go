package convert

import (
	"context"
	"io"

	"github.com/ipld/go-ipld-prime/datamodel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/jsonenc"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
	"github.com/HDFGroup/hdf5-json/pkg/typecodec"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

// ReadDocument parses a document.
//
// Errors:
//
//   - h5json-error-serialization -- when r does not hold JSON
//   - h5json-error-invalid-argument -- when the JSON is not a document
func ReadDocument(r io.Reader) (datamodel.Node, error) {
	doc, err := jsonenc.Decode(r)
	if err != nil {
		return nil, err
	}
	if doc.Kind() != datamodel.Kind_Map {
		return nil, h5api.ErrorInvalidArgument("a document must be a map")
	}
	if _, err := RootUUID(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RootUUID is the uuid of the root group of a document.
// A store receiving the document must be created with that root uuid.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the document has no root
func RootUUID(doc datamodel.Node) (string, error) {
	n, err := doc.LookupByString("root")
	if err != nil {
		return "", h5api.ErrorInvalidArgument("document has no root")
	}
	s, err := n.AsString()
	if err != nil || s == "" {
		return "", h5api.ErrorInvalidArgument("document root must be a uuid")
	}
	return s, nil
}

type importer struct {
	db  *h5db.DB
	log *logging.Logger
}

// Import creates every object of the document in db, keeping the document's uuids.
// Objects are created first (groups, then committed types, then datasets),
// then links, then attributes and dataset values, so that every reference
// resolves. Dimension lists are attached last.
//
// Errors:
//
//   - h5json-error-invalid-argument -- when the document is malformed, or db has another root uuid
//   - h5json-error-invalid-type -- when a type is malformed
//   - h5json-error-shape-mismatch -- when a value does not match its shape or type
//   - h5json-error-permission-denied -- when db is read-only
func Import(ctx context.Context, db *h5db.DB, doc datamodel.Node) error {
	ctx, span := tracing.Start(ctx, "convert.Import", trace.WithAttributes(attribute.String(tracing.AttrKeyFilename, db.Filename())))
	defer span.End()
	im := &importer{db: db, log: logging.Ctx(ctx)}
	err := im.run(ctx, doc)
	tracing.SetSpanError(ctx, err)
	return err
}

// entries lists the members of an optional map of objects.
func entries(doc datamodel.Node, key string) ([]string, map[string]datamodel.Node, error) {
	n, err := doc.LookupByString(key)
	if err != nil {
		return nil, nil, nil
	}
	if n.Kind() != datamodel.Kind_Map {
		return nil, nil, h5api.ErrorInvalidArgument("document " + key + " must be a map")
	}
	var keys []string
	m := map[string]datamodel.Node{}
	itr := n.MapIterator()
	for !itr.Done() {
		k, v, err := itr.Next()
		if err != nil {
			return nil, nil, h5api.ErrorInvalidArgument("reading document " + key + ": " + err.Error())
		}
		ks, _ := k.AsString()
		keys = append(keys, ks)
		m[ks] = v
	}
	return keys, m, nil
}

func list(n datamodel.Node, key string) ([]datamodel.Node, error) {
	ln, err := n.LookupByString(key)
	if err != nil {
		return nil, nil
	}
	if ln.Kind() != datamodel.Kind_List {
		return nil, h5api.ErrorInvalidArgument(key + " must be a list")
	}
	out := make([]datamodel.Node, 0, ln.Length())
	itr := ln.ListIterator()
	for !itr.Done() {
		_, v, err := itr.Next()
		if err != nil {
			return nil, h5api.ErrorInvalidArgument("reading " + key + ": " + err.Error())
		}
		out = append(out, v)
	}
	return out, nil
}

func str(n datamodel.Node, key string) (string, error) {
	v, err := n.LookupByString(key)
	if err != nil {
		return "", h5api.ErrorInvalidArgument("missing key", [2]string{"key", key})
	}
	s, err := v.AsString()
	if err != nil {
		return "", h5api.ErrorInvalidArgument("expected a string", [2]string{"key", key})
	}
	return s, nil
}

func parseType(n datamodel.Node) (h5api.TypeDescriptor, error) {
	tn, err := n.LookupByString("type")
	if err != nil {
		return h5api.TypeDescriptor{}, h5api.ErrorInvalidArgument("missing key", [2]string{"key", "type"})
	}
	return typecodec.ParseNode(tn)
}

func intList(n datamodel.Node, unlimited bool) ([]int, error) {
	if n.Kind() != datamodel.Kind_List {
		return nil, h5api.ErrorInvalidArgument("dims must be a list")
	}
	out := make([]int, 0, n.Length())
	itr := n.ListIterator()
	for !itr.Done() {
		_, v, err := itr.Next()
		if err != nil {
			return nil, h5api.ErrorInvalidArgument("reading dims: " + err.Error())
		}
		if s, err := v.AsString(); err == nil && unlimited && s == h5api.UnlimitedString {
			out = append(out, h5api.Unlimited)
			continue
		}
		x, err := v.AsInt()
		if err != nil {
			return nil, h5api.ErrorInvalidArgument("dims must be integers")
		}
		out = append(out, int(x))
	}
	return out, nil
}

// parseShape reads a shape; a missing shape is scalar.
func parseShape(n datamodel.Node) (h5api.Shape, error) {
	sn, err := n.LookupByString("shape")
	if err != nil {
		return h5api.Shape{Class: h5api.ShapeClass_Scalar}, nil
	}
	class, err := str(sn, "class")
	if err != nil {
		return h5api.Shape{}, err
	}
	shape := h5api.Shape{Class: h5api.ShapeClass(class)}
	if dn, err := sn.LookupByString("dims"); err == nil {
		if shape.Dims, err = intList(dn, false); err != nil {
			return h5api.Shape{}, err
		}
	}
	if mn, err := sn.LookupByString("maxdims"); err == nil {
		if shape.MaxDims, err = intList(mn, true); err != nil {
			return h5api.Shape{}, err
		}
	}
	return shape, nil
}

// value reads an optional value; ok is false when there is none.
func value(n datamodel.Node) (v any, ok bool, err error) {
	vn, err := n.LookupByString("value")
	if err != nil {
		return nil, false, nil
	}
	v, err = valuecodec.FromNode(vn)
	return v, err == nil, err
}

func (im *importer) run(ctx context.Context, doc datamodel.Node) error {
	root, err := RootUUID(doc)
	if err != nil {
		return err
	}
	if root != im.db.RootUUID() {
		return h5api.ErrorInvalidArgument("the store has another root group",
			[2]string{"document", root},
			[2]string{"store", im.db.RootUUID()},
		)
	}
	groupIDs, groups, err := entries(doc, "groups")
	if err != nil {
		return err
	}
	typeIDs, types, err := entries(doc, "datatypes")
	if err != nil {
		return err
	}
	datasetIDs, datasets, err := entries(doc, "datasets")
	if err != nil {
		return err
	}

	for _, id := range groupIDs {
		if id == root {
			continue
		}
		if _, err := im.db.CreateGroup(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range typeIDs {
		t, err := parseType(types[id])
		if err != nil {
			return err
		}
		if _, err := im.db.CreateCommittedType(ctx, id, t); err != nil {
			return err
		}
	}
	for _, id := range datasetIDs {
		if err := im.createDataset(ctx, id, datasets[id]); err != nil {
			return err
		}
	}

	for _, id := range groupIDs {
		if err := im.links(ctx, id, groups[id]); err != nil {
			return err
		}
	}

	var dimLists []func() error
	attrs := func(kind h5api.ObjectKind, ids []string, objs map[string]datamodel.Node) error {
		for _, id := range ids {
			later, err := im.attributes(ctx, kind, id, objs[id])
			if err != nil {
				return err
			}
			dimLists = append(dimLists, later...)
		}
		return nil
	}
	if err := attrs(h5api.ObjectKind_Group, groupIDs, groups); err != nil {
		return err
	}
	if err := attrs(h5api.ObjectKind_Datatype, typeIDs, types); err != nil {
		return err
	}
	if err := attrs(h5api.ObjectKind_Dataset, datasetIDs, datasets); err != nil {
		return err
	}
	for _, id := range datasetIDs {
		if err := im.datasetValue(ctx, id, datasets[id]); err != nil {
			return err
		}
	}
	for _, attach := range dimLists {
		if err := attach(); err != nil {
			return err
		}
	}
	im.log.Info(LOG_TAG, "imported %d groups, %d datatypes, %d datasets", len(groupIDs), len(typeIDs), len(datasetIDs))
	return nil
}

func (im *importer) createDataset(ctx context.Context, id string, n datamodel.Node) error {
	t, err := parseType(n)
	if err != nil {
		return err
	}
	shape, err := parseShape(n)
	if err != nil {
		return err
	}
	req := h5db.DatasetRequest{ID: id, Type: t, Shape: shape}
	if pn, err := n.LookupByString("creationProperties"); err == nil {
		if req.Props, err = h5api.ParseCreationProperties(pn); err != nil {
			return err
		}
	}
	_, err = im.db.CreateDataset(ctx, req)
	return err
}

func (im *importer) links(ctx context.Context, parent string, n datamodel.Node) error {
	links, err := list(n, "links")
	if err != nil {
		return err
	}
	for _, ln := range links {
		title, err := str(ln, "title")
		if err != nil {
			return err
		}
		class, err := str(ln, "class")
		if err != nil {
			return err
		}
		switch h5api.LinkClass(class) {
		case h5api.LinkClass_Hard:
			id, err := str(ln, "id")
			if err != nil {
				return err
			}
			err = im.db.LinkObject(ctx, parent, id, title)
			if err != nil {
				return err
			}
		case h5api.LinkClass_Soft:
			path, err := str(ln, "h5path")
			if err != nil {
				return err
			}
			if err := im.db.CreateSoftLink(ctx, parent, path, title); err != nil {
				return err
			}
		case h5api.LinkClass_External:
			path, err := str(ln, "h5path")
			if err != nil {
				return err
			}
			file, err := str(ln, "file")
			if err != nil {
				return err
			}
			if err := im.db.CreateExternalLink(ctx, parent, file, path, title); err != nil {
				return err
			}
		default:
			im.log.Warn(LOG_TAG, "skipping link %q of %s with class %q", title, parent, class)
		}
	}
	return nil
}

// attributes creates the attributes of one object. Dimension lists are
// returned for later, once every scale has its attributes.
func (im *importer) attributes(ctx context.Context, kind h5api.ObjectKind, id string, n datamodel.Node) ([]func() error, error) {
	attrs, err := list(n, "attributes")
	if err != nil {
		return nil, err
	}
	var later []func() error
	for _, an := range attrs {
		name, err := str(an, "name")
		if err != nil {
			return nil, err
		}
		if name == h5db.ReferenceListAttr {
			continue
		}
		t, err := parseType(an)
		if err != nil {
			return nil, err
		}
		shape, err := parseShape(an)
		if err != nil {
			return nil, err
		}
		v, _, err := value(an)
		if err != nil {
			return nil, err
		}
		req := h5db.AttributeRequest{Name: name, Type: t, Shape: shape, Value: v}
		if name == h5db.DimensionListAttr && kind == h5api.ObjectKind_Dataset {
			later = append(later, func() error {
				return im.db.CreateAttribute(ctx, kind, id, req)
			})
			continue
		}
		if err := im.db.CreateAttribute(ctx, kind, id, req); err != nil {
			return nil, err
		}
	}
	return later, nil
}

func (im *importer) datasetValue(ctx context.Context, id string, n datamodel.Node) error {
	v, ok, err := value(n)
	if err != nil || !ok || v == nil {
		return err
	}
	shape, err := parseShape(n)
	if err != nil {
		return err
	}
	if shape.Class == h5api.ShapeClass_Null || shape.NumElements() == 0 {
		return nil
	}
	return im.db.SetDatasetValues(ctx, id, nil, v)
}
