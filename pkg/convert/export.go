/*
Package convert turns a whole store into a JSON document and back.

A document lists every object by uuid:

	{
	  "apiVersion": "1.1.1",
	  "root": "<uuid>",
	  "groups":    {"<uuid>": {"alias": [...], "attributes": [...], "links": [...]}},
	  "datasets":  {"<uuid>": {"alias": [...], "type": ..., "shape": ..., "creationProperties": ..., "attributes": [...], "value": ...}},
	  "datatypes": {"<uuid>": {"alias": [...], "type": ..., "attributes": [...]}}
	}

Types use the compact view of package typecodec, and unlimited max extents
are written as "H5S_UNLIMITED".
*/
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

const LOG_TAG = "convert"

type ExportOptions struct {
	// NoValues leaves out every value, attribute values included.
	NoValues bool
	// NoDatasetValues leaves out dataset values only.
	NoDatasetValues bool
}

type exporter struct {
	db   *h5db.DB
	opts ExportOptions
	log  *logging.Logger
}

// Export builds the document of everything in db.
//
// Errors:
//
//   - h5json-error-invalid-type -- when a type has no descriptor form
//   - h5json-error-serialization -- when a value has no JSON form
//   - h5json-error-io -- when the store engine fails
func Export(ctx context.Context, db *h5db.DB, opts ExportOptions) (datamodel.Node, error) {
	ctx, span := tracing.Start(ctx, "convert.Export", trace.WithAttributes(attribute.String(tracing.AttrKeyFilename, db.Filename())))
	defer span.End()
	ex := &exporter{db: db, opts: opts, log: logging.Ctx(ctx)}
	doc, err := ex.document(ctx)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return nil, err
	}
	n, err := valuecodec.ToNode(doc)
	tracing.SetSpanError(ctx, err)
	return n, err
}

// WriteDocument writes the document in its indented layout, followed by a newline.
//
// Errors:
//
//   - h5json-error-serialization --
//   - h5json-error-io -- when w fails
func WriteDocument(doc datamodel.Node, w io.Writer) error {
	if err := jsonenc.PrettyEncoder(doc, w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return h5api.ErrorIo("writing document", err)
	}
	return nil
}

func (ex *exporter) document(ctx context.Context) (map[string]any, error) {
	root := ex.db.RootUUID()
	doc := map[string]any{
		"apiVersion": h5api.APIVersion,
		"root":       root,
	}

	groups := map[string]any{}
	ids, err := ex.db.Collection(h5api.ObjectKind_Group, "", 0)
	if err != nil {
		return nil, err
	}
	for _, id := range append([]string{root}, ids...) {
		if groups[id], err = ex.group(ctx, id); err != nil {
			return nil, err
		}
	}
	doc["groups"] = groups

	ids, err = ex.db.Collection(h5api.ObjectKind_Dataset, "", 0)
	if err != nil {
		return nil, err
	}
	nDatasets := len(ids)
	if len(ids) > 0 {
		datasets := map[string]any{}
		for _, id := range ids {
			if datasets[id], err = ex.dataset(ctx, id); err != nil {
				return nil, err
			}
		}
		doc["datasets"] = datasets
	}

	ids, err = ex.db.Collection(h5api.ObjectKind_Datatype, "", 0)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		datatypes := map[string]any{}
		for _, id := range ids {
			if datatypes[id], err = ex.datatype(ctx, id); err != nil {
				return nil, err
			}
		}
		doc["datatypes"] = datatypes
	}
	ex.log.Debug(LOG_TAG, "exported %d groups, %d datasets, %d datatypes", len(groups), nDatasets, len(ids))
	return doc, nil
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func ints(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

func typeView(d h5api.TypeDescriptor) (any, error) {
	n, err := typecodec.ResponseView(d)
	if err != nil {
		return nil, err
	}
	return valuecodec.FromNode(n)
}

// shapeView writes unlimited max extents by name.
func shapeView(s h5api.Shape) map[string]any {
	out := map[string]any{"class": string(s.Class)}
	if s.Class == h5api.ShapeClass_Simple {
		out["dims"] = ints(s.Dims)
	}
	if s.MaxDims != nil {
		maxdims := make([]any, len(s.MaxDims))
		for i, m := range s.MaxDims {
			if m == h5api.Unlimited {
				maxdims[i] = h5api.UnlimitedString
			} else {
				maxdims[i] = int64(m)
			}
		}
		out["maxdims"] = maxdims
	}
	return out
}

func (ex *exporter) attributes(ctx context.Context, kind h5api.ObjectKind, id string) ([]any, error) {
	items, err := ex.db.GetAttributeItems(ctx, kind, id, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		item, err := ex.db.GetAttributeItem(ctx, kind, id, it.Name)
		if err != nil {
			return nil, err
		}
		t, err := typeView(item.Type)
		if err != nil {
			return nil, err
		}
		attr := map[string]any{
			"name":  item.Name,
			"type":  t,
			"shape": shapeView(item.Shape),
		}
		if !ex.opts.NoValues {
			if item.HasValue {
				attr["value"] = item.Value
			} else {
				ex.log.Warn(LOG_TAG, "no value for attribute %q of %s", item.Name, id)
			}
		}
		out = append(out, attr)
	}
	return out, nil
}

func linkView(l h5api.Link) map[string]any {
	out := map[string]any{"title": l.Title, "class": string(l.Class)}
	switch l.Class {
	case h5api.LinkClass_Hard:
		out["id"] = l.ID
		out["collection"] = string(l.Collection)
	case h5api.LinkClass_Soft:
		out["h5path"] = l.H5Path
	case h5api.LinkClass_External:
		out["h5path"] = l.H5Path
		out["file"] = l.File
	}
	return out
}

func (ex *exporter) group(ctx context.Context, id string) (map[string]any, error) {
	item, err := ex.db.GetGroupItem(ctx, id)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"alias": stringList(item.Alias)}
	attrs, err := ex.attributes(ctx, h5api.ObjectKind_Group, id)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		out["attributes"] = attrs
	}
	links, err := ex.db.GetLinkItems(ctx, id, "", 0)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		views := make([]any, len(links))
		for i, l := range links {
			views[i] = linkView(l)
		}
		out["links"] = views
	}
	return out, nil
}

func (ex *exporter) dataset(ctx context.Context, id string) (map[string]any, error) {
	ex.log.Debug(LOG_TAG, "exporting dataset %s", id)
	item, err := ex.db.GetDatasetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := typeView(item.Type)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"alias": stringList(item.Alias),
		"type":  t,
		"shape": shapeView(item.Shape),
	}
	if item.CreationProperties != nil {
		if out["creationProperties"], err = valuecodec.FromNode(item.CreationProperties.Node()); err != nil {
			return nil, err
		}
	}
	attrs, err := ex.attributes(ctx, h5api.ObjectKind_Dataset, id)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		out["attributes"] = attrs
	}
	if ex.opts.NoValues || ex.opts.NoDatasetValues {
		return out, nil
	}
	if item.Shape.Class == h5api.ShapeClass_Simple && item.Shape.NumElements() == 0 {
		out["value"] = []any{}
		return out, nil
	}
	if out["value"], err = ex.db.GetDatasetValues(ctx, id, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (ex *exporter) datatype(ctx context.Context, id string) (map[string]any, error) {
	item, err := ex.db.GetDatatypeItem(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := typeView(item.Type)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"alias": stringList(item.Alias), "type": t}
	attrs, err := ex.attributes(ctx, h5api.ObjectKind_Datatype, id)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		out["attributes"] = attrs
	}
	return out, nil
}
