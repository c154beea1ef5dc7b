package directory

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/store"
	"github.com/HDFGroup/hdf5-json/pkg/tracing"
)

// An object is anonymous while no visible group links to it. Anonymous
// objects are kept alive by a hard link from their directory collection;
// linking one promotes it (that hard link becomes a reference attribute),
// and removing the last visible link demotes it again.

func checkLinkName(name string) error {
	if name == "" || name == "." || name == DBGroupName || strings.Contains(name, "/") {
		return h5api.ErrorInvalidArgument("invalid link name", [2]string{"name", name})
	}
	return nil
}

// Link adds a hard link named name from a group to an object.
// An existing link of that name is removed first.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only, or an existing user-defined link is in the way
//   - h5json-error-invalid-argument -- when the name is not a valid link name
//   - h5json-error-not-found -- when the parent group or the child does not exist
//   - h5json-error-already-deleted -- when either was deleted
//   - h5json-error-io -- when the store engine fails
func (d *Directory) Link(ctx context.Context, parentUUID, childUUID, name string) error {
	ctx, span := tracing.Start(ctx, "directory.Link", trace.WithAttributes(
		attribute.String(tracing.AttrKeyObjectID, childUUID),
		attribute.String(tracing.AttrKeyLinkName, name),
	))
	defer span.End()
	err := d.link(ctx, parentUUID, childUUID, name)
	tracing.SetSpanError(ctx, err)
	return err
}

func (d *Directory) link(ctx context.Context, parentUUID, childUUID, name string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	if err := checkLinkName(name); err != nil {
		return err
	}
	parent, err := d.Group(parentUUID)
	if err != nil {
		return err
	}
	rec, err := d.Lookup(childUUID)
	if err != nil {
		return err
	}
	child, err := d.Resolve(rec.Kind, childUUID)
	if err != nil {
		return err
	}
	if _, exists := parent.Link(name); exists {
		logging.Ctx(ctx).Debug(LOG_TAG, "link %q already exists, replacing it", name)
		if err := d.removeLink(ctx, parent, name); err != nil {
			return err
		}
	}
	if err := parent.LinkHard(name, child); err != nil {
		return store.APIError("linking "+name, err)
	}
	if childUUID != d.rootUUID {
		if _, storage, err := d.find(rec.Kind, childUUID); err != nil {
			return err
		} else if storage == h5api.Storage_Anonymous {
			if err := d.promote(rec.Kind, childUUID, child); err != nil {
				return err
			}
		}
	}
	return d.touch(parentUUID, LinkScope(name))
}

// CreateSoftLink adds a link that resolves by path.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the name is not a valid link name
//   - h5json-error-not-found -- when the parent group does not exist
func (d *Directory) CreateSoftLink(ctx context.Context, parentUUID, path, name string) error {
	return d.createPathLink(ctx, parentUUID, name, func(parent store.Group) error {
		return parent.LinkSoft(name, path)
	})
}

// CreateExternalLink adds a link to a path in another file.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only
//   - h5json-error-invalid-argument -- when the name is not a valid link name
//   - h5json-error-not-found -- when the parent group does not exist
func (d *Directory) CreateExternalLink(ctx context.Context, parentUUID, file, path, name string) error {
	return d.createPathLink(ctx, parentUUID, name, func(parent store.Group) error {
		return parent.LinkExternal(name, file, path)
	})
}

func (d *Directory) createPathLink(ctx context.Context, parentUUID, name string, add func(store.Group) error) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	if err := checkLinkName(name); err != nil {
		return err
	}
	parent, err := d.Group(parentUUID)
	if err != nil {
		return err
	}
	if _, exists := parent.Link(name); exists {
		if err := d.removeLink(ctx, parent, name); err != nil {
			return err
		}
	}
	if err := add(parent); err != nil {
		return store.APIError("linking "+name, err)
	}
	return d.touch(parentUUID, LinkScope(name))
}

// Unlink removes one link from a group. When it was the last visible hard
// link to an object, the object becomes anonymous; it is not deleted.
//
// Errors:
//
//   - h5json-error-permission-denied -- when the store is read-only, for user-defined links, and for the directory's own link
//   - h5json-error-not-found -- when the group or the link does not exist
func (d *Directory) Unlink(ctx context.Context, parentUUID, name string) error {
	ctx, span := tracing.Start(ctx, "directory.Unlink", trace.WithAttributes(
		attribute.String(tracing.AttrKeyObjectID, parentUUID),
		attribute.String(tracing.AttrKeyLinkName, name),
	))
	defer span.End()
	err := d.unlink(ctx, parentUUID, name)
	tracing.SetSpanError(ctx, err)
	return err
}

func (d *Directory) unlink(ctx context.Context, parentUUID, name string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	parent, err := d.Group(parentUUID)
	if err != nil {
		return err
	}
	if _, ok := parent.Link(name); !ok {
		return h5api.ErrorNotFound("link", name)
	}
	if name == DBGroupName {
		return h5api.ErrorPermissionDenied("unlinking of the directory group is not allowed")
	}
	if err := d.removeLink(ctx, parent, name); err != nil {
		return err
	}
	return d.SetModifiedTime(parentUUID, LinkScope(name), 0)
}

func (d *Directory) removeLink(ctx context.Context, parent store.Group, name string) error {
	l, _ := parent.Link(name)
	switch l.Class {
	case store.LinkUserDefined:
		return h5api.ErrorPermissionDenied("unable to unlink user defined link", [2]string{"name", name})
	case store.LinkHard:
		tgt, err := d.st.ObjectAt(l.Target)
		if err != nil {
			return store.APIError("link "+name, err)
		}
		return d.unlinkHard(ctx, parent, name, tgt)
	}
	return store.APIError("unlinking "+name, parent.Unlink(name))
}

// unlinkHard removes a hard link, demoting the target first
// when this is the last visible link to it.
func (d *Directory) unlinkHard(ctx context.Context, parent store.Group, name string, tgt store.Object) error {
	n, err := d.CountLinks(ctx, tgt.Addr())
	if err != nil {
		return err
	}
	if n == 1 {
		if id, ok := d.UUIDByAddr(tgt.Addr()); ok && id != d.rootUUID {
			kind, err := kindOf(tgt)
			if err != nil {
				return err
			}
			logging.Ctx(ctx).Debug(LOG_TAG, "converting %s to an anonymous %s", id, kind.Singular())
			if err := d.demote(kind, id, tgt); err != nil {
				return err
			}
		}
	}
	return store.APIError("unlinking "+name, parent.Unlink(name))
}

func (d *Directory) promote(kind h5api.ObjectKind, id string, obj store.Object) error {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return err
	}
	if err := setRef(col.Attrs(), id, obj.Addr()); err != nil {
		return store.APIError("promoting "+id, err)
	}
	return store.APIError("promoting "+id, col.Unlink(id))
}

func (d *Directory) demote(kind h5api.ObjectKind, id string, obj store.Object) error {
	col, err := d.dbGroup(collectionGroup(kind))
	if err != nil {
		return err
	}
	if err := col.LinkHard(id, obj); err != nil {
		return store.APIError("demoting "+id, err)
	}
	return store.APIError("demoting "+id, col.Attrs().Delete(id))
}

// CountLinks counts the visible hard links to the object at addr.
// There is no reverse link index, so this walks every group.
//
// Errors:
//
//   - h5json-error-io -- when the directory is damaged
func (d *Directory) CountLinks(ctx context.Context, addr store.Addr) (int, error) {
	ctx, span := tracing.Start(ctx, "directory.CountLinks")
	defer span.End()
	groups, err := d.visibleGroups()
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return 0, err
	}
	n := 0
	for _, g := range groups {
		for _, l := range g.Links() {
			if l.Class == store.LinkHard && l.Target == addr {
				n++
			}
		}
	}
	return n, nil
}

// IsHardLinked reports whether the named link of a group is a hard link to child.
//
// Errors:
//
//   - h5json-error-not-found -- when the group or the child does not exist
func (d *Directory) IsHardLinked(parentUUID, name, childUUID string) (bool, error) {
	parent, err := d.Group(parentUUID)
	if err != nil {
		return false, err
	}
	rec, err := d.Lookup(childUUID)
	if err != nil {
		return false, err
	}
	child, err := d.Resolve(rec.Kind, childUUID)
	if err != nil {
		return false, err
	}
	l, ok := parent.Link(name)
	return ok && l.Class == store.LinkHard && l.Target == child.Addr(), nil
}

// Links lists the links of a group in creation order, with pagination
// as for Collection. The directory's own link is never listed.
//
// Errors:
//
//   - h5json-error-not-found -- when the group does not exist
func (d *Directory) Links(parentUUID, marker string, limit int) ([]h5api.Link, error) {
	parent, err := d.Group(parentUUID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, l := range parent.Links() {
		if l.Name != DBGroupName {
			names = append(names, l.Name)
		}
	}
	names = paginate(names, marker, limit)
	out := make([]h5api.Link, 0, len(names))
	for _, name := range names {
		l, _ := parent.Link(name)
		out = append(out, d.linkItem(parentUUID, l))
	}
	return out, nil
}

// LinkCount is the number of links of a group, not counting the directory's own.
func (d *Directory) LinkCount(g store.Group) int {
	n := len(g.Links())
	if _, ok := g.Link(DBGroupName); ok {
		n--
	}
	return n
}

// LinkItem describes one link of a group.
//
// Errors:
//
//   - h5json-error-not-found -- when the group or the link does not exist
//   - h5json-error-already-deleted -- when the link existed once
func (d *Directory) LinkItem(parentUUID, name string) (h5api.Link, error) {
	parent, err := d.Group(parentUUID)
	if err != nil {
		return h5api.Link{}, err
	}
	l, ok := parent.Link(name)
	if !ok || name == DBGroupName {
		if d.hasOwnTimestamp(parentUUID, LinkScope(name)) {
			return h5api.Link{}, h5api.ErrorAlreadyDeleted("links", name)
		}
		return h5api.Link{}, h5api.ErrorNotFound("link", name)
	}
	return d.linkItem(parentUUID, l), nil
}

func (d *Directory) linkItem(parentUUID string, l store.LinkInfo) h5api.Link {
	item := h5api.Link{Title: l.Name}
	switch l.Class {
	case store.LinkHard:
		item.Class = h5api.LinkClass_Hard
		item.ID, _ = d.UUIDByAddr(l.Target)
		if obj, err := d.st.ObjectAt(l.Target); err == nil {
			item.Collection, _ = kindOf(obj)
		}
	case store.LinkSoft:
		item.Class = h5api.LinkClass_Soft
		item.H5Path = l.Path
	case store.LinkExternal:
		item.Class = h5api.LinkClass_External
		item.H5Path = l.Path
		item.File = l.File
	default:
		item.Class = h5api.LinkClass_UserDefined
	}
	if d.timestamps {
		item.Ctime = d.CreateTime(parentUUID, LinkScope(l.Name))
		item.Mtime = d.ModifiedTime(parentUUID, LinkScope(l.Name))
	}
	return item
}
