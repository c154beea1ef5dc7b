package directory

import (
	"time"

	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/store"
)

func unixNow() int64 { return time.Now().Unix() }

type scopeKind uint8

const (
	scopeObject scopeKind = iota
	scopeAttr
	scopeLink
)

// Scope selects what a timestamp belongs to: the object itself,
// one of its attributes, or one of its links.
type Scope struct {
	kind scopeKind
	name string
}

var ObjectScope = Scope{}

func AttrScope(name string) Scope { return Scope{scopeAttr, name} }
func LinkScope(name string) Scope { return Scope{scopeLink, name} }

// key is the attribute name the timestamp is stored under.
func (s Scope) key(uuid string) string {
	switch s.kind {
	case scopeAttr:
		return uuid + "_attr:[" + s.name + "]"
	case scopeLink:
		return uuid + "_link:[" + s.name + "]"
	}
	return uuid
}

func (d *Directory) stamp(group, uuid string, scope Scope, ts int64) error {
	if !d.timestamps {
		return nil
	}
	if scope.kind != scopeObject && scope.name == "" {
		return h5api.ErrorInvalidArgument("timestamp scope needs a name")
	}
	g, err := d.dbGroup(group)
	if err != nil {
		return err
	}
	return store.APIError("setting timestamp", setInt64(g.Attrs(), scope.key(uuid), ts))
}

// SetCreateTime records when something was created. A zero ts means now.
// Does nothing when timestamps are disabled.
func (d *Directory) SetCreateTime(uuid string, scope Scope, ts int64) error {
	if ts == 0 {
		ts = d.now()
	}
	return d.stamp(ctimeGroup, uuid, scope, ts)
}

// SetModifiedTime records when something last changed. A zero ts means now.
// Does nothing when timestamps are disabled.
func (d *Directory) SetModifiedTime(uuid string, scope Scope, ts int64) error {
	if ts == 0 {
		ts = d.now()
	}
	return d.stamp(mtimeGroup, uuid, scope, ts)
}

// touch sets both timestamps to the same instant.
func (d *Directory) touch(uuid string, scope Scope) error {
	now := d.now()
	if err := d.SetCreateTime(uuid, scope, now); err != nil {
		return err
	}
	return d.SetModifiedTime(uuid, scope, now)
}

func (d *Directory) lookupTime(group, uuid string, scope Scope) (int64, bool) {
	g, err := d.dbGroup(group)
	if err != nil {
		return 0, false
	}
	return getInt64(g.Attrs(), scope.key(uuid))
}

// CreateTime returns the creation time, falling back to the root's
// creation time when the target has none. Zero means unknown.
func (d *Directory) CreateTime(uuid string, scope Scope) int64 {
	if ts, ok := d.lookupTime(ctimeGroup, uuid, scope); ok {
		return ts
	}
	ts, _ := d.lookupTime(ctimeGroup, d.rootUUID, ObjectScope)
	return ts
}

// ModifiedTime returns the modification time, falling back to the creation
// time, then to the root's modification time.
func (d *Directory) ModifiedTime(uuid string, scope Scope) int64 {
	if ts, ok := d.lookupTime(mtimeGroup, uuid, scope); ok {
		return ts
	}
	if ts, ok := d.lookupTime(ctimeGroup, uuid, scope); ok {
		return ts
	}
	ts, _ := d.lookupTime(mtimeGroup, d.rootUUID, ObjectScope)
	return ts
}

// hasOwnTimestamp reports whether something with this key was ever stamped;
// for a key that no longer resolves this means it was deleted.
func (d *Directory) hasOwnTimestamp(uuid string, scope Scope) bool {
	if _, ok := d.lookupTime(mtimeGroup, uuid, scope); ok {
		return true
	}
	_, ok := d.lookupTime(ctimeGroup, uuid, scope)
	return ok
}

// Timestamps reports whether timestamps are being tracked.
func (d *Directory) Timestamps() bool {
	return d.timestamps
}

// Stamped reports whether anything was ever recorded for the scope.
// A name that was stamped but no longer exists was deleted.
func (d *Directory) Stamped(uuid string, scope Scope) bool {
	return d.hasOwnTimestamp(uuid, scope)
}
