/*
Package memstore is a store engine that keeps the whole object graph in memory,
and persists it as a single snapshot file.

It implements the store interfaces faithfully (addresses, link counting,
dataspaces, selections, references, attributes), but it does not read or write
the binary HDF5 format, and records filter pipelines without running them.
*/
package memstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

const (
	EngineName    = "memstore"
	EngineVersion = "1.0"
)

// Options control how a snapshot file is opened and written.
type Options struct {
	ReadOnly    bool
	Compression Compression
}

// Store is an in-memory store engine. It is not safe for concurrent use.
type Store struct {
	filename string
	opts     Options
	modified int64
	lock     *fileLock

	root     store.Addr
	nextAddr store.Addr
	objects  map[store.Addr]*object
	dirty    bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty store that only lives in memory.
// Flush does nothing on it.
func New() *Store {
	s := &Store{
		objects:  map[store.Addr]*object{},
		nextAddr: 800, // arbitrary; leaves room the way a superblock would
		modified: time.Now().Unix(),
	}
	root := s.newObject(store.ObjectGroup)
	root.nlinks = 1
	s.root = root.addr
	return s
}

// Open opens the snapshot at filename. A missing file is created on the first
// Flush, unless the store is read-only, in which case it is an error.
//
// An advisory lock is held on a sibling ".lock" file while the store is open:
// exclusive for writers, shared for readers.
func Open(filename string, opts Options) (*Store, error) {
	lock, err := acquireLock(filename, opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(filename)
	switch {
	case os.IsNotExist(err):
		if opts.ReadOnly {
			lock.release()
			return nil, fmt.Errorf("open %q: %w", filename, store.ErrNotFound)
		}
		s := New()
		s.filename = filename
		s.opts = opts
		s.lock = lock
		s.dirty = true
		return s, nil
	case err != nil:
		lock.release()
		return nil, err
	}
	f, err := os.Open(filename)
	if err != nil {
		lock.release()
		return nil, err
	}
	defer f.Close()
	s, err := readSnapshot(f)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("reading snapshot %q: %w", filename, err)
	}
	s.filename = filename
	s.opts = opts
	s.lock = lock
	s.modified = fi.ModTime().Unix()
	return s, nil
}

func (s *Store) Root() store.Group {
	return s.objects[s.root]
}

func (s *Store) Filename() string {
	return s.filename
}

func (s *Store) ReadOnly() bool {
	return s.opts.ReadOnly
}

func (s *Store) Modified() int64 {
	return s.modified
}

func (s *Store) EngineName() string {
	return EngineName
}

func (s *Store) EngineVersion() string {
	return EngineVersion
}

func (s *Store) ObjectAt(addr store.Addr) (store.Object, error) {
	obj, ok := s.objects[addr]
	if !ok {
		return nil, fmt.Errorf("address %d: %w", addr, store.ErrNotFound)
	}
	return obj, nil
}

func (s *Store) Deref(ref store.ObjectRef) (store.Object, error) {
	if ref.IsNull() {
		return nil, fmt.Errorf("null reference: %w", store.ErrNotFound)
	}
	return s.ObjectAt(ref.Addr)
}

func (s *Store) Visit(ctx context.Context, fn func(path string, obj store.Object) error) error {
	seen := map[store.Addr]bool{s.root: true}
	var walk func(prefix string, g *object) error
	walk = func(prefix string, g *object) error {
		for _, l := range g.links {
			if l.Class != store.LinkHard || seen[l.Target] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			seen[l.Target] = true
			child := s.objects[l.Target]
			path := prefix + l.Name
			if err := fn(path, child); err != nil {
				return err
			}
			if child.typ == store.ObjectGroup {
				if err := walk(path+"/", child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk("", s.objects[s.root])
}

// Flush writes the snapshot file, if the store has one and anything changed.
func (s *Store) Flush(ctx context.Context) error {
	if s.filename == "" || s.opts.ReadOnly || !s.dirty {
		return nil
	}
	if err := writeSnapshotFile(s.filename, s, s.opts.Compression); err != nil {
		return err
	}
	s.dirty = false
	s.modified = time.Now().Unix()
	return nil
}

// Close flushes and releases the lock. The store must not be used afterwards.
func (s *Store) Close() error {
	err := s.Flush(context.Background())
	if s.lock != nil {
		if e2 := s.lock.release(); err == nil {
			err = e2
		}
		s.lock = nil
	}
	return err
}

func (s *Store) newObject(typ store.ObjectType) *object {
	s.nextAddr += 96
	obj := &object{
		st:    s,
		addr:  s.nextAddr,
		typ:   typ,
		attrs: &attrTable{},
	}
	obj.attrs.owner = obj
	s.objects[obj.addr] = obj
	s.dirty = true
	return obj
}

func (s *Store) checkWritable() error {
	if s.opts.ReadOnly {
		return store.ErrReadOnly
	}
	return nil
}

// free drops an object that lost its last link,
// and recursively releases what it linked to.
func (s *Store) free(obj *object) {
	delete(s.objects, obj.addr)
	for _, l := range obj.links {
		if l.Class != store.LinkHard {
			continue
		}
		if child, ok := s.objects[l.Target]; ok {
			child.nlinks--
			if child.nlinks <= 0 {
				s.free(child)
			}
		}
	}
}

// pathOf finds a path to addr by breadth-first search from the root,
// preferring paths outside of the private "/__db__" container.
func (s *Store) pathOf(addr store.Addr) string {
	if addr == s.root {
		return "/"
	}
	type entry struct {
		addr store.Addr
		path string
	}
	first := ""
	seen := map[store.Addr]bool{s.root: true}
	queue := []entry{{s.root, ""}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		for _, l := range s.objects[e.addr].links {
			if l.Class != store.LinkHard {
				continue
			}
			p := e.path + "/" + l.Name
			if l.Target == addr {
				if !strings.HasPrefix(p, "/__db__") {
					return p
				}
				if first == "" {
					first = p
				}
			}
			if seen[l.Target] {
				continue
			}
			seen[l.Target] = true
			if child, ok := s.objects[l.Target]; ok && child.typ == store.ObjectGroup {
				queue = append(queue, entry{l.Target, p})
			}
		}
	}
	return first
}
