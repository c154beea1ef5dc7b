package memstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/HDFGroup/hdf5-json/pkg/store"
)

// Snapshot file layout:
//
//	magic        8 bytes  "H5JSNAP\x00"
//	version      1 byte
//	compression  1 byte
//	length       8 bytes  uncompressed payload length, big endian
//	digest      32 bytes  blake3 of the uncompressed payload
//	payload      the rest, CBOR (core deterministic encoding), compressed
const (
	snapMagic   = "H5JSNAP\x00"
	snapVersion = 1
	headerLen   = len(snapMagic) + 1 + 1 + 8 + 32
)

// Compression selects the payload compression of a snapshot.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression accepts "none", "lz4" and "zstd". The empty string is zstd.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	}
	return 0, fmt.Errorf("unknown snapshot compression %q", s)
}

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// CBOR tag numbers for reference values held in data and attributes,
// from the first-come-first-served range.
const (
	tagObjectRef = 47101
	tagRegionRef = 47102
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	tags := cbor.NewTagSet()
	for num, typ := range map[uint64]reflect.Type{
		tagObjectRef: reflect.TypeOf(store.ObjectRef{}),
		tagRegionRef: reflect.TypeOf(store.RegionRef{}),
	} {
		if err := tags.Add(cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired}, typ, num); err != nil {
			panic("memstore: registering cbor tag: " + err.Error())
		}
	}
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncModeWithTags(tags)
	if err != nil {
		panic("memstore: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecModeWithTags(tags)
	if err != nil {
		panic("memstore: cbor decoder: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("memstore: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("memstore: zstd decoder: " + err.Error())
	}
}

type snapFile struct {
	Root     store.Addr   `cbor:"1,keyasint"`
	NextAddr store.Addr   `cbor:"2,keyasint"`
	Objects  []snapObject `cbor:"3,keyasint"`
}

type snapObject struct {
	Addr   store.Addr         `cbor:"1,keyasint"`
	Kind   store.ObjectType   `cbor:"2,keyasint"`
	NLinks int                `cbor:"3,keyasint"`
	Links  []store.LinkInfo   `cbor:"4,keyasint,omitempty"`
	Attrs  []snapAttr         `cbor:"5,keyasint,omitempty"`
	Type   *store.Type        `cbor:"6,keyasint,omitempty"`
	Space  store.Space        `cbor:"7,keyasint"`
	Chunks []int              `cbor:"8,keyasint,omitempty"`
	Fill   any                `cbor:"9,keyasint"`
	Filter []store.FilterSpec `cbor:"10,keyasint,omitempty"`
	Layout string             `cbor:"11,keyasint,omitempty"`
	Data   []any              `cbor:"12,keyasint,omitempty"`
}

type snapAttr struct {
	Name   string      `cbor:"1,keyasint"`
	Type   *store.Type `cbor:"2,keyasint"`
	Space  store.Space `cbor:"3,keyasint"`
	Values []any       `cbor:"4,keyasint"`
}

func (s *Store) toSnapshot() snapFile {
	out := snapFile{Root: s.root, NextAddr: s.nextAddr}
	// Deterministic order keeps identical stores byte-identical on disk.
	addrs := make([]store.Addr, 0, len(s.objects))
	for a := range s.objects {
		addrs = append(addrs, a)
	}
	sortAddrs(addrs)
	for _, a := range addrs {
		o := s.objects[a]
		so := snapObject{
			Addr:   o.addr,
			Kind:   o.typ,
			NLinks: o.nlinks,
			Links:  o.links,
			Type:   o.dtype,
			Space:  o.space,
			Chunks: o.spec.Chunks,
			Fill:   o.spec.FillValue,
			Filter: o.spec.Filters,
			Layout: o.spec.Layout,
			Data:   o.data,
		}
		for _, name := range o.attrs.names {
			v := o.attrs.vals[name]
			so.Attrs = append(so.Attrs, snapAttr{Name: name, Type: v.Type, Space: v.Space, Values: v.Values})
		}
		out.Objects = append(out.Objects, so)
	}
	return out
}

func fromSnapshot(sf snapFile) (*Store, error) {
	s := &Store{
		root:     sf.Root,
		nextAddr: sf.NextAddr,
		objects:  make(map[store.Addr]*object, len(sf.Objects)),
	}
	for _, so := range sf.Objects {
		o := &object{
			st:     s,
			addr:   so.Addr,
			typ:    so.Kind,
			nlinks: so.NLinks,
			links:  so.Links,
			dtype:  so.Type,
			space:  so.Space,
			attrs:  &attrTable{},
		}
		o.attrs.owner = o
		// Decoded integers come back as uint64; normalizing restores the canonical forms.
		for _, sa := range so.Attrs {
			vals, err := normalizeAll(sa.Type, sa.Values)
			if err != nil {
				return nil, fmt.Errorf("object %d attribute %q: %w: %v", so.Addr, sa.Name, ErrCorruptSnapshot, err)
			}
			if o.attrs.vals == nil {
				o.attrs.vals = map[string]*store.Attribute{}
			}
			o.attrs.names = append(o.attrs.names, sa.Name)
			o.attrs.vals[sa.Name] = &store.Attribute{Type: sa.Type, Space: sa.Space, Values: vals}
		}
		if o.typ == store.ObjectDataset {
			if o.dtype == nil {
				return nil, fmt.Errorf("dataset %d has no type: %w", so.Addr, ErrCorruptSnapshot)
			}
			data, err := normalizeAll(o.dtype, so.Data)
			if err != nil {
				return nil, fmt.Errorf("dataset %d: %w: %v", so.Addr, ErrCorruptSnapshot, err)
			}
			if len(data) != o.space.NumElements() {
				return nil, fmt.Errorf("dataset %d holds %d elements for %d: %w", so.Addr, len(data), o.space.NumElements(), ErrCorruptSnapshot)
			}
			o.data = data
			o.spec = store.DatasetSpec{
				Type:    o.dtype,
				Space:   copySpace(o.space),
				Chunks:  so.Chunks,
				Filters: so.Filter,
				Layout:  so.Layout,
			}
			if so.Fill != nil {
				fill, err := normalize(o.dtype, so.Fill)
				if err != nil {
					return nil, fmt.Errorf("dataset %d fill value: %w: %v", so.Addr, ErrCorruptSnapshot, err)
				}
				o.spec.FillValue = fill
			}
		}
		s.objects[o.addr] = o
	}
	if _, ok := s.objects[s.root]; !ok {
		return nil, fmt.Errorf("missing root group: %w", ErrCorruptSnapshot)
	}
	return s, nil
}

func normalizeAll(t *store.Type, vals []any) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		n, err := normalize(t, v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// writeSnapshot encodes s to w.
// Incompressible payloads are stored uncompressed whatever c asks for.
func writeSnapshot(w io.Writer, s *Store, c Compression) error {
	payload, err := encMode.Marshal(s.toSnapshot())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	body := payload
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(payload) {
			c = CompressionNone
		} else {
			body = dst[:n]
		}
	case CompressionZstd:
		body = zstdEncoder.EncodeAll(payload, nil)
		if len(body) >= len(payload) {
			c, body = CompressionNone, payload
		}
	}
	hdr := make([]byte, 0, headerLen)
	hdr = append(hdr, snapMagic...)
	hdr = append(hdr, snapVersion, byte(c))
	hdr = binary.BigEndian.AppendUint64(hdr, uint64(len(payload)))
	sum := blake3.Sum256(payload)
	hdr = append(hdr, sum[:]...)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func readSnapshot(r io.Reader) (*Store, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) < headerLen || string(raw[:len(snapMagic)]) != snapMagic {
		return nil, fmt.Errorf("bad magic: %w", ErrCorruptSnapshot)
	}
	p := len(snapMagic)
	if raw[p] != snapVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d: %w", raw[p], ErrCorruptSnapshot)
	}
	c := Compression(raw[p+1])
	length := binary.BigEndian.Uint64(raw[p+2:])
	var sum [32]byte
	copy(sum[:], raw[p+10:headerLen])
	body := raw[headerLen:]
	if length > 1<<40 {
		return nil, fmt.Errorf("payload length %d: %w", length, ErrCorruptSnapshot)
	}
	var payload []byte
	switch c {
	case CompressionNone:
		payload = body
	case CompressionLZ4:
		payload = make([]byte, length)
		n, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w: %v", ErrCorruptSnapshot, err)
		}
		payload = payload[:n]
	case CompressionZstd:
		payload, err = zstdDecoder.DecodeAll(body, make([]byte, 0, length))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w: %v", ErrCorruptSnapshot, err)
		}
	default:
		return nil, fmt.Errorf("unknown compression %d: %w", c, ErrCorruptSnapshot)
	}
	if uint64(len(payload)) != length {
		return nil, fmt.Errorf("payload is %d bytes, header says %d: %w", len(payload), length, ErrCorruptSnapshot)
	}
	if blake3.Sum256(payload) != sum {
		return nil, fmt.Errorf("digest mismatch: %w", ErrCorruptSnapshot)
	}
	var sf snapFile
	if err := decMode.Unmarshal(payload, &sf); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w: %v", ErrCorruptSnapshot, err)
	}
	return fromSnapshot(sf)
}

// writeSnapshotFile replaces filename atomically.
func writeSnapshotFile(filename string, s *Store, c Compression) error {
	var buf bytes.Buffer
	if err := writeSnapshot(&buf, s, c); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

func sortAddrs(a []store.Addr) {
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
}
