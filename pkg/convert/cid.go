package convert

import (
	"github.com/ipfs/go-cid"
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// CID identifies a document by content: the dag-cbor encoding of the
// document, hashed with sha2-512. Two exports of the same content give the
// same CID whatever the order of the source file's objects.
//
// Errors:
//
//   - h5json-error-serialization -- when the document cannot be encoded
func CID(doc datamodel.Node) (string, error) {
	lsys := cidlink.DefaultLinkSystem()
	lnk, err := lsys.ComputeLink(cidlink.LinkPrototype{Prefix: cid.Prefix{
		Version:  1,
		Codec:    0x71, // dag-cbor
		MhType:   0x13, // sha2-512
		MhLength: 64,
	}}, doc)
	if err != nil {
		return "", h5api.ErrorSerialization("computing document cid", err)
	}
	return lnk.String(), nil
}
