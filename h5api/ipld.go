package h5api

import (
	"embed"
	"fmt"

	_ "github.com/ipld/go-ipld-prime/codec/json" // side-effecting import; registers a codec.
	"github.com/ipld/go-ipld-prime/schema"
	schemadmt "github.com/ipld/go-ipld-prime/schema/dmt"
	schemadsl "github.com/ipld/go-ipld-prime/schema/dsl"
)

// TypeSystem describes the regular API records in IPLD Schema form.
// This is parsed from the h5api.ipldsch file, which is embedded into the binary at build time.
//
// Type descriptors and values are irregular (recursive unions keyed by a "class" string,
// arbitrary JSON), so they are handled as plain data model nodes by the codec packages instead.

//go:embed h5api.ipldsch
var schFs embed.FS

var SchemaDMT, TypeSystem = func() (*schemadmt.Schema, *schema.TypeSystem) {
	r, err := schFs.Open("h5api.ipldsch")
	if err != nil {
		panic(fmt.Sprintf("failed to open embedded h5api.ipldsch: %s", err))
	}
	schemaDmt, err := schemadsl.Parse("h5api.ipldsch", r)
	if err != nil {
		panic(fmt.Sprintf("failed to parse api schema: %s", err))
	}
	ts := new(schema.TypeSystem)
	ts.Init()
	if err := schemadmt.Compile(ts, schemaDmt); err != nil {
		panic(fmt.Sprintf("failed to compile api schema: %s", err))
	}
	return schemaDmt, ts
}()
