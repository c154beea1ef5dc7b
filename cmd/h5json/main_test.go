package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/warpfork/go-testmark"

	"github.com/HDFGroup/hdf5-json/pkg/config"
)

const weatherRoot = "8d3f6a10-9c2e-11ee-8c90-0242ac120002"

type result struct {
	stdout string
	stderr string
	err    error
}

func run(stdin string, args ...string) result {
	var stdout, stderr bytes.Buffer
	err := makeApp(strings.NewReader(stdin), &stdout, &stderr).Run(append([]string{"h5json"}, args...))
	return result{stdout.String(), stderr.String(), err}
}

// setup points the configuration at a file in a fresh directory,
// and returns the directory.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "h5json.yaml")
	cfg := "noTimestamps: true\npublish:\n  mock: {}\n"
	qt.Assert(t, os.WriteFile(cfgPath, []byte(cfg), 0o644), qt.IsNil)
	t.Setenv(config.EnvConfig, cfgPath)
	qt.Assert(t, config.ReloadGlobalState(), qt.IsNil)
	t.Cleanup(func() { config.ReloadGlobalState() })
	return dir
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	doc, err := testmark.ReadFile("testdata/cli.md")
	qt.Assert(t, err, qt.IsNil)
	hunk, ok := doc.HunksByName[name]
	qt.Assert(t, ok, qt.IsTrue, qt.Commentf("no hunk %q", name))
	return hunk.Body
}

// loadWeather loads the weather document into dir/weather.h5j.
func loadWeather(t *testing.T, dir string) string {
	t.Helper()
	docPath := filepath.Join(dir, "weather.json")
	qt.Assert(t, os.WriteFile(docPath, fixture(t, "weather/document"), 0o644), qt.IsNil)
	store := filepath.Join(dir, "weather.h5j")
	r := run("", "--quiet", "load", docPath, store)
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
	return store
}

func decodeResult(t *testing.T, r result, v interface{}) {
	t.Helper()
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
	qt.Assert(t, json.Unmarshal([]byte(r.stdout), v), qt.IsNil, qt.Commentf("stdout: %s", r.stdout))
}

func TestLoadAndDump(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)

	first := run("", "dump", store)
	qt.Assert(t, first.err, qt.IsNil, qt.Commentf("stderr: %s", first.stderr))
	qt.Check(t, first.stdout, qt.Contains, weatherRoot)

	// The dump loads from stdin into a second store and dumps the same.
	copyStore := filepath.Join(dir, "copy.h5j")
	r := run(first.stdout, "--quiet", "load", "-", copyStore)
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
	second := run("", "dump", copyStore)
	qt.Assert(t, second.err, qt.IsNil)
	qt.Check(t, second.stdout, qt.Equals, first.stdout)

	cid1 := run("", "dump", "--cid", store)
	cid2 := run("", "dump", "--cid", copyStore)
	qt.Assert(t, cid1.err, qt.IsNil)
	qt.Check(t, strings.HasPrefix(cid1.stdout, "bafy"), qt.IsTrue)
	qt.Check(t, cid2.stdout, qt.Equals, cid1.stdout)

	noValues := run("", "dump", "-D", store)
	qt.Assert(t, noValues.err, qt.IsNil)
	qt.Check(t, noValues.stdout, qt.Not(qt.Contains), "north ridge")
	qt.Check(t, run("", "dump", "-d", store).stdout, qt.Contains, "north ridge")
}

func TestLoadExisting(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)
	docPath := filepath.Join(dir, "weather.json")

	r := run("", "load", docPath, store)
	qt.Assert(t, r.err, qt.IsNotNil)
	qt.Check(t, r.stderr, qt.Contains, "error:")

	r = run("", "--json", "load", docPath, store)
	qt.Assert(t, r.err, qt.IsNotNil)
	qt.Check(t, r.stderr, qt.Contains, "h5json-error-invalid-argument")

	r = run("", "--quiet", "load", "--force", docPath, store)
	qt.Check(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
}

func TestLs(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)

	titles := func(out string) []string {
		var res []string
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			res = append(res, strings.Split(line, "\t")[0])
		}
		return res
	}

	r := run("", "ls", store)
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
	qt.Check(t, titles(r.stdout), qt.DeepEquals, []string{"g2", "g10", "latest", "table"})
	qt.Check(t, r.stdout, qt.Contains, "latest\tH5L_TYPE_SOFT\t/g2\n")
	qt.Check(t, r.stdout, qt.Contains, "table\tdatasets\t9a1b2c3d-9c2e-11ee-8c90-0242ac120002\n")

	r = run("", "ls", "--creation-order", store, "/")
	qt.Assert(t, r.err, qt.IsNil)
	qt.Check(t, titles(r.stdout), qt.DeepEquals, []string{"table", "g10", "g2", "latest"})

	r = run("", "ls", store, "/table")
	qt.Check(t, r.err, qt.IsNotNil)
}

func TestDescribe(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)

	r := run("", "describe", "--no-color", store, "/table")
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stderr: %s", r.stderr))
	qt.Check(t, r.stdout, qt.Contains, "/table")
	qt.Check(t, r.stdout, qt.Contains, "9a1b2c3d-9c2e-11ee-8c90-0242ac120002")
	qt.Check(t, r.stdout, qt.Contains, "shape: 4")
	qt.Check(t, r.stdout, qt.Contains, "H5T_COMPOUND")

	r = run("", "describe", "--no-color", store, "/")
	qt.Assert(t, r.err, qt.IsNil)
	qt.Check(t, r.stdout, qt.Contains, "links: 4")
	qt.Check(t, r.stdout, qt.Contains, "station")
}

func TestQuery(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)

	var res struct {
		Index []int
		Value [][]int
	}
	decodeResult(t, run("", "query", store, "/table", "score > 5"), &res)
	qt.Check(t, res.Index, qt.DeepEquals, []int{1, 3})
	qt.Check(t, res.Value, qt.DeepEquals, [][]int{{2, 8}, {4, 9}})

	decodeResult(t, run("", "query", "--limit", "1", store, "/table", "(day >= 2) & (score < 9)"), &res)
	qt.Check(t, res.Index, qt.DeepEquals, []int{1})

	r := run("", "query", store, "/table", "temp > 3")
	qt.Check(t, r.err, qt.IsNotNil)
}

type aclJSON struct {
	UserID int64 `json:"userid"`
	Create bool  `json:"create"`
	Read   bool  `json:"read"`
	Update bool  `json:"update"`
}

func TestAcl(t *testing.T) {
	dir := setup(t)
	store := loadWeather(t, dir)

	var one struct{ Acl aclJSON }
	decodeResult(t, run("", "acl", "set", "--grant", "read", "--deny", "update", store, "/", "7"), &one)
	qt.Check(t, one.Acl, qt.Equals, aclJSON{UserID: 7, Read: true})

	// The entry on the root group applies to objects without their own.
	decodeResult(t, run("", "acl", "get", store, "/g2", "7"), &one)
	qt.Check(t, one.Acl, qt.Equals, aclJSON{UserID: 7, Read: true})

	decodeResult(t, run("", "acl", "get", store, "/g2", "3"), &one)
	qt.Check(t, one.Acl.Update, qt.IsTrue)

	var all struct{ Acls []aclJSON }
	decodeResult(t, run("", "acl", "get", store, "/"), &all)
	qt.Check(t, all.Acls, qt.DeepEquals, []aclJSON{{UserID: 7, Read: true}})

	r := run("", "acl", "set", "--grant", "fly", store, "/", "7")
	qt.Check(t, r.err, qt.IsNotNil)
}

func TestPublish(t *testing.T) {
	dir := setup(t)
	loadWeather(t, dir)
	wd, err := os.Getwd()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, os.Chdir(dir), qt.IsNil)
	t.Cleanup(func() { os.Chdir(wd) })

	cid := strings.TrimSpace(run("", "dump", "--cid", "weather.h5j").stdout)

	var res struct {
		Published []struct {
			Store  string
			CID    string
			Pushed []string
		}
	}
	decodeResult(t, run("", "--quiet", "publish", "./..."), &res)
	qt.Assert(t, res.Published, qt.HasLen, 1)
	qt.Check(t, res.Published[0].Store, qt.Equals, "weather.h5j")
	qt.Check(t, res.Published[0].CID, qt.Equals, cid)
	qt.Check(t, res.Published[0].Pushed, qt.HasLen, 2)
	qt.Check(t, res.Published[0].Pushed[0], qt.Matches, `documents/.*/`+cid+`\.json`)

	r := run("", "publish", "nothing.h5j")
	qt.Check(t, r.err, qt.IsNotNil)
}

func TestVersion(t *testing.T) {
	setup(t)
	var res struct {
		APIVersion string `json:"api_version"`
		Engine     string
	}
	decodeResult(t, run("", "version"), &res)
	qt.Check(t, res.APIVersion, qt.Equals, "1.1.1")
	qt.Check(t, res.Engine, qt.Not(qt.Equals), "")
}

func TestHealth(t *testing.T) {
	setup(t)
	r := run("", "health")
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stdout: %s\nstderr: %s", r.stdout, r.stderr))
	qt.Check(t, r.stdout, qt.Contains, "Store engine round trip")
	qt.Check(t, r.stdout, qt.Contains, "mock destination")

	dir := setup(t)
	loadWeather(t, dir)
	wd, err := os.Getwd()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, os.Chdir(dir), qt.IsNil)
	t.Cleanup(func() { os.Chdir(wd) })

	r = run("", "health", "weather.h5j")
	qt.Assert(t, r.err, qt.IsNil, qt.Commentf("stdout: %s\nstderr: %s", r.stdout, r.stderr))
	qt.Check(t, r.stdout, qt.Contains, "Store weather.h5j")
	qt.Check(t, r.stdout, qt.Contains, "root 8d3f6a10-9c2e-11ee-8c90-0242ac120002, 2 groups, 1 datasets, 0 datatypes")

	r = run("", "health", "nothing.h5j")
	qt.Check(t, r.err, qt.IsNotNil)
}

func TestMissingStore(t *testing.T) {
	dir := setup(t)
	r := run("", "--json", "dump", filepath.Join(dir, "missing.h5j"))
	qt.Assert(t, r.err, qt.IsNotNil)
	qt.Check(t, r.stderr, qt.Contains, "h5json-error-not-found")
}
