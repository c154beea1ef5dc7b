package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/MakeNowJust/heredoc"
	"github.com/facette/natsort"
	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/h5db"
	"github.com/HDFGroup/hdf5-json/pkg/jsonenc"
	"github.com/HDFGroup/hdf5-json/pkg/logging"
	"github.com/HDFGroup/hdf5-json/pkg/render"
	"github.com/HDFGroup/hdf5-json/pkg/typecodec"
)

var describeCmdDef = cli.Command{
	Name:      "describe",
	Usage:     "Summarize one object of a store",
	ArgsUsage: "<store> <path>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Write plain markdown even on a terminal",
		},
	},
	Action: util.Action(cmdDescribe),
}

var describeTemplate = template.Must(template.New("describe").Funcs(template.FuncMap{
	"code": func(s string) string { return "`" + s + "`" },
	"json": func(s string) string { return "```json\n" + s + "\n```" },
}).Parse(heredoc.Doc(`
	# {{ .Path }}

	- id: {{ code .ID }}
	- kind: {{ .Kind }}
	{{- range .Aliases }}
	- alias: {{ code . }}
	{{- end }}
	{{- if .Links }}
	- links: {{ .Links }}
	{{- end }}
	{{- if .Shape }}
	- shape: {{ .Shape }}
	{{- end }}
	{{- if .Type }}

	## Type

	{{ json .Type }}
	{{- end }}
	{{- if .Attributes }}

	## Attributes
	{{ range .Attributes }}
	- {{ code .Name }}: {{ .Shape }}
	{{- end }}
	{{- end }}
`)))

type description struct {
	Path       string
	ID         string
	Kind       h5api.ObjectKind
	Aliases    []string
	Links      int
	Shape      string
	Type       string
	Attributes []attributeDescription
}

type attributeDescription struct {
	Name  string
	Shape string
}

func shapeString(s h5api.Shape) string {
	switch s.Class {
	case h5api.ShapeClass_Null:
		return "null"
	case h5api.ShapeClass_Scalar:
		return "scalar"
	}
	dims := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		dims[i] = fmt.Sprint(d)
	}
	out := strings.Join(dims, " x ")
	if s.MaxDims != nil {
		limits := make([]string, len(s.MaxDims))
		for i, d := range s.MaxDims {
			if d == h5api.Unlimited {
				limits[i] = "unlimited"
			} else {
				limits[i] = fmt.Sprint(d)
			}
		}
		out += " (max " + strings.Join(limits, " x ") + ")"
	}
	return out
}

func typeString(d h5api.TypeDescriptor) (string, error) {
	n, err := typecodec.ResponseView(d)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := jsonenc.PrettyEncoder(n, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func describe(c *cli.Context, db *h5db.DB, path string) (description, error) {
	ctx := c.Context
	rec, err := db.GetUUIDByPath(path)
	if err != nil {
		return description{}, err
	}
	desc := description{Path: path, ID: rec.UUID, Kind: rec.Kind}
	switch rec.Kind {
	case h5api.ObjectKind_Group:
		item, err := db.GetGroupItem(ctx, rec.UUID)
		if err != nil {
			return desc, err
		}
		desc.Aliases = item.Alias
		desc.Links = item.LinkCount
	case h5api.ObjectKind_Dataset:
		item, err := db.GetDatasetItem(ctx, rec.UUID)
		if err != nil {
			return desc, err
		}
		desc.Aliases = item.Alias
		desc.Shape = shapeString(item.Shape)
		if desc.Type, err = typeString(item.Type); err != nil {
			return desc, err
		}
	case h5api.ObjectKind_Datatype:
		item, err := db.GetDatatypeItem(ctx, rec.UUID)
		if err != nil {
			return desc, err
		}
		desc.Aliases = item.Alias
		if desc.Type, err = typeString(item.Type); err != nil {
			return desc, err
		}
	}
	attrs, err := db.GetAttributeItems(ctx, rec.Kind, rec.UUID, "", 0)
	if err != nil {
		return desc, err
	}
	shapes := make(map[string]string, len(attrs))
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		shapes[a.Name] = shapeString(a.Shape)
		names = append(names, a.Name)
	}
	natsort.Sort(names)
	for _, name := range names {
		desc.Attributes = append(desc.Attributes, attributeDescription{Name: name, Shape: shapes[name]})
	}
	return desc, nil
}

func cmdDescribe(c *cli.Context) error {
	if c.NArg() != 2 {
		return h5api.ErrorInvalidArgument("describe takes a store and a path")
	}
	ctx := c.Context
	log := logging.Ctx(ctx)

	db, err := util.OpenDB(ctx, c.Args().Get(0), true)
	if err != nil {
		return err
	}
	defer db.Close()
	desc, err := describe(c, db, c.Args().Get(1))
	if err != nil {
		return err
	}
	var md bytes.Buffer
	if err := describeTemplate.Execute(&md, desc); err != nil {
		return h5api.ErrorInternal("describe template failed", err)
	}
	out := log.OutWriter()
	return render.Render(md.Bytes(), out, render.ModeFor(out, !c.Bool("no-color")))
}
