package main

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/HDFGroup/hdf5-json/cmd/h5json/internal/util"
	"github.com/HDFGroup/hdf5-json/h5api"
	"github.com/HDFGroup/hdf5-json/pkg/valuecodec"
)

var aclCmdDef = cli.Command{
	Name:  "acl",
	Usage: "Read and change the access control lists of objects",
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			Usage:     "Show the acl entries of an object, or the effective entry of one user",
			ArgsUsage: "<store> <path> [user id]",
			Action:    util.Action(cmdAclGet),
		},
		{
			Name:      "set",
			Usage:     "Grant or deny permissions to a user",
			ArgsUsage: "<store> <path> <user id>",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "grant",
					Usage: "Permissions to grant: create, read, update, delete, readACL or updateACL",
				},
				&cli.StringSliceFlag{
					Name:  "deny",
					Usage: "Permissions to deny",
				},
			},
			Action: util.Action(cmdAclSet),
		},
	},
}

func aclView(e h5api.AclEntry) map[string]any {
	view := map[string]any{"userid": e.UserID}
	for i, p := range e.Perms() {
		view[h5api.AclFields[i]] = *p == h5api.Perm_Granted
	}
	return view
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, h5api.ErrorInvalidArgument("user id must be a non-negative integer", [2]string{"user", s})
	}
	return id, nil
}

func cmdAclGet(c *cli.Context) error {
	if c.NArg() < 2 || c.NArg() > 3 {
		return h5api.ErrorInvalidArgument("acl get takes a store, a path and an optional user id")
	}
	ctx := c.Context
	db, err := util.OpenDB(ctx, c.Args().Get(0), true)
	if err != nil {
		return err
	}
	defer db.Close()
	rec, err := db.GetUUIDByPath(c.Args().Get(1))
	if err != nil {
		return err
	}

	var result map[string]any
	if c.NArg() == 3 {
		user, err := parseUserID(c.Args().Get(2))
		if err != nil {
			return err
		}
		e, err := db.GetAcl(ctx, rec.UUID, user)
		if err != nil {
			return err
		}
		result = map[string]any{"acl": aclView(e)}
	} else {
		entries, err := db.GetAcls(ctx, rec.UUID)
		if err != nil {
			return err
		}
		list := make([]any, len(entries))
		for i, e := range entries {
			list[i] = aclView(e)
		}
		result = map[string]any{"acls": list}
	}
	n, err := valuecodec.ToNode(result)
	if err != nil {
		return err
	}
	util.SetResult(c, n)
	return nil
}

func setPerms(e *h5api.AclEntry, names []string, to h5api.Perm) error {
	perms := e.Perms()
outer:
	for _, name := range names {
		for i, field := range h5api.AclFields {
			if field == name {
				*perms[i] = to
				continue outer
			}
		}
		return h5api.ErrorInvalidArgument("unknown permission", [2]string{"permission", name})
	}
	return nil
}

func cmdAclSet(c *cli.Context) error {
	if c.NArg() != 3 {
		return h5api.ErrorInvalidArgument("acl set takes a store, a path and a user id")
	}
	user, err := parseUserID(c.Args().Get(2))
	if err != nil {
		return err
	}
	e := h5api.AclEntry{UserID: user}
	if err := setPerms(&e, c.StringSlice("grant"), h5api.Perm_Granted); err != nil {
		return err
	}
	if err := setPerms(&e, c.StringSlice("deny"), h5api.Perm_Denied); err != nil {
		return err
	}

	ctx := c.Context
	db, err := util.OpenDB(ctx, c.Args().Get(0), false)
	if err != nil {
		return err
	}
	defer db.Close()
	rec, err := db.GetUUIDByPath(c.Args().Get(1))
	if err != nil {
		return err
	}
	if err := db.SetAcl(ctx, rec.UUID, e); err != nil {
		return err
	}
	if err := db.Flush(ctx); err != nil {
		return err
	}
	stored, err := db.GetAcl(ctx, rec.UUID, user)
	if err != nil {
		return err
	}
	n, err := valuecodec.ToNode(map[string]any{"acl": aclView(stored)})
	if err != nil {
		return err
	}
	util.SetResult(c, n)
	return nil
}
