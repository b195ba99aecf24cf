package main

import (
	"fmt"
	"mwdb/pkg/listener"
	"mwdb/pkg/mwdb"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

const defaultLimit = 200

// listing maps a listing subcommand name onto an object type.
type listing struct {
	name       string
	objectType listener.ObjectType
}

var listings = []listing{ //nolint: gochecknoglobals
	{"objects", listener.ObjectTypeAll},
	{"files", listener.ObjectTypeFile},
	{"configs", listener.ObjectTypeConfig},
	{"blobs", listener.ObjectTypeBlob},
}

func listingNames() string {
	names := make([]string, 0, len(listings))
	for _, l := range listings {
		names = append(names, l.name)
	}

	return strings.Join(names, ", ")
}

// parseListing accepts a listing name such as "files" or an object type such
// as "file".
func parseListing(v string) (listener.ObjectType, error) {
	i := slices.IndexFunc(listings, func(l listing) bool {
		return l.name == v || string(l.objectType) == v
	})
	if i < 0 {
		return "", fmt.Errorf("unknown object type %q, use one of %s", v, listingNames())
	}

	return listings[i].objectType, nil
}

// listingCommand builds one subcommand per object type, files being the
// default. withQuery adds a required QUERY argument.
func (a *app) listingCommand(use, short string, withQuery bool) *cobra.Command {
	parent := &cobra.Command{Use: use, Short: short}

	var def *cobra.Command
	for _, l := range listings {
		var limit int
		cmd := &cobra.Command{
			Use:   l.name,
			Short: fmt.Sprintf("%s %s", short, l.name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				query := ""
				if withQuery {
					query = args[0]
				}

				c, err := a.client(cmd.Context(), nil)
				if err != nil {
					return err
				}
				f, err := a.output()
				if err != nil {
					return err
				}

				seq := take(c.SearchOf(cmd.Context(), l.objectType, query), limit)

				return f.List(cmd.Context(), mwdb.KindOf(l.objectType), seq) //nolint: wrapcheck
			},
		}
		if withQuery {
			cmd.Use += " QUERY"
			cmd.Args = cobra.ExactArgs(1)
		}
		cmd.Flags().IntVarP(&limit, "limit", "n", defaultLimit, "Maximum number of listed objects, 0 for no limit")

		if l.objectType == listener.ObjectTypeFile {
			def = cmd
		} else {
			parent.AddCommand(cmd)
		}
	}

	return withDefault(parent, def)
}

func (a *app) listCommand() *cobra.Command {
	return a.listingCommand("list", "List recent", false)
}

func (a *app) searchCommand() *cobra.Command {
	return a.listingCommand("search", "Search", true)
}

func (a *app) countCommand() *cobra.Command {
	var objectType string

	cmd := &cobra.Command{
		Use:   "count [QUERY]",
		Short: "Count objects matching a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseListing(objectType)
			if err != nil {
				return err
			}
			query := ""
			if len(args) > 0 {
				query = args[0]
			}

			c, err := a.client(cmd.Context(), nil)
			if err != nil {
				return err
			}
			n, err := c.CountOf(cmd.Context(), t, query)
			if err != nil {
				return err //nolint: wrapcheck
			}

			_, err = fmt.Fprintln(a.out, n)

			return err //nolint: wrapcheck
		},
	}
	cmd.Flags().StringVarP(&objectType, "type", "t", "objects", "Object type: "+listingNames())

	return cmd
}
