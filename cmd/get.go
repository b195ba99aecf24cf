package main

import (
	"context"
	"mwdb/internal/formatter"
	"mwdb/pkg/mwdb"

	"github.com/spf13/cobra"
)

// objectCommand builds a command taking a single HASH|FILE argument and
// running fn on the queried object.
func (a *app) objectCommand(
	use, short string,
	fn func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " HASH|FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, f, err := a.query(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return fn(cmd.Context(), f, obj)
		},
	}
}

// query resolves a HASH|FILE argument into an object.
func (a *app) query(ctx context.Context, arg string) (*mwdb.Object, formatter.Formatter, error) {
	hash, err := hashOrFile(arg)
	if err != nil {
		return nil, nil, err
	}

	c, err := a.client(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	f, err := a.output()
	if err != nil {
		return nil, nil, err
	}

	obj, err := c.Query(ctx, hash)
	if err != nil {
		return nil, nil, err //nolint: wrapcheck
	}

	return obj, f, nil
}

func (a *app) getCommand() *cobra.Command {
	details := a.objectCommand("details", "Show object details",
		func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error {
			return f.Details(ctx, obj) //nolint: wrapcheck
		})

	related := func(use, short string, fetch func(*mwdb.Object, context.Context) ([]*mwdb.Object, error)) *cobra.Command {
		return a.objectCommand(use, short, func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error {
			objs, err := fetch(obj, ctx)
			if err != nil {
				return err
			}

			return f.List(ctx, mwdb.KindObject, objects(objs)) //nolint: wrapcheck
		})
	}

	parent := &cobra.Command{Use: "get", Short: "Get information about an object"}
	parent.AddCommand(
		related("parents", "List parents of an object", (*mwdb.Object).Parents),
		related("children", "List children of an object", (*mwdb.Object).Children),
		a.objectCommand("shares", "List groups an object is shared with",
			func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error {
				shares, err := obj.Shares(ctx)
				if err != nil {
					return err //nolint: wrapcheck
				}

				return f.Shares(shares) //nolint: wrapcheck
			}),
		a.objectCommand("comments", "List comments of an object",
			func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error {
				comments, err := obj.Comments(ctx)
				if err != nil {
					return err //nolint: wrapcheck
				}

				return f.Comments(comments) //nolint: wrapcheck
			}),
		a.objectCommand("metakeys", "List attributes of an object",
			func(ctx context.Context, f formatter.Formatter, obj *mwdb.Object) error {
				metakeys, err := obj.Metakeys(ctx)
				if err != nil {
					return err //nolint: wrapcheck
				}

				return f.Metakeys(metakeys) //nolint: wrapcheck
			}),
	)

	return withDefault(parent, details)
}
