package main

import (
	"context"
	"errors"
	"fmt"
	"mwdb/pkg/mwdb"
	"strings"

	"github.com/spf13/cobra"
)

// mutation builds a command taking HASH|FILE followed by extra arguments.
// fn changes the object and returns the confirmation message.
func (a *app) mutation(
	use, short string,
	extra int,
	fn func(ctx context.Context, obj *mwdb.Object, args []string) (string, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1 + extra),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, f, err := a.query(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			msg, err := fn(cmd.Context(), obj, args[1:])
			if err != nil {
				return err
			}

			return f.Confirm(obj.ID(), msg) //nolint: wrapcheck
		},
	}
}

func (a *app) tagCommand() *cobra.Command {
	add := a.mutation("add HASH|FILE TAG", "Add a tag to an object", 1,
		func(ctx context.Context, obj *mwdb.Object, args []string) (string, error) {
			if err := obj.AddTag(ctx, args[0]); err != nil {
				return "", err //nolint: wrapcheck
			}

			return fmt.Sprintf("Added tag %s to %s", args[0], obj.ID()), nil
		})
	remove := a.mutation("remove HASH|FILE TAG", "Remove a tag from an object", 1,
		func(ctx context.Context, obj *mwdb.Object, args []string) (string, error) {
			if err := obj.RemoveTag(ctx, args[0]); err != nil {
				return "", err //nolint: wrapcheck
			}

			return fmt.Sprintf("Removed tag %s from %s", args[0], obj.ID()), nil
		})

	parent := &cobra.Command{Use: "tag", Short: "Manage object tags"}
	parent.AddCommand(remove)

	return withDefault(parent, add)
}

func (a *app) commentCommand() *cobra.Command {
	var comment string

	cmd := a.mutation("comment HASH|FILE", "Add a comment to an object", 0,
		func(ctx context.Context, obj *mwdb.Object, _ []string) (string, error) {
			text := comment
			if text == "" {
				var err error
				if text, err = a.prompt("Write comment", false); err != nil {
					return "", err
				}
			}
			if strings.TrimSpace(text) == "" {
				return "", errors.New("comment must not be empty")
			}

			if err := obj.AddComment(ctx, text); err != nil {
				return "", err //nolint: wrapcheck
			}

			return "Added comment " + obj.ID(), nil
		})
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Comment text, prompted for when missing")

	return cmd
}

func (a *app) metakeyCommand() *cobra.Command {
	return a.mutation("metakey HASH|FILE KEY VALUE", "Add an attribute to an object", 2,
		func(ctx context.Context, obj *mwdb.Object, args []string) (string, error) {
			if err := obj.AddMetakey(ctx, args[0], args[1]); err != nil {
				return "", err //nolint: wrapcheck
			}

			return "Added metakey to " + obj.ID(), nil
		})
}

func (a *app) shareCommand() *cobra.Command {
	return a.mutation("share HASH|FILE GROUP", "Share an object with a group", 1,
		func(ctx context.Context, obj *mwdb.Object, args []string) (string, error) {
			if err := obj.ShareWith(ctx, args[0]); err != nil {
				return "", err //nolint: wrapcheck
			}

			return fmt.Sprintf("Shared %s with %s", obj.ID(), args[0]), nil
		})
}

func (a *app) linkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link PARENT CHILD",
		Short: "Add a parent-child relationship",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parent, f, err := a.query(ctx, args[0])
			if err != nil {
				return err
			}
			child, err := hashOrFile(args[1])
			if err != nil {
				return err
			}

			if err := parent.AddChild(ctx, child); err != nil {
				return err //nolint: wrapcheck
			}

			return f.Confirm(child, fmt.Sprintf("Added relationship %s => %s", parent.ID(), child)) //nolint: wrapcheck
		},
	}
}
