package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mwdb/pkg/mwdb"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// uploadFlags are shared by every upload subcommand.
type uploadFlags struct {
	parent     string
	private    bool
	public     bool
	shareWith  string
	tags       []string
	attributes []string
}

func (u *uploadFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&u.parent, "parent", "", "Parent object HASH|FILE")
	flags.BoolVar(&u.private, "private", false, "Share the object only with yourself")
	flags.BoolVar(&u.public, "public", false, "Share the object with everyone")
	flags.StringVar(&u.shareWith, "share-with", "", "Share the object with a group")
	flags.StringArrayVar(&u.tags, "tag", nil, "Tag to add, may be repeated")
	flags.StringArrayVar(&u.attributes, "attribute", nil, "Attribute KEY=VALUE to add, may be repeated")
	cmd.MarkFlagsMutuallyExclusive("private", "public", "share-with")
}

// options converts the flags into upload options. Attribute values that
// parse as JSON are sent as such, anything else as a string.
func (u *uploadFlags) options() (mwdb.UploadOptions, error) {
	opts := mwdb.UploadOptions{
		Private:   u.private,
		Public:    u.public,
		ShareWith: u.shareWith,
		Tags:      u.tags,
	}

	if u.parent != "" {
		parent, err := hashOrFile(u.parent)
		if err != nil {
			return opts, err
		}
		opts.Parent = parent
	}

	for _, attr := range u.attributes {
		key, raw, ok := strings.Cut(attr, "=")
		if !ok || key == "" {
			return opts, fmt.Errorf("attribute %q must be in KEY=VALUE form", attr)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		if opts.Attributes == nil {
			opts.Attributes = map[string][]any{}
		}
		opts.Attributes[key] = append(opts.Attributes[key], value)
	}

	return opts, nil
}

// readInput reads a file, '-' meaning standard input.
func (a *app) readInput(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("could not read standard input: %w", err)
		}

		return b, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	return b, nil
}

// uploader builds an upload subcommand. fn performs the upload and returns
// the new object.
func (a *app) uploader(
	use, short, kind string,
	args cobra.PositionalArgs,
	fn func(ctx context.Context, c *mwdb.Client, args []string, opts mwdb.UploadOptions) (*mwdb.Object, error),
) *cobra.Command {
	flags := &uploadFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context(), nil)
			if err != nil {
				return err
			}
			f, err := a.output()
			if err != nil {
				return err
			}

			obj, err := fn(cmd.Context(), c, args, opts)
			if err != nil {
				return err
			}

			return f.Confirm(obj.ID(), fmt.Sprintf("Uploaded %s %s", kind, obj.ID())) //nolint: wrapcheck
		},
	}
	flags.register(cmd)

	return cmd
}

func (a *app) uploadCommand() *cobra.Command {
	var fileName, blobName, configType string

	file := a.uploader("file FILE", "Upload a file", "file", cobra.ExactArgs(1),
		func(ctx context.Context, c *mwdb.Client, args []string, opts mwdb.UploadOptions) (*mwdb.Object, error) {
			content, err := a.readInput(args[0])
			if err != nil {
				return nil, err
			}
			name := fileName
			if name == "" {
				name = filepath.Base(args[0])
			}

			uploaded, err := c.UploadFile(ctx, name, content, opts)
			if err != nil {
				return nil, err //nolint: wrapcheck
			}

			return uploaded.Object, nil
		})
	file.Flags().StringVar(&fileName, "name", "", "Name of the uploaded file, defaults to the base name of FILE")

	config := a.uploader("config FAMILY CONFIG_FILE", "Upload a JSON configuration", "config", cobra.ExactArgs(2),
		func(ctx context.Context, c *mwdb.Client, args []string, opts mwdb.UploadOptions) (*mwdb.Object, error) {
			b, err := a.readInput(args[1])
			if err != nil {
				return nil, err
			}
			cfg, err := mwdb.DecodeConfig(b)
			if err != nil {
				return nil, fmt.Errorf("could not parse config %s: %w", args[1], err)
			}

			uploaded, err := c.UploadConfig(ctx, args[0], cfg, configType, opts)
			if err != nil {
				return nil, err //nolint: wrapcheck
			}

			return uploaded.Object, nil
		})
	config.Flags().StringVar(&configType, "config-type", "static", "Config type: static or dynamic")

	blob := a.uploader("blob BLOB_TYPE BLOB_FILE", "Upload a text blob", "blob", cobra.ExactArgs(2),
		func(ctx context.Context, c *mwdb.Client, args []string, opts mwdb.UploadOptions) (*mwdb.Object, error) {
			content, err := a.readInput(args[1])
			if err != nil {
				return nil, err
			}
			name := blobName
			if name == "" {
				name = filepath.Base(args[1])
			}

			uploaded, err := c.UploadBlob(ctx, name, args[0], string(content), opts)
			if err != nil {
				return nil, err //nolint: wrapcheck
			}

			return uploaded.Object, nil
		})
	blob.Flags().StringVar(&blobName, "name", "", "Name of the uploaded blob, defaults to the base name of BLOB_FILE")

	parent := &cobra.Command{Use: "upload", Short: "Upload an object"}
	parent.AddCommand(config, blob)

	return withDefault(parent, file)
}
