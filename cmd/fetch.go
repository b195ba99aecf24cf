package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const fetchedFileMode = 0o600

func (a *app) fetchCommand() *cobra.Command {
	var keepName bool

	cmd := &cobra.Command{
		Use:   "fetch HASH [DEST|-]",
		Short: "Download object contents",
		Long: "Download file contents, config or blob into DEST. DEST defaults to the " +
			"object identifier; '-' writes to standard output.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(ctx, nil)
			if err != nil {
				return err
			}
			f, err := a.output()
			if err != nil {
				return err
			}

			obj, err := c.Query(ctx, hash)
			if err != nil {
				return err //nolint: wrapcheck
			}
			content, err := obj.Content(ctx)
			if err != nil {
				return err //nolint: wrapcheck
			}

			dest := hash
			if len(args) > 1 {
				dest = args[1]
			} else if file, ok := obj.AsFile(); ok && keepName {
				name, err := file.Name(ctx)
				if err != nil {
					return err //nolint: wrapcheck
				}
				dest = filepath.Base(name)
			}

			if dest == "-" {
				_, err := a.out.Write(content)

				return err //nolint: wrapcheck
			}
			if err := os.WriteFile(dest, content, fetchedFileMode); err != nil {
				return fmt.Errorf("could not write %s: %w", dest, err)
			}

			return f.Confirm(obj.ID(), fmt.Sprintf("Downloaded %s => %s", obj.ID(), dest)) //nolint: wrapcheck
		},
	}
	cmd.Flags().BoolVar(&keepName, "keep-name", false, "Store a file under its original name")

	return cmd
}
