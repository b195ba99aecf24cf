package formatter

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"mwdb/pkg/mwdb"
	"slices"
)

// shortFormatter prints identifiers only, one per line, for use in pipes.
type shortFormatter struct {
	opts Options
}

func (f *shortFormatter) List(_ context.Context, _ mwdb.Kind, objects iter.Seq2[*mwdb.Object, error]) error {
	for obj, err := range objects {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f.opts.Out, obj.ID()); err != nil {
			return err //nolint: wrapcheck
		}
	}

	return nil
}

func (f *shortFormatter) Details(_ context.Context, obj *mwdb.Object) error {
	_, err := fmt.Fprintln(f.opts.Out, obj.ID())

	return err //nolint: wrapcheck
}

func (f *shortFormatter) Shares(shares []*mwdb.Share) error {
	for _, s := range shares {
		if _, err := fmt.Fprintln(f.opts.Out, s.Group); err != nil {
			return err //nolint: wrapcheck
		}
	}

	return nil
}

func (f *shortFormatter) Comments(comments []*mwdb.Comment) error {
	for _, c := range comments {
		if _, err := fmt.Fprintln(f.opts.Out, c.Author, c.Text); err != nil {
			return err //nolint: wrapcheck
		}
	}

	return nil
}

func (f *shortFormatter) Metakeys(metakeys map[string][]string) error {
	for _, key := range slices.Sorted(maps.Keys(metakeys)) {
		for _, v := range metakeys[key] {
			if _, err := fmt.Fprintln(f.opts.Out, key, v); err != nil {
				return err //nolint: wrapcheck
			}
		}
	}

	return nil
}

func (f *shortFormatter) Confirm(id, _ string) error {
	if id == "" {
		return nil
	}
	_, err := fmt.Fprintln(f.opts.Out, id)

	return err //nolint: wrapcheck
}
