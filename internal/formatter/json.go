package formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"mwdb/pkg/mwdb"
	"time"
)

// jsonFormatter prints one JSON document per line using MWDB field names.
type jsonFormatter struct {
	opts Options
}

func (f *jsonFormatter) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode output: %w", err)
	}
	if _, err := fmt.Fprintln(f.opts.Out, string(b)); err != nil {
		return err //nolint: wrapcheck
	}

	return nil
}

func (f *jsonFormatter) List(_ context.Context, _ mwdb.Kind, objects iter.Seq2[*mwdb.Object, error]) error {
	for obj, err := range objects {
		if err != nil {
			return err
		}
		if err := f.write(obj.Data()); err != nil {
			return err
		}
	}

	return nil
}

func (f *jsonFormatter) Details(_ context.Context, obj *mwdb.Object) error {
	return f.write(obj.Data())
}

func (f *jsonFormatter) Shares(shares []*mwdb.Share) error {
	for _, s := range shares {
		err := f.write(map[string]any{
			"group_name":           s.Group,
			"access_time":          s.Timestamp.Format(time.RFC3339),
			"reason_type":          s.Reason.Why,
			"related_object_dhash": s.Reason.ObjectID,
			"related_object_type":  s.Reason.ObjectKind,
			"related_user_login":   s.Reason.Who,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (f *jsonFormatter) Comments(comments []*mwdb.Comment) error {
	for _, c := range comments {
		err := f.write(map[string]any{
			"id":        c.ID,
			"author":    c.Author,
			"timestamp": c.Timestamp.Format(time.RFC3339),
			"comment":   c.Text,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (f *jsonFormatter) Metakeys(metakeys map[string][]string) error {
	return f.write(metakeys)
}

func (f *jsonFormatter) Confirm(id, message string) error {
	return f.write(map[string]string{"id": id, "message": message})
}
