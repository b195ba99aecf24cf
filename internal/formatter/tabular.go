package formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"mwdb/pkg/mwdb"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	defaultWidth = 120
	cellPadding  = 1
)

// layout describes fixed column widths of a listing. The expand column
// absorbs the rest of the terminal width.
type layout struct {
	widths []int
	expand int
}

// listLayouts are tried in order until one fits the terminal.
var listLayouts = []layout{ //nolint: gochecknoglobals
	{widths: []int{66, 12, 10, 24}, expand: 2},
	{widths: []int{8, 12, 10, 12}, expand: 0},
}

func columnWidths(term int) ([]int, error) {
	need := 0
	for _, l := range listLayouts {
		need = 0
		for _, w := range l.widths {
			need += w
		}
		if term >= need {
			out := slices.Clone(l.widths)
			out[l.expand] += term - need

			return out, nil
		}
	}

	return nil, fmt.Errorf("terminal is too narrow (needed %d, got %d)", need, term)
}

// tabularFormatter prints aligned, optionally colored tables.
type tabularFormatter struct {
	opts Options
}

func (f *tabularFormatter) attrs() attributes {
	return attributes{color: f.opts.Color, human: f.opts.Human, now: f.opts.Now}
}

func (f *tabularFormatter) row(widths []int, cells ...string) string {
	rendered := make([]string, 0, len(cells))
	for i, c := range cells {
		rendered = append(rendered, lipgloss.NewStyle().Width(widths[i]).PaddingRight(cellPadding).Render(c))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (f *tabularFormatter) List(ctx context.Context, kind mwdb.Kind, objects iter.Seq2[*mwdb.Object, error]) error {
	widths, err := columnWidths(f.opts.Width)
	if err != nil {
		return err
	}

	headers, row := f.listing(kind)
	empty := true
	for obj, err := range objects {
		if err != nil {
			return err
		}
		if empty {
			empty = false
			header := f.row(widths, headers...)
			if f.opts.Color {
				header = lipgloss.NewStyle().Bold(true).Render(header)
			}
			if _, err := fmt.Fprintln(f.opts.Out, header); err != nil {
				return err //nolint: wrapcheck
			}
		}

		cells, err := row(ctx, obj)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f.opts.Out, f.row(widths, cells...)); err != nil {
			return err //nolint: wrapcheck
		}
	}

	if empty {
		_, err := fmt.Fprintln(f.opts.Err, "No results.")

		return err //nolint: wrapcheck
	}

	return nil
}

type rowFunc func(ctx context.Context, obj *mwdb.Object) ([]string, error)

func (f *tabularFormatter) listing(kind mwdb.Kind) ([]string, rowFunc) {
	switch kind {
	case mwdb.KindFile:
		return []string{"Name/SHA256", "Size", "Type/Tags", "Creation time"}, f.fileRow
	case mwdb.KindConfig:
		return []string{"Family/ID", "Type", "Tags", "Creation time"}, f.configRow
	case mwdb.KindBlob:
		return []string{"Name/ID", "Type", "Tags", "Creation time"}, f.blobRow
	default:
		return []string{"ID", "Type", "Tags", "Creation time"}, f.objectRow
	}
}

// collector keeps the first error of a series of attribute lookups.
type collector struct {
	ctx context.Context
	err error
}

func get[T any](c *collector, fn func(context.Context) (T, error)) T {
	var zero T
	if c.err != nil {
		return zero
	}
	v, err := fn(c.ctx)
	if err != nil {
		c.err = err

		return zero
	}

	return v
}

func (f *tabularFormatter) objectRow(ctx context.Context, obj *mwdb.Object) ([]string, error) {
	a := f.attrs()
	c := &collector{ctx: ctx}
	tags := get(c, obj.Tags)
	uploaded := get(c, obj.UploadTime)

	return []string{obj.ID(), a.kind(obj.Kind()), a.tags(tags), a.date(uploaded)}, c.err
}

func (f *tabularFormatter) fileRow(ctx context.Context, obj *mwdb.Object) ([]string, error) {
	file, ok := obj.AsFile()
	if !ok {
		return f.objectRow(ctx, obj)
	}

	a := f.attrs()
	c := &collector{ctx: ctx}
	name := get(c, file.Name)
	size := get(c, file.Size)
	fileType := get(c, file.FileType)
	tags := get(c, file.Tags)
	uploaded := get(c, file.UploadTime)

	return []string{
		a.bold(name) + "\n" + file.ID(),
		a.size(size),
		fileType + "\n" + a.tags(tags),
		a.date(uploaded),
	}, c.err
}

func (f *tabularFormatter) configRow(ctx context.Context, obj *mwdb.Object) ([]string, error) {
	cfg, ok := obj.AsConfig()
	if !ok {
		return f.objectRow(ctx, obj)
	}

	a := f.attrs()
	c := &collector{ctx: ctx}
	family := get(c, cfg.Family)
	configType := get(c, cfg.ConfigType)
	tags := get(c, cfg.Tags)
	uploaded := get(c, cfg.UploadTime)

	return []string{a.bold(family) + "\n" + cfg.ID(), configType, a.tags(tags), a.date(uploaded)}, c.err
}

func (f *tabularFormatter) blobRow(ctx context.Context, obj *mwdb.Object) ([]string, error) {
	blob, ok := obj.AsBlob()
	if !ok {
		return f.objectRow(ctx, obj)
	}

	a := f.attrs()
	c := &collector{ctx: ctx}
	name := get(c, blob.Name)
	blobType := get(c, blob.BlobType)
	tags := get(c, blob.Tags)
	uploaded := get(c, blob.UploadTime)

	return []string{a.bold(name) + "\n" + blob.ID(), blobType, a.tags(tags), a.date(uploaded)}, c.err
}

// attrTable renders "key: value" pairs without borders.
func (f *tabularFormatter) attrTable(rows [][2]string) error {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(_, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(cellPadding)
			if col == 0 && f.opts.Color {
				s = s.Bold(true)
			}

			return s
		})
	for _, r := range rows {
		t.Row(r[0]+":", r[1])
	}

	_, err := fmt.Fprintln(f.opts.Out, t.String())

	return err //nolint: wrapcheck
}

func (f *tabularFormatter) Details(ctx context.Context, obj *mwdb.Object) error {
	a := f.attrs()
	c := &collector{ctx: ctx}

	var rows [][2]string
	switch obj.Kind() {
	case mwdb.KindFile:
		file, _ := obj.AsFile()
		rows = [][2]string{
			{"File name", get(c, file.Name)},
			{"File size", a.size(get(c, file.Size))},
			{"File type", get(c, file.FileType)},
			{"MD5", get(c, file.MD5)},
			{"SHA1", get(c, file.SHA1)},
			{"SHA256", file.ID()},
			{"SHA512", get(c, file.SHA512)},
			{"CRC32", get(c, file.CRC32)},
			{"SSDEEP", get(c, file.SSDeep)},
			{"Upload time", a.date(get(c, file.UploadTime))},
		}
	case mwdb.KindConfig:
		cfg, _ := obj.AsConfig()
		rows = [][2]string{{"Family", get(c, cfg.Family)}}
		dict := get(c, cfg.ConfigDict)
		for _, key := range slices.Sorted(maps.Keys(dict)) {
			b, _ := json.Marshal(dict[key])
			rows = append(rows, [2]string{key, string(b)})
		}
		rows = append(rows, [2]string{"Upload time", a.date(get(c, cfg.UploadTime))})
	case mwdb.KindBlob:
		blob, _ := obj.AsBlob()
		rows = [][2]string{
			{"Blob name", get(c, blob.Name)},
			{"Blob size", a.size(get(c, blob.Size))},
			{"Blob type", get(c, blob.BlobType)},
			{"SHA256", blob.ID()},
			{"First seen", a.date(get(c, blob.UploadTime))},
			{"Last seen", a.date(get(c, blob.LastSeen))},
		}
	default:
		rows = [][2]string{
			{"ID", obj.ID()},
			{"Type", a.kind(obj.Kind())},
			{"Upload time", a.date(get(c, obj.UploadTime))},
		}
	}

	rows = append(rows, [2]string{"Tags", a.tags(get(c, obj.Tags))})
	parents := get(c, obj.Parents)
	children := get(c, obj.Children)
	if c.err != nil {
		return c.err
	}

	parentTags, err := relationTags(ctx, parents)
	if err != nil {
		return err
	}
	childTags, err := relationTags(ctx, children)
	if err != nil {
		return err
	}
	rows = append(rows,
		[2]string{"Parent tags", a.tags(parentTags)},
		[2]string{"Child tags", a.tags(childTags)},
	)

	return f.attrTable(rows)
}

// grid renders a bordered table with a header row.
func (f *tabularFormatter) grid(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(f.opts.Err, "No results.")

		return err //nolint: wrapcheck
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(cellPadding)
			if row == table.HeaderRow && f.opts.Color {
				s = s.Bold(true)
			}

			return s
		})

	_, err := fmt.Fprintln(f.opts.Out, t.String())

	return err //nolint: wrapcheck
}

func (f *tabularFormatter) Shares(shares []*mwdb.Share) error {
	a := f.attrs()
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{a.bold(s.Group), s.Reason.String(), a.date(s.Timestamp)})
	}

	return f.grid([]string{"Group name", "Reason", "Access time"}, rows)
}

func (f *tabularFormatter) Comments(comments []*mwdb.Comment) error {
	a := f.attrs()
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{a.bold(c.Author), c.Text, a.date(c.Timestamp)})
	}

	return f.grid([]string{"Author", "Comment", "Timestamp"}, rows)
}

func (f *tabularFormatter) Metakeys(metakeys map[string][]string) error {
	if len(metakeys) == 0 {
		_, err := fmt.Fprintln(f.opts.Err, "No results.")

		return err //nolint: wrapcheck
	}

	rows := make([][2]string, 0, len(metakeys))
	for _, key := range slices.Sorted(maps.Keys(metakeys)) {
		rows = append(rows, [2]string{key, strings.Join(metakeys[key], "\n")})
	}

	return f.attrTable(rows)
}

func (f *tabularFormatter) Confirm(_, message string) error {
	_, err := fmt.Fprintln(f.opts.Out, message)

	return err //nolint: wrapcheck
}
