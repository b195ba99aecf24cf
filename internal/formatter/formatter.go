// Package formatter renders MWDB objects, relations, comments and shares for
// the command line.
package formatter

import (
	"context"
	"fmt"
	"io"
	"iter"
	"mwdb/pkg/mwdb"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Output formats accepted by New.
const (
	FormatShort   = "short"
	FormatJSON    = "json"
	FormatTabular = "tabular"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTabular, FormatShort, FormatJSON} //nolint: gochecknoglobals

// Formatter writes command results.
type Formatter interface {
	// List writes a listing of objects of the given kind. The listing is
	// consumed lazily so that long searches stream; the first error stops it.
	List(ctx context.Context, kind mwdb.Kind, objects iter.Seq2[*mwdb.Object, error]) error
	// Details writes every attribute of a single object.
	Details(ctx context.Context, obj *mwdb.Object) error
	// Shares writes the groups an object is shared with.
	Shares(shares []*mwdb.Share) error
	// Comments writes the comments of an object.
	Comments(comments []*mwdb.Comment) error
	// Metakeys writes the attributes of an object.
	Metakeys(metakeys map[string][]string) error
	// Confirm reports a successful mutation of the object identified by id.
	Confirm(id, message string) error
}

// Options controls the output of a Formatter.
type Options struct {
	// Out receives results. Defaults to os.Stdout.
	Out io.Writer
	// Err receives notices such as "No results.". Defaults to os.Stderr.
	Err io.Writer
	// Color enables ANSI styling.
	Color bool
	// Human prints sizes and dates in a human-friendly way.
	Human bool
	// Width is the terminal width used by the tabular formatter.
	Width int
	// Now is used for relative dates. Defaults to time.Now.
	Now func() time.Time
}

// New returns the formatter registered under name.
func New(name string, opts Options) (Formatter, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	switch name {
	case FormatShort:
		return &shortFormatter{opts: opts}, nil
	case FormatJSON:
		return &jsonFormatter{opts: opts}, nil
	case FormatTabular, "":
		return &tabularFormatter{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q, use one of %s", name, strings.Join(Formats, ", "))
	}
}

// Terminal colors by ANSI index.
var (
	blue         = lipgloss.Color("4")  //nolint: gochecknoglobals
	red          = lipgloss.Color("1")  //nolint: gochecknoglobals
	brightRed    = lipgloss.Color("9")  //nolint: gochecknoglobals
	brightGreen  = lipgloss.Color("10") //nolint: gochecknoglobals
	brightYellow = lipgloss.Color("11") //nolint: gochecknoglobals
	brightBlue   = lipgloss.Color("12") //nolint: gochecknoglobals
)

// tagColors maps tag prefixes to colors, first match wins.
var tagColors = []struct { //nolint: gochecknoglobals
	color    lipgloss.Color
	prefixes []string
}{
	{brightBlue, []string{"spam", "suspicious", "unwanted", "apk", "pexe", "zip", "archive", "src:", "uploader:", "feed:"}},
	{brightYellow, []string{"ripped:", "contains:", "matches:"}},
	{brightGreen, []string{"static:", "dynamic:"}},
	{red, []string{"runnable:", "archive:", "dump:", "script:"}},
}

var typeColors = map[string]lipgloss.Color{ //nolint: gochecknoglobals
	"file":   brightRed,
	"config": brightGreen,
	"blob":   brightBlue,
}

func tagColor(tag string) lipgloss.Color {
	for _, c := range tagColors {
		for _, p := range c.prefixes {
			if strings.HasPrefix(tag, p) {
				return c.color
			}
		}
	}
	if strings.Contains(tag, ":") {
		return blue
	}

	return brightRed
}

// attributes renders single values according to the color and human options.
type attributes struct {
	color bool
	human bool
	now   func() time.Time
}

func (a attributes) style(s string, st lipgloss.Style) string {
	if !a.color {
		return s
	}

	return st.Render(s)
}

func (a attributes) bold(s string) string {
	return a.style(s, lipgloss.NewStyle().Bold(true))
}

func (a attributes) tags(tags []string) string {
	if len(tags) == 0 {
		return "<none>"
	}

	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, a.style(t, lipgloss.NewStyle().Foreground(tagColor(t))))
	}

	return strings.Join(out, " ")
}

func (a attributes) size(n int64) string {
	if !a.human || n < 0 {
		return strconv.FormatInt(n, 10)
	}

	return humanize.Bytes(uint64(n))
}

func (a attributes) date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if !a.human {
		return t.Format(time.RFC3339)
	}

	return humanize.RelTime(t, a.now(), "ago", "from now")
}

// kind returns the short name of an object kind, optionally colored.
func (a attributes) kind(k mwdb.Kind) string {
	name := shortKind(k)
	if c, ok := typeColors[name]; ok {
		return a.style(name, lipgloss.NewStyle().Foreground(c))
	}

	return name
}

func shortKind(k mwdb.Kind) string {
	switch k {
	case mwdb.KindConfig:
		return "config"
	case mwdb.KindBlob:
		return "blob"
	default:
		return string(k)
	}
}

// relationTags returns the sorted union of the tags of related objects.
func relationTags(ctx context.Context, objs []*mwdb.Object) ([]string, error) {
	seen := map[string]struct{}{}
	for _, o := range objs {
		tags, err := o.Tags(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)

	return out, nil
}
