package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mwdb/internal/config"
	"mwdb/internal/formatter"
	"mwdb/pkg/api"
	"mwdb/pkg/logger"
	"mwdb/pkg/metrics"
	"mwdb/pkg/mwdb"
	"mwdb/pkg/serrors"
	"mwdb/pkg/storage/postgres"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// app carries the state shared by all subcommands: standard streams, global
// flags and the configuration loaded before any subcommand runs.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	apiURL     string
	format     string
	verbose    bool
	noColor    bool
	noHuman    bool

	cfg    *config.Config
	reader *bufio.Reader
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mwdb",
		Short:         "MWDB command line client",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "Config file path")
	flags.StringVar(&a.apiURL, "api-url", "", "URL of the MWDB API")
	flags.StringVarP(&a.format, "format", "f", "", "Output format: tabular, short or json")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log every API request")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&a.noHuman, "no-human", false, "Print raw sizes and timestamps")

	root.AddCommand(
		a.versionCommand(),
		a.serverCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.listCommand(),
		a.searchCommand(),
		a.countCommand(),
		a.getCommand(),
		a.fetchCommand(),
		a.uploadCommand(),
		a.tagCommand(),
		a.commentCommand(),
		a.metakeyCommand(),
		a.linkCommand(),
		a.shareCommand(),
		a.listenCommand(),
		a.migrateCommand(),
		a.workCommand(),
	)

	return root
}

// setup loads the configuration, applies global flag overrides and
// initializes logging.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.apiURL != "" {
		cfg.API.URL = a.apiURL
	}
	if a.format != "" {
		cfg.Output.Format = a.format
	}
	if a.noColor {
		cfg.Output.NoColor = true
	}
	if a.noHuman {
		cfg.Output.NoHuman = true
	}
	a.cfg = cfg

	logger.Setup(cfg.Environment, a.verbose)
	logger.Debug(ctx, "config loaded", zap.String("path", a.configPath), zap.String("api", cfg.API.URL))

	return nil
}

// client connects to MWDB with the configured credentials. Metrics may be nil.
func (a *app) client(ctx context.Context, m *metrics.Metrics) (*mwdb.Client, error) {
	opts := a.cfg.APIOptions()
	opts.Metrics = m

	c, err := api.New(ctx, opts)
	if err != nil {
		return nil, err //nolint: wrapcheck
	}

	return mwdb.New(c), nil
}

// output returns the configured formatter. Colors are used only on a terminal.
func (a *app) output() (formatter.Formatter, error) {
	color, width := false, 0
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		color = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}

	return formatter.New(a.cfg.Output.Format, formatter.Options{ //nolint: wrapcheck
		Out:   a.out,
		Err:   a.errOut,
		Color: color && !a.cfg.Output.NoColor,
		Human: !a.cfg.Output.NoHuman,
		Width: width,
	})
}

// prompt asks for a single line on stderr. Secret input is not echoed when
// reading from a terminal.
func (a *app) prompt(label string, secret bool) (string, error) {
	if _, err := fmt.Fprintf(a.errOut, "%s: ", label); err != nil {
		return "", err //nolint: wrapcheck
	}

	if f, ok := a.in.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("could not read %s: %w", strings.ToLower(label), err)
		}

		return string(b), nil
	}

	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("could not read %s: %w", strings.ToLower(label), err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// openPostgres connects to the configured database and returns the storage
// along with a cleanup function closing the connection pool.
func (a *app) openPostgres(ctx context.Context, databaseURL string) (*postgres.PgSQL, func(), error) {
	opts := a.cfg.PostgresOptions()
	if databaseURL != "" {
		opts.URL = databaseURL
	}
	if opts.URL == "" {
		return nil, nil, errors.New("database url is not configured, use --database-url or MWDB_DATABASE_URL")
	}

	pgsql, err := postgres.New(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create postgres storage: %w", err)
	}

	return pgsql, func() {
		logger.Debug(ctx, "closing postgres client...")
		if err := pgsql.Close(); err != nil {
			logger.Warn(ctx, "could not close postgres connection", zap.Error(err))
		}
	}, nil
}

// explain prints err for the user. Missing credentials get a hint instead of
// the raw message.
func (a *app) explain(err error) {
	if serrors.KindOf(err) == serrors.ErrUnauthorized {
		_, _ = fmt.Fprintln(a.errOut, "Not authenticated. Use `mwdb login` first to set credentials.")

		return
	}

	_, _ = fmt.Fprintf(a.errOut, "Error: %s\n", err)
}
