package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mwdb/internal/config"
	"mwdb/pkg/api"
	"mwdb/pkg/logger"
	"mwdb/pkg/serrors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errLoginFailed = errors.New("login failed - invalid credentials")

func (a *app) loginCommand() *cobra.Command {
	var (
		creds  config.Credentials
		askKey bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var err error
			if askKey {
				if creds.Key, err = a.prompt("API key", true); err != nil {
					return err
				}
			}
			if creds.Key == "" {
				if creds.Username == "" {
					if creds.Username, err = a.prompt("Username", false); err != nil {
						return err
					}
				}
				if creds.Password == "" {
					if creds.Password, err = a.prompt("Password", true); err != nil {
						return err
					}
				}
			}

			if err := config.StoreCredentials(a.configPath, creds); err != nil {
				return err //nolint: wrapcheck
			}

			opts := a.cfg.APIOptions()
			opts.APIKey, opts.Username, opts.Password = creds.Key, creds.Username, creds.Password

			var info *api.AuthInfo
			c, err := api.New(ctx, opts)
			if err == nil {
				info, err = c.ValidateAuth(ctx)
			}
			if errors.Is(err, serrors.ErrUnauthorized) {
				logger.Debug(ctx, "credentials rejected", zap.Error(err))
				if err := config.ClearCredentials(a.configPath); err != nil {
					return err //nolint: wrapcheck
				}

				return errLoginFailed
			}
			if err != nil {
				return err //nolint: wrapcheck
			}

			f, err := a.output()
			if err != nil {
				return err
			}

			return f.Confirm("", "Logged in as "+info.Login) //nolint: wrapcheck
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&creds.Username, "username", "u", "", "MWDB username")
	flags.StringVarP(&creds.Password, "password", "p", "", "MWDB password, prompted for when missing")
	flags.StringVarP(&creds.Key, "api-key", "a", "", "MWDB API key")
	flags.BoolVarP(&askKey, "ask-api-key", "A", false, "Prompt for an API key")
	cmd.MarkFlagsMutuallyExclusive("api-key", "ask-api-key")
	cmd.MarkFlagsMutuallyExclusive("api-key", "username")

	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove credentials from the config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.ClearCredentials(a.configPath); err != nil {
				return err //nolint: wrapcheck
			}

			f, err := a.output()
			if err != nil {
				return err
			}

			return f.Confirm("", "Logged out") //nolint: wrapcheck
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.out, api.LibraryVersion)

			return err //nolint: wrapcheck
		},
	}
}

func (a *app) serverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Show server metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), nil)
			if err != nil {
				return err
			}
			f, err := a.output()
			if err != nil {
				return err
			}

			meta, err := c.API().ServerMetadata(cmd.Context())
			if err != nil {
				return err //nolint: wrapcheck
			}

			values := make(map[string][]string, len(meta))
			for k, v := range meta {
				s, ok := v.(string)
				if !ok {
					b, _ := json.Marshal(v)
					s = string(b)
				}
				values[k] = []string{s}
			}

			return f.Metakeys(values) //nolint: wrapcheck
		},
	}
}
