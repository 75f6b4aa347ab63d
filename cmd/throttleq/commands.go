package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phrazzld/throttleq/internal/config"
	"github.com/phrazzld/throttleq/internal/platform/postgres"
	"github.com/phrazzld/throttleq/internal/service/auth"
	"github.com/phrazzld/throttleq/internal/tokenfile"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "throttleq",
		Short: "Rate-limited task queue with a result journal",
		Long: `throttleq pages through a cursor-based HTTP listing one request at a time
(or a few, per queue.max_concurrent), pausing between requests and blocking
the whole queue when the remote side answers 429. Every fetched page is
journaled so an interrupted run resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (default is ./config.yaml or ./config/config.yaml if present)")

	load := func() (*config.Config, error) {
		if configFile != "" {
			return config.LoadFile(configFile)
		}
		return config.Load()
	}

	root.AddCommand(newRunCmd(load), newTokenCmd(load), newMigrateCmd(load))
	return root
}

type configLoader func() (*config.Config, error)

func newRunCmd(load configLoader) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fetch job and the admin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err := setupAppLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			app, err := newApplication(cmd.Context(), cfg, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.cleanup()

			return app.Run(cmd.Context(), out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write fetched entries here instead of stdout")
	return cmd
}

func newTokenCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(load), newTokenSaveCmd())
	return cmd
}

func newTokenIssueCmd(load configLoader) *cobra.Command {
	var (
		subject string
		save    tokenfile.Location
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an operator token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}

			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to initialize JWT service: %w", err)
			}
			token, err := svc.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}

			if !save.IsZero() {
				path, err := tokenfile.Save(save, token)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "token saved to", path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "operator name to put in the token")
	cmd.Flags().StringVar(&save.Identifier, "save-identifier", "", "also save the token under this identifier")
	cmd.Flags().StringVar(&save.Path, "save-path", "", "also save the token to this file")
	return cmd
}

func newTokenSaveCmd() *cobra.Command {
	var loc tokenfile.Location

	cmd := &cobra.Command{
		Use:   "save [token]",
		Short: "Save a remote API token for the fetch job",
		Long: `Save a bearer token for the remote listing API. The token is read from the
argument, or from stdin when no argument is given. Point the fetch job at it
with fetch.token_identifier or fetch.token_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = strings.TrimSpace(string(data))
			}

			path, err := tokenfile.Save(loc, token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&loc.Identifier, "identifier", "", "save under this identifier in the temp directory")
	cmd.Flags().StringVar(&loc.Path, "path", "", "save to this file")
	return cmd
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres journal schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured")
			}
			logger, err := setupAppLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			db, err := setupAppDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			version, err := postgres.Migrate(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int64{"version": version})
		},
	}
}
