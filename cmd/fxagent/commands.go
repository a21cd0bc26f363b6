package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"fxagent/internal/app"
	"fxagent/internal/config"
	"fxagent/internal/logger"
	"fxagent/internal/stream"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	configPath string
	logLevel   string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fxagent",
		Short:         "Multi-agent forex and commodity analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $FXAGENT_CONFIG or configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override app.log_level")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(newServeCmd(opts), newAnalyzeCmd(opts), newConfigCmd(opts), newVersionCmd())
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		streamEvents bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Run one analysis and print the decision",
		Example: `  fxagent analyze "should I buy EUR/USD on the 4h chart?"
  fxagent analyze --stream "gold swing trade"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query is required")
			}
			cfg, closeLogs, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer closeLogs()
			a, err := app.NewApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			out := cmd.OutOrStdout()
			if streamEvents {
				for ev := range a.Engine().Stream(cmd.Context(), query) {
					printEvent(out, ev, asJSON)
				}
				return nil
			}
			st, err := a.Engine().Analyze(cmd.Context(), query)
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(st); encErr != nil {
					return encErr
				}
				return err
			}
			fmt.Fprintln(out, renderRun(st))
			return err
		},
	}
	cmd.Flags().BoolVar(&streamEvents, "stream", false, "print each event as it arrives")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON instead of the styled summary")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Masked())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fxagent "+app.Version)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, closeLogs, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	defer closeLogs()
	logger.Infof("config loaded (env=%s, addr=%s)", cfg.App.Env, cfg.HTTP.Addr)
	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return a.Run(cmd.Context())
}

// loadRuntime loads config and routes log output. The returned func closes
// any log files that were opened.
func loadRuntime(opts *rootOptions) (*config.Config, func(), error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := strings.TrimSpace(opts.logLevel); lvl != "" {
		cfg.App.LogLevel = lvl
	}
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	logFile, err := setupLogOutput(cfg.App.LogPath, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		closers = append(closers, logFile)
	}
	llmFile, err := setupLLMLogOutput(cfg.App.LLMLogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open llm log: %w", err)
	}
	if llmFile != nil {
		closers = append(closers, llmFile)
	}
	return cfg, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}, nil
}

func printEvent(w io.Writer, ev stream.Event, asJSON bool) {
	if asJSON {
		raw, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintln(w, string(raw))
		return
	}
	fmt.Fprintln(w, renderEvent(ev))
}
