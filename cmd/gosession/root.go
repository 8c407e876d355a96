package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

type cliOptions struct {
	configPath  string
	baseURL     string
	storage     string
	storageFile string
	noColor     bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "gosession",
		Short: "Token session client",
		Long: `Log in to an authentication backend and make authenticated requests.

Configuration is read from the YAML file given with --config and from GOSESSION_*
environment variables. The in-memory storage driver cannot outlive a single command,
so the CLI stores tokens in a file unless redis is configured.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.baseURL, "base-url", "u", "", "backend base URL (overrides config)")
	flags.StringVar(&opts.storage, "storage", "", "storage driver: file or redis (overrides config)")
	flags.StringVar(&opts.storageFile, "storage-file", "", "token file for the file driver")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newLoginCmd(opts),
		newVerifyCmd(opts),
		newStatusCmd(opts),
		newLogoutCmd(opts),
		newRefreshCmd(opts),
		newRequestCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// loadConfig reads file and environment, then applies flag overrides.
func (opts *cliOptions) loadConfig() (goSession.Config, error) {
	var cfg goSession.Config
	var err error
	if opts.configPath == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(opts.configPath, &cfg)
	}
	if err != nil {
		return goSession.Config{}, fmt.Errorf("load config: %w", err)
	}

	if opts.baseURL != "" {
		cfg.Backend.BaseURL = opts.baseURL
	}
	if opts.storage != "" {
		cfg.Storage.Driver = opts.storage
	}
	if opts.storageFile != "" {
		cfg.Storage.FilePath = opts.storageFile
	}
	if cfg.Storage.Driver == goSession.StorageMemory {
		cfg.Storage.Driver = goSession.StorageFile
	}
	if cfg.Storage.Driver == goSession.StorageFile && cfg.Storage.FilePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return goSession.Config{}, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.Storage.FilePath = filepath.Join(dir, "gosession", "session.yaml")
	}

	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, err
	}
	return cfg, nil
}

// open builds and initializes an orchestrator. Callers must Close it.
func (opts *cliOptions) open(cmd *cobra.Command, tune ...func(*goSession.Config)) (*goSession.Orchestrator, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	for _, fn := range tune {
		fn(&cfg)
	}
	logger, err := goSession.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	o, err := goSession.New().WithConfig(cfg).WithLogger(logger).Build()
	if err != nil {
		return nil, err
	}
	if err := o.Init(cmd.Context()); err != nil && !errors.Is(err, goSession.ErrSessionExpired) {
		_ = o.Close()
		return nil, err
	}
	return o, nil
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

func printState(w io.Writer, s goSession.AuthState) {
	switch {
	case s.IsAuthenticated && s.User != nil:
		okColor.Fprint(w, "authenticated")
		fmt.Fprintf(w, " as %s (%s, id %d)\n", s.User.Email, s.User.Role, s.User.ID)
	case s.IsAuthenticated:
		okColor.Fprintln(w, "authenticated")
	case s.TwoFactorRequired:
		warnColor.Fprintln(w, "verification code required")
	default:
		warnColor.Fprintln(w, "not logged in")
	}
	if s.Error != "" {
		errColor.Fprintf(w, "error: %s\n", s.Error)
	}
}
