// Package cli provides the briefgate command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/briefgate/internal/config"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool

	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	closers []func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "briefgate",
		Short: "Evidence-gated pre-meeting intelligence briefs",
		Long: `briefgate prepares a brief on the person or company you are about to meet.

Every claim in a brief is tagged with its evidence class. Public research is
gated: a brief is produced only when the visibility sweep ran, at least one
verified public source was found, and the drafted claims are covered by
evidence. Otherwise a failure report explains what is missing.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.briefgate/config.yaml)")
	root.PersistentFlags().String("db", "", "database path (overrides db_path)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	_ = a.v.BindPFlag("db_path", root.PersistentFlags().Lookup("db"))

	root.AddCommand(
		newBriefCmd(a),
		newResolveCmd(a),
		newIngestCmd(a),
		newLogsCmd(a),
		newReplayCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "briefgate v%s\n", Version)
			return err
		},
	}
}

// #region lifecycle
// init loads configuration and sets up logging. Commands that need the
// database open it through a.openStore.
func (a *app) init(cmd *cobra.Command) error {
	if skipsConfig(cmd) {
		a.cfg = config.DefaultConfig()
		a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
		return nil
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Level()
	if a.verbose {
		level = slog.LevelDebug
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, level)
	a.logger = logger
	a.closers = append(a.closers, closeLog)
	return nil
}

// skipsConfig reports whether cmd must run without reading a config file:
// version, and config init, which creates the file.
func skipsConfig(cmd *cobra.Command) bool {
	switch {
	case cmd.Name() == "version":
		return true
	case cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config":
		return true
	}
	return false
}

func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewStore(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	a.store = nil
	return first
}

// #endregion lifecycle

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
