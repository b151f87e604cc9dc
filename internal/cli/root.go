// Package cli implements the simpledb command-line interface: inspection,
// maintenance and export of the application tables.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/simpledb/internal/paths"
	"github.com/mesh-intelligence/simpledb/internal/simpledb"
	"github.com/mesh-intelligence/simpledb/internal/tables"
	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// storeError maps a database error to an exit code: bad input and missing
// rows are the user's fault, everything else is a system error.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrTableNotFound),
		errors.Is(err, types.ErrInvalidDataRow),
		errors.Is(err, types.ErrUniqueIndex),
		errors.Is(err, types.ErrTriggerFailed):
		return userError("%s: %w", op, err)
	default:
		return sysError("%s: %w", op, err)
	}
}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	config    *viper.Viper
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "simpledb" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "simpledb",
		Short: "Inspect and maintain SimpleDB tables",
		Long: "simpledb opens the application tables stored in a data directory and\n" +
			"lists, reads, deletes, flushes and exports their rows.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newTablesCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newSettingCmd(a))
	root.AddCommand(newFlushCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes root with args and returns the process exit code.
func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Flag and argument errors from cobra.
	return exitUserError
}

// setup resolves the config directory, loads config.yaml and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return sysError("%w", err)
	}
	level := a.flags.logLevel
	if level == "" {
		level = v.GetString(cfgKeyLogLevel)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return userError("%w", err)
	}
	a.configDir = configDir
	a.config = v
	a.logger = logger
	return nil
}

// databaseConfig builds the database options from config.yaml and the
// resolved data directory.
func (a *app) databaseConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError("resolve data dir: %w", err)
	}
	cfg := types.Config{
		DataDir:        dataDir,
		LockTimeout:    a.config.GetDuration(cfgKeyLockTimeout),
		FlushInterval:  a.config.GetDuration(cfgKeyFlushInterval),
		FlushBatchSize: a.config.GetInt(cfgKeyFlushBatchSize),
		SlidingExpiry:  a.config.GetDuration(cfgKeySlidingExpiry),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, userError("%w", err)
	}
	return cfg, nil
}

// openStore opens the database and registers the application tables. The
// caller must call the returned close function.
func (a *app) openStore() (*tables.Store, func() error, error) {
	cfg, err := a.databaseConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := simpledb.Open(cfg, simpledb.WithLogger(a.logger))
	if err != nil {
		return nil, nil, sysError("open database: %w", err)
	}
	store, err := tables.RegisterAll(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, sysError("%w", err)
	}
	return store, db.Close, nil
}

// withStore opens the store, runs fn and closes the store, reporting the
// first error.
func (a *app) withStore(fn func(*tables.Store) error) error {
	store, closeFn, err := a.openStore()
	if err != nil {
		return err
	}
	err = fn(store)
	if cerr := closeFn(); cerr != nil && err == nil {
		err = sysError("close database: %w", cerr)
	}
	return err
}
