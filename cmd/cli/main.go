// Command cli inspects and edits stored guild state without running the bot.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"aoi/internal/config"
	"aoi/internal/storage"
	"aoi/internal/version"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root pre-run has opened
// the store.
type app struct {
	envFile string
	driver  string
	path    string
	dsn     string

	cfg   *config.Config
	store storage.Store
	out   io.Writer
}

func main() {
	if err := execute(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one CLI invocation and closes the store it opened, if any,
// whether or not the command succeeded.
func execute(ctx context.Context, out, errOut io.Writer, args []string) error {
	root, a := newRootCmd(out)
	root.SetErr(errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:          "aoi-cli",
		Short:        "Administration tool for Aoi's stored guild state",
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&a.driver, "driver", "", "storage driver, overrides STORAGE_DRIVER")
	pf.StringVar(&a.path, "path", "", "storage file, overrides STORAGE_PATH")
	pf.StringVar(&a.dsn, "dsn", "", "postgres DSN, overrides DATABASE_URL")

	root.AddCommand(a.rulesCmd(), a.prefixCmd(), a.historyCmd())
	return root, a
}

func (a *app) open(ctx context.Context) error {
	cfg, _, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.driver != "" {
		cfg.StorageDriver = a.driver
	}
	if a.path != "" {
		cfg.StoragePath = a.path
	}
	if a.dsn != "" {
		cfg.DatabaseURL = a.dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.StorageDriver,
		Path:          cfg.StoragePath,
		DSN:           cfg.DatabaseURL,
		DefaultPrefix: cfg.DefaultPrefix,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	a.cfg = cfg
	a.store = store
	return nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
