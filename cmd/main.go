package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/victornm/quotient/internal/config"
	"github.com/victornm/quotient/internal/logging"
	"github.com/victornm/quotient/internal/server"
)

const releaseVersion = "0.1.0"

type flags struct {
	configPath string
	verbose    bool
}

func main() {
	cobra.CheckErr(newCmd(&flags{}).Execute())
}

func newCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quotient",
		Short:         "Quote quizzes and leaderboards for groups of friends.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&f.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to a config file (env: CONFIG_PATH)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(ctx context.Context, f *flags) error {
	c, err := loadConfig(f)
	if err != nil {
		return err
	}

	slog.SetDefault(logging.New(c.Logging()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	s, err := server.Init(ctx, c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		return nil
	case err := <-errc:
		s.Shutdown()
		return err
	}
}

func loadConfig(f *flags) (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(f.configPath, &c, config.WithEnvPrefix("QUOTIENT")); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	if f.verbose {
		c.Log.Level = "debug"
	}

	return c, nil
}
