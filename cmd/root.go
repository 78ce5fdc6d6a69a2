package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/truck-load-watch/internal/config"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "tlw",
		Short:         "Truck load watcher: accept matching market loads automatically",
		Long:          "tlw (truck-load-watch) polls the carrier market, accepts offers that match the configured rules up to the daily threshold, records them and sends a notification.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ~/.truck-load-watch/config.toml)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before the environment (default ./.env when present)")
	flags.String("store", "", "store DSN (sqlite://, toml://, postgres://, mongodb://)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	bindFlag(opts.v, config.KeyStoreDSN, rootCmd, "store")
	bindFlag(opts.v, config.KeyLogLevel, rootCmd, "log-level")
	bindFlag(opts.v, config.KeyLogFormat, rootCmd, "log-format")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(opts),
		newOnceCmd(opts),
		newAcceptedCmd(opts),
	)

	return rootCmd
}

// bindFlag ties a persistent flag to a config key. An unset flag leaves
// the file and environment values in place.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}
