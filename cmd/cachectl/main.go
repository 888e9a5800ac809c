package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags override the environment for a single invocation.
type globalFlags struct {
	adapter   string
	namespace string
	redisURL  string
	logLevel  string
	envFile   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "cachectl",
		Short: "Inspect and serve a cachekit cache",
		Long: "cachectl reads its settings from the environment (CACHE_ADAPTER, CACHE_NAMESPACE,\n" +
			"REDIS_URL, ...) and an optional .env file, and operates on the configured cache.",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.adapter, "adapter", "", "Cache adapter: auto, redis or memory (overrides CACHE_ADAPTER)")
	pf.StringVar(&flags.namespace, "namespace", "", "Key namespace (overrides CACHE_NAMESPACE)")
	pf.StringVar(&flags.redisURL, "redis-url", "", "Redis URL (overrides REDIS_URL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	pf.StringVar(&flags.envFile, "env-file", "", "Env file to read instead of .env")

	rootCmd.AddCommand(
		keyCmd(),
		getCmd(flags),
		setCmd(flags),
		delCmd(flags),
		ttlCmd(flags),
		purgeCmd(flags),
		policyCmd(flags),
		serveCmd(flags),
	)

	return rootCmd
}
