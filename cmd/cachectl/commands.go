package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/go-cachekit/pkg/cache"
	"github.com/Sternrassler/go-cachekit/pkg/config"
	"github.com/Sternrassler/go-cachekit/pkg/logging"
	"github.com/Sternrassler/go-cachekit/pkg/policy"
)

var errNotFound = errors.New("key not found")

// loadConfig reads the environment and applies the command-line overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.envFile != "" {
		cfg, err = config.LoadFiles(flags.envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.adapter != "" {
		kind, err := cache.ParseAdapterKind(flags.adapter)
		if err != nil {
			return nil, err
		}
		cfg.Adapter = kind
	}
	if flags.namespace != "" {
		cfg.Namespace = flags.namespace
	}
	if flags.redisURL != "" {
		cfg.RedisURL = flags.redisURL
	}
	if flags.logLevel != "" {
		level, err := logging.ParseLevel(flags.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging())
	return cfg, nil
}

// openStore builds the configured cache.
func openStore(ctx context.Context, cfg *config.Config) (*cache.Store, error) {
	opts := cfg.CacheOptions()
	logger := logging.NewLogger("cache")
	opts.Logger = &logger
	return cache.NewClient(ctx, opts)
}

// commandContext returns the context cobra was executed with.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withStore loads the configuration, opens the store and runs fn.
func withStore(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, store *cache.Store, cfg *config.Config) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store, cfg)
}

func keyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key BASE [SEGMENT...]",
		Short: "Print the cache key built from a base and segments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments := make([]any, 0, len(args)-1)
			for _, s := range args[1:] {
				segments = append(segments, s)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cache.BuildKey(args[0], segments...))
			return nil
		},
	}
}

func getCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the JSON value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, store *cache.Store, _ *config.Config) error {
				var raw json.RawMessage
				if !store.Get(ctx, args[0], &raw) {
					return fmt.Errorf("%s: %w", args[0], errNotFound)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			})
		},
	}
}

func setCmd(flags *globalFlags) *cobra.Command {
	var (
		ttl     int
		useCase string
	)

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE under KEY",
		Long: "Store VALUE under KEY. VALUE is stored as JSON when it parses as JSON and as a\n" +
			"JSON string otherwise. Without --ttl the TTL comes from the policy (--use-case or\n" +
			"the default); --ttl 0 stores the value without expiry.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, store *cache.Store, cfg *config.Config) error {
				opts := cache.WithTTL(ttl)
				if !cmd.Flags().Changed("ttl") {
					p, err := cfg.Policy()
					if err != nil {
						return err
					}
					opts = p.Get(useCase).SetOptions()
				}

				if err := store.Set(ctx, args[0], jsonValue(args[1]), opts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK (ttl=%s)\n", formatTTL(opts.TTLSeconds))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&ttl, "ttl", 0, "TTL in seconds (0: no expiry)")
	cmd.Flags().StringVar(&useCase, "use-case", "", "Policy use case that selects the TTL")
	cmd.MarkFlagsMutuallyExclusive("ttl", "use-case")

	return cmd
}

func delCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "del KEY",
		Short: "Delete KEY and print the number of removed keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, store *cache.Store, _ *config.Config) error {
				n, err := store.Del(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func ttlCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl KEY",
		Short: "Print the remaining TTL of KEY in seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, flags, func(ctx context.Context, store *cache.Store, _ *config.Config) error {
				seconds, ok := store.TTL(ctx, args[0])
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "none")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), seconds)
				return nil
			})
		},
	}
}

func purgeCmd(flags *globalFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "purge [PREFIX]",
		Short: "Delete every key starting with PREFIX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			if prefix == "" && !all {
				return errors.New("refusing to purge the whole namespace without --all")
			}

			return withStore(cmd, flags, func(ctx context.Context, store *cache.Store, _ *config.Config) error {
				n, err := store.DeleteByPrefix(ctx, prefix)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Allow an empty prefix (every key in the namespace)")
	return cmd
}

func policyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "policy [USE_CASE]",
		Short: "Print the TTL policy, or the TTL of one use case",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			p, err := cfg.Policy()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				fmt.Fprintln(out, p.Get(args[0]).TTLSeconds)
				return nil
			}
			return printPolicy(cmd, p)
		},
	}
}

func printPolicy(cmd *cobra.Command, p *policy.Policy) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USE CASE\tTTL SECONDS")
	fmt.Fprintf(w, "(default)\t%d\n", p.DefaultTTL())
	overrides := p.Overrides()
	for _, name := range p.UseCases() {
		fmt.Fprintf(w, "%s\t%d\n", name, overrides[name])
	}
	return w.Flush()
}

// jsonValue keeps valid JSON as is and wraps anything else as a JSON string.
func jsonValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return s
}

func formatTTL(seconds int) string {
	if seconds <= 0 {
		return "none"
	}
	return strconv.Itoa(seconds) + "s"
}
