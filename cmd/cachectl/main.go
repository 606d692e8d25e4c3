// cachectl inspects and manipulates a file-backed cache directory. It is
// meant for poking at a deployed cache from the shell: reading stats,
// priming entries, and clearing namespaces.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/replaykit/go-cache/cache"
	"github.com/replaykit/go-cache/env"
	"github.com/replaykit/go-cache/logger"
	"github.com/replaykit/go-cache/storage"
)

var (
	dirFlag       string
	namespaceFlag string
	ttlFlag       time.Duration
)

func newRegistry(ctx context.Context) (*cache.Registry, error) {
	store, err := storage.NewFile(dirFlag, 0)
	if err != nil {
		return nil, err
	}
	opts, err := env.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, cache.WithLogger(logger.NewConsole(logger.GetLevelFromEnv())))
	return cache.NewRegistry(ctx, store, opts...), nil
}

func main() {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and manipulate a file-backed cache directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dirFlag, "dir", ".cache", "cache directory")
	root.PersistentFlags().StringVarP(&namespaceFlag, "namespace", "n", "default", "cache namespace")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the cached value for a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			s := reg.Namespace(namespaceFlag)
			found, val, err := cache.Get[json.RawMessage](ctx, s, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q not found in namespace %q", args[0], namespaceFlag)
			}
			fmt.Println(string(val))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <json-value>",
		Short: "Store a JSON value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("value is not valid JSON")
			}
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			s := reg.Namespace(namespaceFlag)
			return s.SetContext(ctx, args[0], json.RawMessage(args[1]), ttlFlag)
		},
	}
	setCmd.Flags().DurationVar(&ttlFlag, "ttl", 0, "time to live (0 uses the default)")

	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			return reg.Namespace(namespaceFlag).DeleteContext(ctx, args[0])
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print stats for one namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			stats, err := reg.Namespace(namespaceFlag).Stats(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	globalStatsCmd := &cobra.Command{
		Use:   "global-stats",
		Short: "Print aggregate stats across all persisted namespaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			stats, err := reg.GlobalStats(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every namespace blob under the cache prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := newRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.CloseAll(ctx)
			return reg.ClearAll(ctx)
		},
	}

	root.AddCommand(getCmd, setCmd, deleteCmd, statsCmd, globalStatsCmd, clearCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
