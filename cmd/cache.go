package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the lookup cache",
}

var cachePurgeAll bool

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired lookup cache entries (or all with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCachePurge(cmd.Context(), cmd.OutOrStdout(), cachePurgeAll)
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheStats(cmd.Context(), cmd.OutOrStdout())
	},
}

func runCachePurge(ctx context.Context, out io.Writer, all bool) error {
	if err := cfg.Validate("cache"); err != nil {
		return err
	}
	c, err := openCache(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return eris.Wrap(err, "cache: open")
	}
	if c == nil {
		return eris.New("cache: store.driver is none, nothing to purge")
	}
	defer c.Close() //nolint:errcheck

	var n int
	if all {
		n, err = c.ClearLookups(ctx)
	} else {
		n, err = c.DeleteExpiredLookups(ctx, time.Duration(cfg.Store.LookupTTLHours)*time.Hour)
	}
	if err != nil {
		return eris.Wrap(err, "cache: purge")
	}

	zap.L().Info("cache: purged", zap.Int("deleted", n), zap.Bool("all", all))
	_, err = fmt.Fprintf(out, "deleted %d cached lookups\n", n)
	return err
}

func runCacheStats(ctx context.Context, out io.Writer) error {
	if err := cfg.Validate("cache"); err != nil {
		return err
	}
	c, err := openCache(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return eris.Wrap(err, "cache: open")
	}
	if c == nil {
		_, err = fmt.Fprintln(out, "lookup cache disabled (store.driver = none)")
		return err
	}
	defer c.Close() //nolint:errcheck

	n, err := c.CountLookups(ctx)
	if err != nil {
		return eris.Wrap(err, "cache: count")
	}
	_, err = fmt.Fprintf(out, "driver: %s\ncached lookups: %d\nttl: %dh\n", cfg.Store.Driver, n, cfg.Store.LookupTTLHours)
	return err
}

func init() {
	cachePurgeCmd.Flags().BoolVar(&cachePurgeAll, "all", false, "delete every entry, not just expired ones")
	cacheCmd.AddCommand(cachePurgeCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
