package main

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the structuring cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached structuring result",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := startContainer(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Engine().ClearCache(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{"cleared": n})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cache backend and entry count",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := startContainer(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		entries, err := c.Cache().Len(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]any{
			"backend": c.Config().Structuring.Cache.Backend,
			"entries": entries,
			"ttl":     c.Config().Structuring.Cache.TTL.String(),
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
}
