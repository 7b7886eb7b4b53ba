package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/memohai/forwardbot/internal/discord"
	"github.com/memohai/forwardbot/internal/logger"
	"github.com/memohai/forwardbot/internal/mirror"
)

func newRoutesCommand(cfgPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the channel mapping discovery would build, without creating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			session, err := discord.NewSession(cfg.Discord.Token)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			discovery := mirror.NewDiscovery(logger.L, discord.NewClient(logger.L, session))
			plan, err := discovery.Plan(ctx,
				mirror.CommunityID(cfg.Discord.SenderGuildID),
				mirror.CommunityID(cfg.Discord.ReceiverGuildID),
			)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "discovery timeout")
	return cmd
}

func printPlan(w io.Writer, plan mirror.DiscoveryPlan) {
	fmt.Fprintf(w, "mapped: %d\n", len(plan.Mapping))
	for _, src := range slices.Sorted(maps.Keys(plan.Mapping)) {
		for _, dst := range plan.Mapping[src] {
			fmt.Fprintf(w, "  %s -> %s\n", src, dst)
		}
	}
	fmt.Fprintf(w, "missing: %d\n", len(plan.Missing))
	for _, ch := range plan.Missing {
		fmt.Fprintf(w, "  %s (%s) would create %q\n", ch.ID, ch.Name, mirror.MirrorName(ch))
	}
}
