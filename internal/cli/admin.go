package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/service/admin"
)

func reportsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Review user reports"}

	var (
		status    string
		pageToken string
		limit     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.ListReports(ctx, status, pageToken, limit)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	}
	list.Flags().StringVar(&status, "status", db.ReportPending, "filter by status, empty for all")
	list.Flags().StringVar(&pageToken, "page-token", "", "token from a previous page")
	list.Flags().IntVar(&limit, "limit", 20, "page size")

	var notes string
	review := &cobra.Command{
		Use:   "review <report-id> <dismiss|close|deactivate|delete>",
		Short: "Apply an action to a pending report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.ReviewReport(ctx, id, args[1], notes)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	}
	review.Flags().StringVar(&notes, "notes", "", "admin notes stored on the report")

	cmd.AddCommand(list, review)
	return cmd
}

func premiumCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "premium", Short: "Inspect and grant premium"}

	var ref string
	grant := &cobra.Command{
		Use:   "grant <user-id> <days>",
		Short: "Give a user free premium days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			days, err := strconv.Atoi(args[1])
			if err != nil || days <= 0 {
				return fmt.Errorf("invalid days %q", args[1])
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.GrantPremium(ctx, id, days, ref)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	}
	grant.Flags().StringVar(&ref, "ref", "", "reference stored with the grant")

	status := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's running premium grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.PremiumStatus(ctx, id)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	}

	cmd.AddCommand(grant, status)
	return cmd
}

func syntheticCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "synthetic", Short: "Manage auto-liking profiles"}

	var interval int
	var paused bool
	add := &cobra.Command{
		Use:   "add <profile-id>",
		Short: "Mark a profile as synthetic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				if err := c.MarkSynthetic(ctx, id, interval, !paused); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %d is synthetic\n", id)
				return nil
			})
		},
	}
	add.Flags().IntVar(&interval, "interval", 3600, "seconds between like batches")
	add.Flags().BoolVar(&paused, "paused", false, "create without enabling auto-likes")

	toggle := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <profile-id>",
			Short: use + " auto-likes for a synthetic profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
					if err := c.SetSyntheticActive(ctx, id, active); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "profile %d: active=%t\n", id, active)
					return nil
				})
			},
		}
	}

	cmd.AddCommand(add, toggle("enable", true), toggle("disable", false))
	return cmd
}

func referralCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "referral", Short: "Inspect referral progress"}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats <user-id>",
		Short: "Show a referrer's code and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.ReferralStats(ctx, id)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	})
	return cmd
}

func likesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "likes", Short: "Inspect pending likes"}
	cmd.AddCommand(&cobra.Command{
		Use:   "count <profile-id>",
		Short: "Count likes waiting for a profile's answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				n, err := c.PendingLikeCount(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	})
	return cmd
}

func statsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dataset counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *admin.Client) error {
				out, err := c.Stats(ctx)
				if err != nil {
					return err
				}
				return printProto(cmd, out)
			})
		},
	}
}
