// Package cli implements matchctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/server"
	"github.com/oggyb/matchbot/internal/service/admin"
)

type rootOptions struct {
	addr    string
	token   string
	timeout time.Duration
}

// NewRootCmd builds the matchctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operate a matchbot deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "admin gRPC address (default GRPC_HOST:GRPC_PORT)")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ADMIN_TOKEN"), "admin bearer token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-call timeout")

	root.AddCommand(
		seedCmd(),
		hashTokenCmd(),
		reportsCmd(opts),
		premiumCmd(opts),
		syntheticCmd(opts),
		referralCmd(opts),
		likesCmd(opts),
		statsCmd(opts),
	)
	return root
}

// Execute runs matchctl and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seedCmd() *cobra.Command {
	var (
		file  string
		demo  int
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load profiles and likes into the database",
		Long:  "Loads a YAML seed file, or a random demo set with --demo. Existing rows are upserted by Telegram ID.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var set *db.SeedSet
			switch {
			case file != "":
				var err error
				if set, err = db.LoadSeed(file); err != nil {
					return err
				}
			case demo > 0:
				set = db.DemoSeed(rand.New(rand.NewSource(time.Now().UnixNano())), demo)
			default:
				return fmt.Errorf("either --file or --demo is required")
			}

			cfg := config.New()
			logger.InitFromConfig(cfg)
			database, err := db.NewDB(cfg)
			if err != nil {
				return err
			}
			res, err := db.Seed(database, set, reset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d profiles, %d likes, %d matches\n", res.Profiles, res.Likes, res.Matches)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	cmd.Flags().IntVar(&demo, "demo", 0, "generate N random demo profiles instead of reading a file")
	cmd.Flags().BoolVar(&reset, "reset", false, "empty every table first")
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the ADMIN_TOKEN_HASH value for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := server.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

// withClient dials the admin API and runs fn with a bounded context.
func withClient(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, c *admin.Client) error) error {
	addr := opts.addr
	if addr == "" {
		cfg := config.New()
		addr = cfg.GRPC.Host + ":" + cfg.GRPC.Port
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(admin.BearerToken(opts.token)))
	}
	cc, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	return fn(ctx, admin.NewClient(cc))
}

func printProto(cmd *cobra.Command, m proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
