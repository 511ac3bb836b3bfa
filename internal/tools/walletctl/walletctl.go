// Package walletctl implements the wallet operator CLI: provisioning the
// collaborator rows the wallet core reads and probing a running server.
package walletctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	platformgrpc "github.com/louisbranch/passwallet/internal/platform/grpc"
	"github.com/louisbranch/passwallet/internal/platform/id"
	"github.com/louisbranch/passwallet/internal/platform/timeouts"
	server "github.com/louisbranch/passwallet/internal/services/wallet/app"
	"github.com/louisbranch/passwallet/internal/services/wallet/merchant"
	"github.com/louisbranch/passwallet/internal/services/wallet/payment"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage"
	"github.com/louisbranch/passwallet/internal/services/wallet/storage/sqlstore"
)

// OpenStore opens the wallet database the commands operate on.
type OpenStore func(ctx context.Context) (*sqlstore.Store, error)

// OpenFromEnv opens the store described by the PASSWALLET_DB_* variables.
func OpenFromEnv(ctx context.Context) (*sqlstore.Store, error) {
	cfg, err := sqlstore.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, cfg)
}

// NewRootCommand builds the walletctl command tree.
func NewRootCommand(open OpenStore) *cobra.Command {
	if open == nil {
		open = OpenFromEnv
	}
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operate a passwallet deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(createUserCmd(open))
	root.AddCommand(createCardCmd(open))
	root.AddCommand(createMerchantCmd(open))
	root.AddCommand(prunePaymentsCmd(open))
	root.AddCommand(healthCmd())
	return root
}

func withStore(cmd *cobra.Command, open OpenStore, fn func(context.Context, *sqlstore.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

func createUserCmd(open OpenStore) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a wallet user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			userID, err := id.NewID()
			if err != nil {
				return err
			}
			return withStore(cmd, open, func(ctx context.Context, store *sqlstore.Store) error {
				user := storage.User{
					ID:          userID,
					Email:       email,
					DisplayName: strings.TrimSpace(name),
					CreatedAt:   time.Now().UTC(),
				}
				if err := store.PutUser(ctx, user); err != nil {
					return fmt.Errorf("put user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user_id=%s\n", user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email address")
	cmd.Flags().StringVar(&name, "name", "", "User display name")
	return cmd
}

func createCardCmd(open OpenStore) *cobra.Command {
	var userID, token, network, last4 string
	cmd := &cobra.Command{
		Use:   "create-card",
		Short: "Attach a tokenized card to a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			token = strings.TrimSpace(token)
			if userID == "" || token == "" {
				return fmt.Errorf("--user and --wallet-card-token are required")
			}
			if len(last4) != 4 || strings.Trim(last4, "0123456789") != "" {
				return fmt.Errorf("--last4 must be four digits")
			}
			cardID, err := id.NewPrefixedID("card_")
			if err != nil {
				return err
			}
			return withStore(cmd, open, func(ctx context.Context, store *sqlstore.Store) error {
				if _, err := store.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("get user %s: %w", userID, err)
				}
				card := storage.Card{
					ID:              cardID,
					UserID:          userID,
					WalletCardToken: token,
					Network:         strings.ToLower(strings.TrimSpace(network)),
					Last4:           last4,
					CreatedAt:       time.Now().UTC(),
				}
				if err := store.PutCard(ctx, card); err != nil {
					return fmt.Errorf("put card: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "card_id=%s\n", card.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owning user id")
	cmd.Flags().StringVar(&token, "wallet-card-token", "", "Issuer-side card token")
	cmd.Flags().StringVar(&network, "network", "visa", "Card network")
	cmd.Flags().StringVar(&last4, "last4", "", "Last four digits of the card number")
	return cmd
}

func createMerchantCmd(open OpenStore) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create-merchant",
		Short: "Provision a merchant and print its API key",
		Long:  "Provision a merchant and print its API key. The key is shown once and cannot be recovered.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, open, func(ctx context.Context, store *sqlstore.Store) error {
				m, key, err := merchant.NewService(store).Provision(ctx, name)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "merchant_id=%s\n", m.ID)
				fmt.Fprintf(out, "api_key=%s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Merchant display name")
	return cmd
}

func prunePaymentsCmd(open OpenStore) *cobra.Command {
	return &cobra.Command{
		Use:   "prune-payments",
		Short: "Delete terminal payment requests past their retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := payment.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			return withStore(cmd, open, func(ctx context.Context, store *sqlstore.Store) error {
				svc, err := payment.NewService(cfg, store)
				if err != nil {
					return err
				}
				removed, err := svc.Prune(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", removed)
				return nil
			})
		},
	}
}

func healthCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Wait until a wallet server reports SERVING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logf := func(format string, args ...any) {
				fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
			}
			if err := platformgrpc.Probe(cmd.Context(), addr, server.HealthService, timeout, logf); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SERVING")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8091", "Wallet gRPC health address")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*timeouts.GRPCDial, "How long to wait for SERVING")
	return cmd
}
