package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-delivery/internal/config"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "food-delivery",
		Short:         "Food delivery order core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path (YAML)")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	cmd.AddCommand(
		orderServiceCmd(load),
		dispatchWorkerCmd(load),
		notificationSubscriberCmd(load),
		migrateCmd(load),
		issueTokenCmd(load),
	)
	return cmd
}

type loader func() (*config.Config, error)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log *logger.Logger, requestID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func orderServiceCmd(load loader) *cobra.Command {
	var (
		port         int
		withDispatch bool
		noBroker     bool
	)

	cmd := &cobra.Command{
		Use:   "order-service",
		Short: "Serve the cart, order, delivery and tracking HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			return runOrderService(cfg, withDispatch, noBroker)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().BoolVar(&withDispatch, "dispatch", false, "Also run the dispatch worker in this process")
	cmd.Flags().BoolVar(&noBroker, "no-broker", false, "Run without RabbitMQ; events are discarded")
	return cmd
}

func dispatchWorkerCmd(load loader) *cobra.Command {
	var (
		workerName string
		prefetch   int
	)

	cmd := &cobra.Command{
		Use:   "dispatch-worker",
		Short: "Open deliveries for confirmed orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runDispatchWorker(cfg, workerName, prefetch)
		},
	}
	cmd.Flags().StringVar(&workerName, "worker-name", "dispatch-worker", "Worker name recorded as the actor of created deliveries")
	cmd.Flags().IntVar(&prefetch, "prefetch", 1, "RabbitMQ prefetch count")
	return cmd
}

func notificationSubscriberCmd(load loader) *cobra.Command {
	var prefetch int

	cmd := &cobra.Command{
		Use:   "notification-subscriber",
		Short: "Print order and delivery status notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runNotificationSubscriber(cfg, prefetch)
		},
	}
	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "RabbitMQ prefetch count")
	return cmd
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

func issueTokenCmd(load loader) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Print a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			token, err := identity.NewGateway(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID carried by the token")
	cmd.Flags().StringVar(&role, "role", identity.RoleCustomer, "Role: customer, restaurant_owner, delivery_partner or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
