package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/kantinpay/kantin/internal/calendar"
	"github.com/kantinpay/kantin/internal/readerclient"
	"github.com/kantinpay/kantin/ledger"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "kantin",
		Short:         "Prepaid card ledger for the canteen kiosk",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log every request")

	logger := func() *slog.Logger {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger(), ledger.ConfigFromEnv())
		},
	}
	root.AddCommand(serve)
	root.RunE = serve.RunE

	root.AddCommand(&cobra.Command{
		Use:   "cards",
		Short: "Print the stored cards as the kiosk would show them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCards(cmd.Context(), logger(), ledger.ConfigFromEnv())
		},
	})

	var yes bool
	wipe := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every stored card",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe without --yes")
			}
			return runWipe(cmd.Context(), logger(), ledger.ConfigFromEnv())
		},
	}
	wipe.Flags().BoolVar(&yes, "yes", false, "confirm that all cards should be deleted")
	root.AddCommand(wipe)

	var server string
	tap := &cobra.Command{
		Use:   "tap UID",
		Short: "Send a card tap to a running server, as the reader would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTap(cmd.Context(), server, args[0])
		},
	}
	tap.Flags().StringVar(&server, "server", "http://localhost:3000", "ledger base URL")
	root.AddCommand(tap)

	return root
}

func runServe(logger *slog.Logger, config *ledger.Config) error {
	app := ledger.NewApp(logger, config)
	if err := app.Start(); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Shutdown()
	return nil
}

// openRegistry loads the configured store for the offline commands.
func openRegistry(ctx context.Context, logger *slog.Logger, config *ledger.Config) (*ledger.Registry, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	loc, err := calendar.LoadLocation(config.Timezone)
	if err != nil {
		return nil, nil, err
	}
	st, err := ledger.OpenStore(ctx, config, logger)
	if err != nil {
		return nil, nil, err
	}
	registry := ledger.NewRegistry(st, ledger.Clock{Location: loc}, logger, nil)
	if err := registry.Load(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return registry, func() { st.Close() }, nil
}

func runCards(ctx context.Context, logger *slog.Logger, config *ledger.Config) error {
	registry, done, err := openRegistry(ctx, logger, config)
	if err != nil {
		return err
	}
	defer done()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tNAME\tBALANCE\tALLOTMENT\tLAST RESET\tRESET DUE")
	for _, c := range registry.List() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%v\n", c.UID, c.Name, c.Balance, c.DailyAllotment, c.LastResetDate, c.NeedsReset)
	}
	return tw.Flush()
}

func runWipe(ctx context.Context, logger *slog.Logger, config *ledger.Config) error {
	registry, done, err := openRegistry(ctx, logger, config)
	if err != nil {
		return err
	}
	defer done()

	return registry.Wipe(ctx)
}

func runTap(ctx context.Context, server, uid string) error {
	reply, err := readerclient.New(server, nil).Tap(ctx, uid)
	if err != nil {
		return err
	}
	if reply.Card != nil {
		fmt.Printf("%s: %s (%s) balance %d\n", reply.Message, reply.Card.Name, reply.Card.UID, reply.Card.Balance)
	} else {
		fmt.Printf("%s: %s\n", reply.Message, uid)
	}
	if reply.Warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", reply.Warning)
	}
	return nil
}
