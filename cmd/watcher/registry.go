package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func runRegistry(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := newInterfaceCache(cfg, logger)
	if err != nil {
		return err
	}
	classifier, reg, err := newClassifier(ctx, cfg, cache, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, router := range reg.Routers() {
		fmt.Fprintf(out, "%s %s v%d\n", router.Address.Hex(), router.Name, router.Version)
		for _, factory := range router.Factories {
			fmt.Fprintf(out, "  factory %s %s v%d\n", factory.Address.Hex(), factory.Name, factory.Version)
		}
		watched := classifier.Watched(router.Address)
		if len(watched) == 0 {
			fmt.Fprintln(out, "  no watched operations")
		}
		for _, op := range watched {
			fmt.Fprintf(out, "  watch %s %s %s\n", op.SelectorHex(), op.Signature, op.Direction)
		}
	}
	return nil
}
