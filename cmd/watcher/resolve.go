package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mempoolScope/internal/registry"
)

func runResolve(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	for _, arg := range args {
		address, err := registry.ParseAddress(arg)
		if err != nil {
			return err
		}
		iface, err := cache.Resolve(ctx, address)
		if err != nil {
			return err
		}
		logger.Info("interface resolved",
			zap.String("address", address.Hex()),
			zap.String("path", cache.Store().Path(address)),
			zap.Int("methods", len(iface.ABI.Methods)),
		)

		selectors := iface.Selectors()
		fmt.Fprintf(out, "%s %s\n", address.Hex(), cache.Store().Path(address))
		for _, sig := range iface.Signatures() {
			sel := selectors[sig]
			fmt.Fprintf(out, "  %s %s\n", hexutil.Encode(sel[:]), sig)
		}
	}
	return nil
}
