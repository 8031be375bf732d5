package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cosmonauts/whalewatching/pkg/console"
	"github.com/cosmonauts/whalewatching/pkg/holders"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

func newHoldersCommand(g *globalFlags) *cobra.Command {
	var (
		minter string
		supply int
		name   string
		top    int
	)
	cmd := &cobra.Command{
		Use:   "holders",
		Short: "Resolve one collection and print holder counts",
		Example: `  whalewatching holders --minter stars1fqsqgjlurc7z2sntulfa0f9alk2ke5npyxrze9deq7lujas7m3ss7vq2fe --supply 1111`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if supply <= 0 {
				return fmt.Errorf("--supply must be positive")
			}
			log, err := g.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, lim := newClient(cfg, log)
			if lim != nil {
				defer lim.Close()
			}
			r := holders.NewResolver(client, holders.Options{
				Concurrency:   cfg.Resolve.Concurrency,
				AddressPrefix: cfg.AddressPrefix,
			}, log.Named("holders"))

			col := types.Collection{Name: name, Minter: minter, Supply: supply}
			if col.Name == "" {
				col.Name = minter
			}
			out := console.New(cmd.OutOrStdout())
			out.Start(col)
			res, err := r.ResolveCollection(ctx, col)
			sum := types.CollectionSummary{Name: col.Name, Minter: minter, Supply: supply}
			var counts types.HolderCount
			if err == nil {
				counts = holders.Aggregate(res.Owners)
				sum.Contract, sum.Minted, sum.Holders = res.Contract, len(res.Owners), len(counts)
			}
			out.Done(col, sum, err)
			if err != nil {
				return err
			}
			log.Debug("collection resolved", zap.String("contract", res.Contract), zap.Int("minted", sum.Minted))
			out.Holders(col.Name, counts, top)
			return nil
		},
	}
	cmd.Flags().StringVar(&minter, "minter", "", "Minter contract address")
	cmd.Flags().IntVar(&supply, "supply", 0, "Highest token id to query")
	cmd.Flags().StringVar(&name, "name", "", "Collection name for display")
	cmd.Flags().IntVar(&top, "top", 20, "Holders to print, 0 for all")
	_ = cmd.MarkFlagRequired("minter")
	_ = cmd.MarkFlagRequired("supply")
	return cmd
}
