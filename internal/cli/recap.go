package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recap <occupant-id>",
		Short: "Rebuild an occupant's treatment history from stored events",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecap,
	}
	cmd.Flags().Int("since-day", 0, "Only print events from this game day on")

	RootCmd.AddCommand(cmd)
}

func runRecap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := serverConfig()
	sinceDay, _ := cmd.Flags().GetInt("since-day")

	store, err := openStore(ctx, cfg, logger.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	r := storage.NewReconstructor(store)
	var out interface{}
	if sinceDay > 0 {
		out, err = r.GenerateRecap(ctx, cfg.GameID, args[0], sinceDay)
	} else {
		out, err = r.BuildRecap(ctx, cfg.GameID, args[0])
	}
	if err != nil {
		return fmt.Errorf("recap: %w", err)
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
