package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/archive"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

func init() {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Export or import full save files",
		Long:  "Saves go to a local directory or to S3 with --to s3://bucket/prefix. S3 credentials come from the CRYO_ARCHIVE_S3_* variables or the default AWS chain.",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the stored game state to an archive",
		RunE:  runArchiveExport,
	}
	export.Flags().String("to", "archive", "Directory or s3://bucket/prefix")

	importCmd := &cobra.Command{
		Use:   "import [key]",
		Short: "Replace the stored game state with an archived save",
		Long:  "Loads the given save key, or the latest save of the game when no key is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runArchiveImport,
	}
	importCmd.Flags().String("from", "archive", "Directory or s3://bucket/prefix")

	archiveCmd.AddCommand(export, importCmd)
	RootCmd.AddCommand(archiveCmd)
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := serverConfig()
	target, _ := cmd.Flags().GetString("to")

	store, err := openStore(ctx, cfg, logger.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	snap, err := store.LoadSnapshot(ctx, cfg.GameID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("export: game %s has no saved state", cfg.GameID)
	}
	settings, err := loadSettings(ctx, store, cfg.GameID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	blobs, err := archive.OpenTarget(ctx, target)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	key, err := archive.NewExporter(blobs, logger.NewLogger()).Export(ctx, cfg.GameID, fromSnapshot(snap, settings))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func runArchiveImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := serverConfig()
	source, _ := cmd.Flags().GetString("from")

	blobs, err := archive.OpenTarget(ctx, source)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	exporter := archive.NewExporter(blobs, logger.NewLogger())

	key := ""
	if len(args) == 1 {
		key = args[0]
	} else if key, err = exporter.Latest(ctx, cfg.GameID); err != nil {
		return fmt.Errorf("find latest save: %w", err)
	}
	save, err := exporter.Import(ctx, key)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	store, err := openStore(ctx, cfg, logger.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// Validate references before overwriting the stored state.
	if err := engine.NewEngine(events.NewEventLog(nil), logger.Discard(), nil, engine.Options{}).Restore(ctx, save.State); err != nil {
		return fmt.Errorf("invalid save: %w", err)
	}
	if err := store.SaveSnapshot(ctx, toSnapshot(cfg.GameID, save.State)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if save.State.Settings != (config.Settings{}) {
		settings, _ := save.State.Settings.Clamped()
		if err := store.SaveSettings(ctx, cfg.GameID, toSettingsRecord(settings)); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s at tick %d\n", key, save.State.Tick)
	return nil
}
