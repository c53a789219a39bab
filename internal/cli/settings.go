package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

func init() {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored restoration settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings as JSON",
		RunE:  runSettingsShow,
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Change stored settings",
		Long:  "Changes the settings a server picks up on its next start. Out-of-range values are clamped.",
		RunE:  runSettingsSet,
	}
	set.Flags().Bool("addiction", true, "Enable the exit addiction")
	set.Flags().Int("unage-rate", 0, "Ticks of age removed per tick (10-100)")
	set.Flags().Int("fuel-rate", 0, "Fuel burned per year (1-60)")

	settingsCmd.AddCommand(show, set)
	RootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	cfg := serverConfig()
	store, err := openStore(cmd.Context(), cfg, logger.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	s, err := loadSettings(cmd.Context(), store, cfg.GameID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	b, _ := json.MarshalIndent(s, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg := serverConfig()
	store, err := openStore(cmd.Context(), cfg, logger.Discard())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	s, err := loadSettings(cmd.Context(), store, cfg.GameID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if cmd.Flags().Changed("addiction") {
		s.AddictionEnabled, _ = cmd.Flags().GetBool("addiction")
	}
	if cmd.Flags().Changed("unage-rate") {
		s.UnageRatePerStep, _ = cmd.Flags().GetInt("unage-rate")
	}
	if cmd.Flags().Changed("fuel-rate") {
		s.FuelRatePerYear, _ = cmd.Flags().GetInt("fuel-rate")
	}

	applied, adjusted := s.Clamped()
	for _, note := range adjusted {
		fmt.Fprintf(cmd.ErrOrStderr(), "adjusted: %s\n", note)
	}
	if err := store.SaveSettings(cmd.Context(), cfg.GameID, toSettingsRecord(applied)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	b, _ := json.MarshalIndent(applied, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
