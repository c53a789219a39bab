package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

const simChamberID = "SIM"

func init() {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one chamber offline and print what happens",
		Long: `Places a single occupant into a fresh chamber, advances the clock without
waiting and prints the chamber inspection text plus every event. Nothing is saved.

Afflictions use "label" or "label:severity", e.g. --affliction cataract --affliction "alzheimer's:0.6".`,
		RunE: runSimulate,
	}

	cmd.Flags().Int("age-years", 60, "Biological age of the occupant")
	cmd.Flags().StringArrayP("affliction", "a", nil, "Affliction to add (repeatable)")
	cmd.Flags().Int64("ticks", gametime.TicksPerDay, "Ticks to simulate")
	cmd.Flags().Int64("report-every", 0, "Print the inspection text every N ticks (0 = only at the end)")
	cmd.Flags().Float64("fuel", 50, "Initial fuel")
	cmd.Flags().Int("unage-rate", 0, "Override the unage rate per step")
	cmd.Flags().Int("fuel-rate", 0, "Override the fuel burned per year")
	cmd.Flags().Bool("no-addiction", false, "Disable the exit addiction")
	cmd.Flags().Bool("eject", true, "Eject the occupant at the end")
	cmd.Flags().Bool("json", false, "Print events as JSON lines")

	RootCmd.AddCommand(cmd)
}

// simulation holds the parsed simulate flags.
type simulation struct {
	AgeYears    int
	Afflictions []string
	Ticks       int64
	ReportEvery int64
	Fuel        float64
	Settings    config.Settings
	Eject       bool
	JSON        bool
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sim := simulation{Settings: config.DefaultSettings()}
	sim.AgeYears, _ = cmd.Flags().GetInt("age-years")
	sim.Afflictions, _ = cmd.Flags().GetStringArray("affliction")
	sim.Ticks, _ = cmd.Flags().GetInt64("ticks")
	sim.ReportEvery, _ = cmd.Flags().GetInt64("report-every")
	sim.Fuel, _ = cmd.Flags().GetFloat64("fuel")
	sim.Eject, _ = cmd.Flags().GetBool("eject")
	sim.JSON, _ = cmd.Flags().GetBool("json")
	if v, _ := cmd.Flags().GetInt("unage-rate"); v != 0 {
		sim.Settings.UnageRatePerStep = v
	}
	if v, _ := cmd.Flags().GetInt("fuel-rate"); v != 0 {
		sim.Settings.FuelRatePerYear = v
	}
	if off, _ := cmd.Flags().GetBool("no-addiction"); off {
		sim.Settings.AddictionEnabled = false
	}

	if err := runSimulation(cmd.Context(), cmd.OutOrStdout(), sim); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	return nil
}

func runSimulation(ctx context.Context, out io.Writer, sim simulation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	settings, adjusted := sim.Settings.Clamped()
	for _, note := range adjusted {
		fmt.Fprintf(out, "setting adjusted: %s\n", note)
	}

	o := occupant.NewOccupant("SUBJECT", "Subject", gametime.Years(sim.AgeYears))
	for _, raw := range sim.Afflictions {
		label, severity, err := occupant.ParseAffliction(raw)
		if err != nil {
			return err
		}
		o.AddAffliction(label, severity)
	}

	eventLog := events.NewEventLog(nil)
	eng := engine.NewEngine(eventLog, logger.Discard(), config.NewStore(settings), engine.Options{})
	if err := eng.RegisterChamber(ctx, engine.NewChamber(simChamberID, sim.Fuel)); err != nil {
		return err
	}
	if err := eng.RegisterOccupant(ctx, o); err != nil {
		return err
	}
	if err := eng.Accept(ctx, simChamberID, o.ID); err != nil {
		return err
	}
	printed := eventLog.Len()

	report := func() error {
		st, err := eng.Status(ctx, simChamberID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "--- tick %s (day %d) ---\n%s\n", humanize.Comma(st.Tick), gametime.ClockAt(st.Tick).GameDay, st.Inspect)
		return nil
	}
	flush := func() error {
		for _, e := range eventLog.Since(printed) {
			if err := printEvent(out, e, sim.JSON); err != nil {
				return err
			}
			printed++
		}
		return nil
	}

	if err := report(); err != nil {
		return err
	}
	step := sim.Ticks
	if sim.ReportEvery > 0 && sim.ReportEvery < step {
		step = sim.ReportEvery
	}
	for done := int64(0); done < sim.Ticks; {
		n := step
		if remaining := sim.Ticks - done; remaining < n {
			n = remaining
		}
		eng.Advance(int(n))
		done += n
		if err := flush(); err != nil {
			return err
		}
		if err := report(); err != nil {
			return err
		}
	}

	if sim.Eject {
		ejected, err := eng.Eject(ctx, simChamberID)
		if err != nil {
			return err
		}
		if err := flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Ejected. %s\n", gametime.TicksToPeriod(ejected.BioAgeTicks).AgeString())
		for _, a := range ejected.Afflictions {
			fmt.Fprintf(out, "  - %s (severity %s)\n", a.Label, humanize.FtoaWithDigits(a.Severity, 2))
		}
		if level, ok := ejected.NeedLevel(occupant.NeedLuciferium); ok {
			fmt.Fprintf(out, "  luciferium need: %s\n", humanize.FtoaWithDigits(level, 2))
		}
	}
	return nil
}

func printEvent(out io.Writer, e events.GameEvent, asJSON bool) error {
	if asJSON {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
	payload, _ := json.Marshal(e.Payload)
	_, err := fmt.Fprintf(out, "[tick %s] %s %s %s\n", humanize.Comma(e.Tick), e.Type, e.TargetID, payload)
	return err
}
