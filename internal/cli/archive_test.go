package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/gametime"
	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/archive"
	"github.com/MRamiBalles/CryoRestore/server/internal/infra/storage"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/config"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestArchiveExportWithoutStateReturnsError(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cryo.db")

	_, err := execute(t, "archive", "export", "--db", db, "-g", "EMPTY", "--to", filepath.Join(dir, "saves"))
	if err == nil || !strings.Contains(err.Error(), "no saved state") {
		t.Fatalf("Expected a no saved state error, got %v", err)
	}

	// The store was released, so the database opens again cleanly.
	store, err := storage.OpenSQLite(db)
	if err != nil {
		t.Fatalf("OpenSQLite after failed export: %v", err)
	}
	store.Close()
}

func TestArchiveImportRejectsDoubleContainment(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "cryo.db")
	saves := filepath.Join(dir, "saves")

	blobs, err := archive.NewFSStore(saves)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	bad := engine.State{
		Tick:     5,
		Settings: config.DefaultSettings(),
		Chambers: []engine.ChamberState{
			{ID: "C1", OccupantID: "O1", Fuel: 50, FuelCapacity: 50, SwitchedOn: true},
			{ID: "C2", OccupantID: "O1", Fuel: 50, FuelCapacity: 50, SwitchedOn: true},
		},
		Occupants: []*occupant.Occupant{occupant.NewOccupant("O1", "Twin", gametime.Years(40))},
	}
	if _, err := archive.NewExporter(blobs, logger.Discard()).Export(ctx, "TWINS", bad); err != nil {
		t.Fatalf("Export: %v", err)
	}

	_, err = execute(t, "archive", "import", "--db", db, "-g", "TWINS", "--from", saves)
	if err == nil || !strings.Contains(err.Error(), "invalid save") {
		t.Fatalf("Expected the save to be rejected, got %v", err)
	}

	store, err := storage.OpenSQLite(db)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()
	if snap, err := store.LoadSnapshot(ctx, "TWINS"); err != nil || snap != nil {
		t.Errorf("Rejected save must not be stored, got %+v (%v)", snap, err)
	}
}
