// Package archive exports and imports full save files to a blob store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MRamiBalles/CryoRestore/server/internal/engine"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
)

// FormatVersion is written into every save.
const FormatVersion = 1

// ErrNoArchive is returned when a game has no saves yet.
var ErrNoArchive = errors.New("no archive found")

// BlobStore is the minimal object storage surface the exporter needs.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Save is one archived game.
type Save struct {
	Version   int          `json:"version"`
	GameID    string       `json:"game_id"`
	CreatedAt time.Time    `json:"created_at"`
	State     engine.State `json:"state"`
}

// Exporter writes saves under <gameID>/<ulid>.json.
type Exporter struct {
	store  BlobStore
	logger *logger.Logger
}

func NewExporter(store BlobStore, log *logger.Logger) *Exporter {
	return &Exporter{store: store, logger: log}
}

// Export serializes st and returns the key it was stored under.
func (x *Exporter) Export(ctx context.Context, gameID string, st engine.State) (string, error) {
	save := Save{
		Version:   FormatVersion,
		GameID:    gameID,
		CreatedAt: time.Now().UTC(),
		State:     st,
	}
	data, err := json.MarshalIndent(save, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode save: %w", err)
	}

	key := path.Join(gameID, ulid.Make().String()+".json")
	if err := x.store.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("store save %s: %w", key, err)
	}
	x.logger.Infof("Archived %s at tick %d (%d chambers, %d occupants)", key, st.Tick, len(st.Chambers), len(st.Occupants))
	return key, nil
}

// Import reads a save back.
func (x *Exporter) Import(ctx context.Context, key string) (*Save, error) {
	rc, err := x.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read save %s: %w", key, err)
	}
	defer rc.Close()

	var save Save
	if err := json.NewDecoder(rc).Decode(&save); err != nil {
		return nil, fmt.Errorf("decode save %s: %w", key, err)
	}
	if save.Version > FormatVersion {
		return nil, fmt.Errorf("save %s has version %d, newest supported is %d", key, save.Version, FormatVersion)
	}
	return &save, nil
}

// Latest returns the key of the newest save for a game.
func (x *Exporter) Latest(ctx context.Context, gameID string) (string, error) {
	keys, err := x.store.List(ctx, gameID+"/")
	if err != nil {
		return "", err
	}
	var saves []string
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			saves = append(saves, k)
		}
	}
	if len(saves) == 0 {
		return "", fmt.Errorf("game %s: %w", gameID, ErrNoArchive)
	}
	sort.Strings(saves)
	return saves[len(saves)-1], nil
}

// OpenTarget picks a store for a destination: s3://bucket/prefix or a
// local directory.
func OpenTarget(ctx context.Context, target string) (BlobStore, error) {
	if rest, ok := strings.CutPrefix(target, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		cfg := S3ConfigFromEnv()
		cfg.Bucket = bucket
		cfg.Prefix = prefix
		return NewS3Store(ctx, cfg)
	}
	return NewFSStore(target)
}
