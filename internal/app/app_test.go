package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Forecast: config.ForecastConfig{
			HorizonDays:     7,
			LowThreshold:    0,
			MedThreshold:    5,
			HighThreshold:   10,
			ArtifactPath:    filepath.Join(dir, "model.json"),
			ArtifactBackend: "file",
			RetrainPolicy:   "force",
			HoldoutFraction: 0.25,
			HoldoutSeed:     42,
			Timezone:        "UTC",
		},
		Source: config.SourceConfig{Kind: "file", Dir: dir},
	}
}

func TestNew_FileSourceRunsEndToEnd(t *testing.T) {
	cfg := fileConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Dir, "sales.csv"), []byte(
		"sale_item_id,product_id,store_id,sale_day,quantity_sold\n"+
			"1,1,1,2024-03-01,2\n2,1,1,2024-03-02,2\n3,1,1,2024-03-03,2\n4,1,1,2024-03-04,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Dir, "inventory.csv"), []byte(
		"product_id,store_id,quantity\n1,1,100\n"), 0o644))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &repository.FileSource{}, a.Source)
	assert.IsType(t, &forecast.FileStore{}, a.Store)
	assert.Equal(t, forecast.ForceRetrain, a.DefaultStrategy())

	got, err := a.Orchestrator.Run(context.Background(), a.DefaultStrategy())
	require.NoError(t, err)
	assert.Empty(t, got, "stock covers the horizon")
	assert.FileExists(t, cfg.Forecast.ArtifactPath)
}

func TestPipelineConfig(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Forecast.HorizonDays = 14
	cfg.Forecast.HighThreshold = 20

	pc := PipelineConfig(cfg)
	assert.Equal(t, 14, pc.HorizonDays)
	assert.Equal(t, 20.0, pc.Thresholds.High)
	assert.Equal(t, cfg.Forecast.ArtifactPath, pc.ArtifactKey)
	assert.Equal(t, "UTC", pc.Location.String())
}

func TestNewArtifactStore_S3(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Forecast.ArtifactBackend = "s3"
	cfg.Storage = config.StorageConfig{Provider: "minio", Endpoint: "localhost:9000", Bucket: "models"}

	store, err := NewArtifactStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &forecast.ObjectStore{}, store)

	cfg.Storage.Provider = "ftp"
	_, err = NewArtifactStore(cfg)
	assert.Error(t, err)
}

func TestNewSource_UnknownKind(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Source.Kind = "kafka"
	_, _, err := NewSource(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_RejectsUnorderedThresholds(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Forecast.MedThreshold = 20

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
