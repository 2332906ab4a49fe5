package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lexicore/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Default().BlobRootDir, cfg.BlobRootDir)
	require.Equal(t, config.Default().InlineThresholdBytes, cfg.InlineThresholdBytes)
}

func TestLoadReadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicore.yaml")
	yaml := `
blob_root_dir: /tmp/custom-blobs
strong_score_threshold: 0.95
l1_max_size_per_namespace: 42
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-blobs", cfg.BlobRootDir)
	require.Equal(t, 0.95, cfg.StrongScoreThreshold)
	require.Equal(t, 42, cfg.L1MaxSizePerNamespace)
	// Untouched fields still fall back to defaults.
	require.Equal(t, config.Default().CompressionCodec, cfg.CompressionCodec)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadStrongScoreThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.StrongScoreThreshold = 1.5
	require.Error(t, cfg.Validate())
}

func TestDurationAccessorsConvertSecondsCorrectly(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, cfg.L1TTLSeconds, int(cfg.L1TTL().Seconds()))
	require.Equal(t, cfg.HeartbeatIntervalSeconds, int(cfg.HeartbeatInterval().Seconds()))
}
