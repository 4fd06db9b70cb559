package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamsearch/ingest/internal/config"
	"github.com/loamsearch/ingest/internal/docmap"
	"github.com/loamsearch/ingest/internal/telemetry"
)

func testPipelineConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	return config.Config{
		IndexID:       "logs",
		SpoolDir:      filepath.Join(base, "spool"),
		ScratchDir:    filepath.Join(base, "scratch"),
		CommitTimeout: config.Duration(100 * time.Millisecond),
		SinkBuffer:    2,
		MetricsDB:     filepath.Join(base, "ledger.db"),
		Mapping: docmap.Config{
			Fields: []docmap.Field{
				{Name: "body", Type: docmap.FieldTypeText, Store: true},
				{Name: "ts", Type: docmap.FieldTypeLong},
			},
			TimestampField: "ts",
		},
	}
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	cfg := testPipelineConfig(t)
	require.NoError(t, os.MkdirAll(cfg.SpoolDir, 0o755))

	// One batch file with two good docs and one malformed one.
	batchFile := filepath.Join(cfg.SpoolDir, "batch-1.ndjson")
	content := `{"body":"first","ts":5}` + "\n" +
		`{broken` + "\n" +
		`{"body":"second","ts":1}` + "\n"
	require.NoError(t, os.WriteFile(batchFile, []byte(content), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runPipeline(ctx, cfg) }()

	// The split rotates on its 100ms deadline and lands in the ledger.
	ledgerPath := cfg.MetricsDB
	var splits []telemetry.PublishedSplit
	require.Eventually(t, func() bool {
		ledger, err := telemetry.Open(ledgerPath)
		if err != nil {
			return false
		}
		defer func() { _ = ledger.Close() }()
		splits, err = ledger.Recent(context.Background(), "logs", 10)
		return err == nil && len(splits) == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	published := splits[0]
	assert.Equal(t, uint64(2), published.Docs)
	assert.Equal(t, uint64(1), published.ParseErrors)
	assert.Equal(t, uint64(len(content)-3), published.SizeBytes) // newlines are not part of the payloads
	assert.Equal(t, int64(1), published.TimeRangeStart)
	assert.Equal(t, int64(5), published.TimeRangeEnd)

	// The batch file was archived.
	_, err := os.Stat(filepath.Join(cfg.SpoolDir, "done", "batch-1.ndjson"))
	assert.NoError(t, err)
}

func TestRunPipeline_InvalidMapping(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.Mapping.Fields = nil

	err := runPipeline(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRunPipeline_StopsCleanlyWithEmptySpool(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.MetricsDB = ""

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, runPipeline(ctx, cfg))
}
