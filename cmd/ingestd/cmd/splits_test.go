package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loamsearch/ingest/internal/telemetry"
)

func writeSplitsConfig(t *testing.T, metricsDB string) string {
	t.Helper()
	content := fmt.Sprintf(`
index_id: logs
spool_dir: %s
metrics_db: %s
mapping:
  fields:
    - name: body
      type: text
`, filepath.Join(t.TempDir(), "spool"), metricsDB)
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSplitsCmd_ListsLedgerRows(t *testing.T) {
	metricsDB := filepath.Join(t.TempDir(), "ledger.db")
	ledger, err := telemetry.Open(metricsDB)
	require.NoError(t, err)
	require.NoError(t, ledger.Record(context.Background(), telemetry.PublishedSplit{
		SplitID: "split-a", IndexID: "logs", Docs: 12, ParseErrors: 1,
		SizeBytes: 2048, PublishedAt: time.Now(),
	}))
	require.NoError(t, ledger.Close())

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"splits", "--config", writeSplitsConfig(t, metricsDB)})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "split-a")
	assert.Contains(t, out.String(), "12")
}

func TestSplitsCmd_FailsWithoutLedger(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"splits", "--config", writeSplitsConfig(t, "")})

	assert.Error(t, root.Execute())
}
