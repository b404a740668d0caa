package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportClusterData(t *testing.T) {
	f := newFakeControlPlane()
	f.addCluster("prod-redis", statusAvailable)

	fs := newFakeStore()
	for i := 0; i < 5; i++ {
		fs.data[fmt.Sprintf("session:user:%d", i)] = fmt.Sprintf("payload-%d", i)
	}
	m := newTestManager(f, WithConnectFunc(connectTo(fs)))

	dir := t.TempDir()
	report := m.ExportClusterData(context.Background(), "prod-redis", dir)

	require.Equal(t, OutcomeSuccess, report.Outcome, report.Message)
	assert.Equal(t, 5, report.ExportedKeys)
	assert.Empty(t, report.Errors)
	require.NotEmpty(t, report.ExportFile)
	assert.Equal(t, dir, filepath.Dir(report.ExportFile))

	data, err := os.ReadFile(report.ExportFile)
	require.NoError(t, err)

	var doc exportDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "prod-redis", doc.ClusterID)
	assert.Equal(t, 5, doc.KeyCount)
	assert.Len(t, doc.Entries, 5)
}

func TestExportClusterData_PartialFailure(t *testing.T) {
	f := newFakeControlPlane()
	f.addCluster("prod-redis", statusAvailable)

	fs := newFakeStore()
	for i := 0; i < 100; i++ {
		fs.data[fmt.Sprintf("key:%d", i)] = "value"
	}
	fs.failDump["key:3"] = true
	fs.failDump["key:42"] = true
	m := newTestManager(f, WithConnectFunc(connectTo(fs)))

	report := m.ExportClusterData(context.Background(), "prod-redis", t.TempDir())

	require.Equal(t, OutcomePartialSuccess, report.Outcome)
	assert.Equal(t, 98, report.ExportedKeys)
	assert.Len(t, report.Errors, 2)
	require.NotEmpty(t, report.ExportFile)

	data, err := os.ReadFile(report.ExportFile)
	require.NoError(t, err)
	var doc exportDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Entries, 98, "failed keys are skipped, not written as nulls")
}

func TestExportClusterData_ClusterNotAvailable(t *testing.T) {
	f := newFakeControlPlane()
	f.addCluster("prod-redis", "snapshotting")
	m := newTestManager(f, WithConnectFunc(connectTo(newFakeStore())))

	report := m.ExportClusterData(context.Background(), "prod-redis", t.TempDir())

	require.Equal(t, OutcomeFailure, report.Outcome)
	assert.Contains(t, report.Message, "snapshotting")
	assert.Empty(t, report.ExportFile)
}

func TestExportClusterData_NoConnectFunc(t *testing.T) {
	f := newFakeControlPlane()
	f.addCluster("prod-redis", statusAvailable)
	m := newTestManager(f)

	report := m.ExportClusterData(context.Background(), "prod-redis", t.TempDir())

	require.Equal(t, OutcomeFailure, report.Outcome)
	assert.Contains(t, report.Message, "no connection factory")
}
