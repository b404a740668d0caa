package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/bookedbarber/cacheops/internal/store"
)

// exportDocument is the on-disk shape of a cluster data dump.
type exportDocument struct {
	ClusterID  string             `json:"cluster_id"`
	ExportedAt time.Time          `json:"exported_at"`
	KeyCount   int                `json:"key_count"`
	Entries    []*store.ValueDump `json:"entries"`
}

// ExportClusterData connects to the cluster's live endpoint, iterates the
// keyspace with cursor-based SCAN, dumps every key's value and remaining
// TTL, and serializes the result to a timestamped JSON file in outputDir.
//
// Per-key failures are recorded and skipped; the export still reports
// partial success as long as the file was written. Only a failure to reach
// the cluster or write the file makes the whole export fail.
func (m *Manager) ExportClusterData(ctx context.Context, clusterID, outputDir string) *ExportReport {
	report := &ExportReport{Outcome: OutcomeFailure, ClusterID: clusterID}

	if m.connect == nil {
		report.Message = "no connection factory configured"
		return report
	}

	cluster, err := m.describeCluster(ctx, clusterID)
	if err != nil {
		report.Message = fmt.Sprintf("describe cluster %s: %v", clusterID, err)
		return report
	}
	if status := aws.ToString(cluster.CacheClusterStatus); status != statusAvailable {
		report.Message = fmt.Sprintf("cluster %s is %q, must be %q to export", clusterID, status, statusAvailable)
		return report
	}

	addr, err := clusterEndpoint(cluster)
	if err != nil {
		report.Message = err.Error()
		return report
	}
	st, err := m.connect(ctx, addr)
	if err != nil {
		report.Message = fmt.Sprintf("connect %s: %v", addr, err)
		return report
	}
	defer func() { _ = st.Close() }()

	keys, err := st.ScanKeys(ctx, "*")
	if err != nil {
		report.Message = fmt.Sprintf("scan keys: %v", err)
		return report
	}

	doc := exportDocument{
		ClusterID:  clusterID,
		ExportedAt: m.now(),
		Entries:    make([]*store.ValueDump, 0, len(keys)),
	}

	var keyErrs error
	for _, key := range keys {
		dump, err := st.DumpValue(ctx, key)
		if err != nil {
			keyErrs = multierr.Append(keyErrs, fmt.Errorf("key %q: %w", key, err))
			continue
		}
		doc.Entries = append(doc.Entries, dump)
	}
	doc.KeyCount = len(doc.Entries)

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		report.Message = fmt.Sprintf("create output dir: %v", err)
		return report
	}
	path := filepath.Join(outputDir,
		fmt.Sprintf("cluster-data-%s-%s.json", clusterID, m.now().Format("20060102-150405")))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		report.Message = fmt.Sprintf("marshal export: %v", err)
		return report
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		report.Message = fmt.Sprintf("write export file: %v", err)
		return report
	}

	report.ExportedKeys = doc.KeyCount
	report.ExportFile = path
	for _, err := range multierr.Errors(keyErrs) {
		report.Errors = append(report.Errors, err.Error())
	}
	if len(report.Errors) > 0 {
		report.Outcome = OutcomePartialSuccess
		report.Message = fmt.Sprintf("exported %d keys, %d failed", report.ExportedKeys, len(report.Errors))
	} else {
		report.Outcome = OutcomeSuccess
		report.Message = fmt.Sprintf("exported %d keys", report.ExportedKeys)
	}

	m.logger.Info("cluster data export finished",
		zap.String("cluster_id", clusterID),
		zap.String("file", path),
		zap.Int("exported_keys", report.ExportedKeys),
		zap.Int("errors", len(report.Errors)))
	return report
}
