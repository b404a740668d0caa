// Package recovery orchestrates ElastiCache snapshot lifecycle, restore
// drills and data export, with explicit validation of restored clusters.
package recovery

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
)

// OutcomeState tags a recovery result. PartialSuccess means the dominant
// operation succeeded but advisory steps (cleanup, individual keys)
// accumulated errors.
type OutcomeState string

const (
	OutcomeSuccess        OutcomeState = "success"
	OutcomePartialSuccess OutcomeState = "partial_success"
	OutcomeFailure        OutcomeState = "failure"
)

// RecoveryResult is produced at the end of every manager operation. Callers
// always receive a result, never a panic; they must inspect Outcome.
type RecoveryResult struct {
	Outcome      OutcomeState      `json:"outcome"`
	Operation    string            `json:"operation"`
	ClusterID    string            `json:"cluster_id,omitempty"`
	SnapshotID   string            `json:"snapshot_id,omitempty"`
	NewClusterID string            `json:"new_cluster_id,omitempty"`
	RecoveryTime time.Duration     `json:"recovery_time"`
	Validation   map[string]string `json:"validation_results,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
	Message      string            `json:"message"`
}

// Succeeded reports whether the dominant operation succeeded, counting
// partial success as success.
func (r *RecoveryResult) Succeeded() bool {
	return r.Outcome != OutcomeFailure
}

// SnapshotInfo is a read-only view of a provider snapshot, refreshed by
// polling DescribeSnapshots.
type SnapshotInfo struct {
	SnapshotID    string    `json:"snapshot_id"`
	ClusterID     string    `json:"cluster_id"`
	Status        string    `json:"status"`
	CreationTime  time.Time `json:"creation_time"`
	Engine        string    `json:"engine"`
	EngineVersion string    `json:"engine_version"`
	NodeType      string    `json:"node_type"`
	Source        string    `json:"source"`
	Size          string    `json:"size"`
}

// snapshotInfoFrom flattens the provider's snapshot resource.
func snapshotInfoFrom(s types.Snapshot) SnapshotInfo {
	info := SnapshotInfo{
		SnapshotID:    aws.ToString(s.SnapshotName),
		ClusterID:     aws.ToString(s.CacheClusterId),
		Status:        aws.ToString(s.SnapshotStatus),
		Engine:        aws.ToString(s.Engine),
		EngineVersion: aws.ToString(s.EngineVersion),
		NodeType:      aws.ToString(s.CacheNodeType),
		Source:        aws.ToString(s.SnapshotSource),
	}
	if len(s.NodeSnapshots) > 0 {
		node := s.NodeSnapshots[0]
		if node.SnapshotCreateTime != nil {
			info.CreationTime = *node.SnapshotCreateTime
		}
		info.Size = aws.ToString(node.CacheSize)
	}
	return info
}

// CleanupReport summarizes a retention sweep. Per-snapshot deletion errors
// accumulate instead of aborting the sweep.
type CleanupReport struct {
	Deleted []string `json:"deleted"`
	Kept    []string `json:"kept"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportReport summarizes a cluster data export. Outcome is PartialSuccess
// when the file was written but some keys failed to dump.
type ExportReport struct {
	Outcome      OutcomeState `json:"outcome"`
	ClusterID    string       `json:"cluster_id"`
	ExportedKeys int          `json:"exported_keys"`
	ExportFile   string       `json:"export_file,omitempty"`
	Errors       []string     `json:"errors,omitempty"`
	Message      string       `json:"message"`
}
