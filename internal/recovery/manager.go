package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookedbarber/cacheops/internal/store"
)

const (
	statusAvailable = "available"
	statusCreating  = "creating"

	defaultPollInterval    = 30 * time.Second
	defaultMaxPollAttempts = 40 // ~20 minute ceiling at the default interval
	defaultSnapshotPrefix  = "bookedbarber"
)

// ElastiCacheAPI is the control-plane subset the manager depends on.
// *elasticache.Client satisfies it.
type ElastiCacheAPI interface {
	CreateSnapshot(ctx context.Context, in *elasticache.CreateSnapshotInput, opts ...func(*elasticache.Options)) (*elasticache.CreateSnapshotOutput, error)
	DescribeSnapshots(ctx context.Context, in *elasticache.DescribeSnapshotsInput, opts ...func(*elasticache.Options)) (*elasticache.DescribeSnapshotsOutput, error)
	DeleteSnapshot(ctx context.Context, in *elasticache.DeleteSnapshotInput, opts ...func(*elasticache.Options)) (*elasticache.DeleteSnapshotOutput, error)
	DescribeCacheClusters(ctx context.Context, in *elasticache.DescribeCacheClustersInput, opts ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
	CreateCacheCluster(ctx context.Context, in *elasticache.CreateCacheClusterInput, opts ...func(*elasticache.Options)) (*elasticache.CreateCacheClusterOutput, error)
	DeleteCacheCluster(ctx context.Context, in *elasticache.DeleteCacheClusterInput, opts ...func(*elasticache.Options)) (*elasticache.DeleteCacheClusterOutput, error)
}

// ConnectFunc opens a store connection to a cluster endpoint for live
// validation and export.
type ConnectFunc func(ctx context.Context, addr string) (store.Store, error)

// Manager orchestrates snapshot creation, restore-with-wait and
// post-restore validation. Results are owned by the operation that produced
// them; concurrent calls share no mutable state.
type Manager struct {
	api             ElastiCacheAPI
	connect         ConnectFunc
	logger          *zap.Logger
	pollInterval    time.Duration
	maxPollAttempts int
	prefix          string
	now             func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectFunc sets the live-endpoint connection builder.
func WithConnectFunc(f ConnectFunc) Option {
	return func(m *Manager) { m.connect = f }
}

// WithPollInterval overrides the status poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithMaxPollAttempts overrides the poll attempt ceiling.
func WithMaxPollAttempts(n int) Option {
	return func(m *Manager) { m.maxPollAttempts = n }
}

// WithSnapshotPrefix overrides the project snapshot prefix.
func WithSnapshotPrefix(p string) Option {
	return func(m *Manager) { m.prefix = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a recovery manager.
func NewManager(api ElastiCacheAPI, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		api:             api,
		logger:          logger,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
		prefix:          defaultSnapshotPrefix,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateManualSnapshot snapshots a cluster and validates the result. The
// source cluster must already be available; anything else fails fast with a
// message naming the cluster and its actual status, without calling the
// create API.
func (m *Manager) CreateManualSnapshot(ctx context.Context, clusterID, snapshotID, description string) *RecoveryResult {
	start := m.now()
	result := &RecoveryResult{
		Operation:  "create_snapshot",
		ClusterID:  clusterID,
		Validation: map[string]string{},
	}

	cluster, err := m.describeCluster(ctx, clusterID)
	if err != nil {
		return m.fail(result, start, fmt.Errorf("describe cluster %s: %w", clusterID, err))
	}
	if status := aws.ToString(cluster.CacheClusterStatus); status != statusAvailable {
		return m.fail(result, start,
			fmt.Errorf("cluster %s is %q, must be %q before snapshotting", clusterID, status, statusAvailable))
	}

	if snapshotID == "" {
		snapshotID = fmt.Sprintf("%s-%s-%s", m.prefix, clusterID, start.Format("20060102-150405"))
	}
	result.SnapshotID = snapshotID

	input := &elasticache.CreateSnapshotInput{
		CacheClusterId: aws.String(clusterID),
		SnapshotName:   aws.String(snapshotID),
	}
	if description != "" {
		input.Tags = []types.Tag{{Key: aws.String("description"), Value: aws.String(description)}}
	}
	if _, err := m.api.CreateSnapshot(ctx, input); err != nil {
		return m.fail(result, start, fmt.Errorf("create snapshot %s: %w", snapshotID, err))
	}

	snap, err := m.waitForSnapshot(ctx, snapshotID)
	if err != nil {
		return m.fail(result, start, err)
	}
	if status := aws.ToString(snap.SnapshotStatus); status != statusAvailable {
		return m.fail(result, start, fmt.Errorf("snapshot %s ended in status %q", snapshotID, status))
	}

	result.Validation = validateSnapshot(snap)
	result.RecoveryTime = m.now().Sub(start)
	if allPassed(result.Validation) {
		result.Outcome = OutcomeSuccess
		result.Message = fmt.Sprintf("snapshot %s created and validated", snapshotID)
	} else {
		result.Outcome = OutcomeFailure
		result.Message = fmt.Sprintf("snapshot %s created but failed validation", snapshotID)
	}

	m.logger.Info("snapshot creation finished",
		zap.String("snapshot_id", snapshotID),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("elapsed", result.RecoveryTime))
	return result
}

// RestoreOptions override snapshot-derived settings on restore.
type RestoreOptions struct {
	NodeType         string
	SecurityGroupIDs []string
	SubnetGroup      string
}

// RestoreFromSnapshot provisions a new cluster from an available snapshot,
// waits for it to come up, then validates it end to end, including a live
// write-read-delete smoke test against the restored endpoint.
func (m *Manager) RestoreFromSnapshot(ctx context.Context, snapshotID, newClusterID string, opts RestoreOptions) *RecoveryResult {
	start := m.now()
	result := &RecoveryResult{
		Operation:    "restore_snapshot",
		SnapshotID:   snapshotID,
		NewClusterID: newClusterID,
		Validation:   map[string]string{},
	}

	snap, err := m.describeSnapshot(ctx, snapshotID)
	if err != nil {
		return m.fail(result, start, fmt.Errorf("describe snapshot %s: %w", snapshotID, err))
	}
	if status := aws.ToString(snap.SnapshotStatus); status != statusAvailable {
		return m.fail(result, start,
			fmt.Errorf("snapshot %s is %q, must be %q before restore", snapshotID, status, statusAvailable))
	}
	result.ClusterID = aws.ToString(snap.CacheClusterId)

	input := &elasticache.CreateCacheClusterInput{
		CacheClusterId: aws.String(newClusterID),
		SnapshotName:   aws.String(snapshotID),
		Engine:         snap.Engine,
		EngineVersion:  snap.EngineVersion,
		CacheNodeType:  snap.CacheNodeType,
		Port:           snap.Port,
		NumCacheNodes:  aws.Int32(1),
	}
	if opts.NodeType != "" {
		input.CacheNodeType = aws.String(opts.NodeType)
	}
	if len(opts.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = opts.SecurityGroupIDs
	}
	if opts.SubnetGroup != "" {
		input.CacheSubnetGroupName = aws.String(opts.SubnetGroup)
	}

	if _, err := m.api.CreateCacheCluster(ctx, input); err != nil {
		return m.fail(result, start, fmt.Errorf("create cluster %s: %w", newClusterID, err))
	}

	if err := m.waitForClusterStatus(ctx, newClusterID, statusAvailable); err != nil {
		return m.fail(result, start, err)
	}

	result.Validation = m.validateRestoredCluster(ctx, newClusterID, snap)
	result.RecoveryTime = m.now().Sub(start)
	if allPassed(result.Validation) {
		result.Outcome = OutcomeSuccess
		result.Message = fmt.Sprintf("cluster %s restored from %s and validated", newClusterID, snapshotID)
	} else {
		result.Outcome = OutcomeFailure
		result.Message = fmt.Sprintf("cluster %s restored but failed validation", newClusterID)
	}

	m.logger.Info("restore finished",
		zap.String("new_cluster_id", newClusterID),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("elapsed", result.RecoveryTime))
	return result
}

// TestDisasterRecovery runs the full drill: snapshot the cluster, restore to
// a disposable cluster, validate data integrity, then clean up both test
// resources. Cleanup is advisory; its failures are recorded but do not flip
// the overall outcome to failure.
func (m *Manager) TestDisasterRecovery(ctx context.Context, clusterID string) *RecoveryResult {
	start := m.now()
	stamp := start.Format("20060102-150405")
	testSnapshotID := fmt.Sprintf("%s-drtest-%s", m.prefix, stamp)
	testClusterID := fmt.Sprintf("%s-drtest-%s", m.prefix, stamp)

	result := &RecoveryResult{
		Operation:    "test_disaster_recovery",
		ClusterID:    clusterID,
		SnapshotID:   testSnapshotID,
		NewClusterID: testClusterID,
		Validation:   map[string]string{},
	}

	created := m.CreateManualSnapshot(ctx, clusterID, testSnapshotID, "disaster recovery drill")
	result.Validation["snapshot_creation"] = passFail(created.Outcome == OutcomeSuccess, created.Message)

	restored := &RecoveryResult{Outcome: OutcomeFailure, Message: "skipped: snapshot creation failed"}
	if created.Outcome == OutcomeSuccess {
		restored = m.RestoreFromSnapshot(ctx, testSnapshotID, testClusterID, RestoreOptions{})
	}
	result.Validation["cluster_restore"] = passFail(restored.Outcome == OutcomeSuccess, restored.Message)

	dataCheck, ok := restored.Validation["data_integrity"]
	if !ok {
		dataCheck = "fail: not run"
	}
	result.Validation["data_validation"] = dataCheck

	drillPassed := created.Outcome == OutcomeSuccess &&
		restored.Outcome == OutcomeSuccess &&
		dataCheck == "pass"

	// Best-effort teardown of the disposable resources. The restore may have
	// created a cluster even when its validation failed, so teardown is
	// attempted whenever the restore ran at all.
	restoreAttempted := created.Outcome == OutcomeSuccess
	result.Errors = append(result.Errors,
		m.cleanupDrill(ctx, testClusterID, testSnapshotID, created.Outcome == OutcomeSuccess, restoreAttempted)...)

	result.RecoveryTime = m.now().Sub(start)
	switch {
	case drillPassed && len(result.Errors) == 0:
		result.Outcome = OutcomeSuccess
		result.Message = "disaster recovery drill passed"
	case drillPassed:
		result.Outcome = OutcomePartialSuccess
		result.Message = "disaster recovery drill passed, cleanup incomplete"
	default:
		result.Outcome = OutcomeFailure
		result.Message = "disaster recovery drill failed"
	}

	m.logger.Info("disaster recovery drill finished",
		zap.String("cluster_id", clusterID),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("elapsed", result.RecoveryTime))
	return result
}

func (m *Manager) cleanupDrill(ctx context.Context, testClusterID, testSnapshotID string, snapshotCreated, clusterCreated bool) []string {
	var errs []string
	if clusterCreated {
		if _, err := m.api.DeleteCacheCluster(ctx, &elasticache.DeleteCacheClusterInput{
			CacheClusterId: aws.String(testClusterID),
		}); err != nil {
			errs = append(errs, fmt.Sprintf("delete test cluster %s: %v", testClusterID, err))
		} else if err := m.waitForClusterDeleted(ctx, testClusterID); err != nil {
			errs = append(errs, fmt.Sprintf("wait for test cluster %s deletion: %v", testClusterID, err))
		}
	}
	if snapshotCreated {
		if _, err := m.api.DeleteSnapshot(ctx, &elasticache.DeleteSnapshotInput{
			SnapshotName: aws.String(testSnapshotID),
		}); err != nil {
			errs = append(errs, fmt.Sprintf("delete test snapshot %s: %v", testSnapshotID, err))
		}
	}
	return errs
}

// ListSnapshots returns project snapshots (identified by the configured
// prefix), newest first. clusterID narrows the listing when non-empty.
func (m *Manager) ListSnapshots(ctx context.Context, clusterID string) ([]SnapshotInfo, error) {
	input := &elasticache.DescribeSnapshotsInput{}
	if clusterID != "" {
		input.CacheClusterId = aws.String(clusterID)
	}

	var infos []SnapshotInfo
	for {
		out, err := m.api.DescribeSnapshots(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("recovery: describe snapshots: %w", err)
		}
		for _, snap := range out.Snapshots {
			info := snapshotInfoFrom(snap)
			if strings.HasPrefix(info.SnapshotID, m.prefix) {
				infos = append(infos, info)
			}
		}
		if out.Marker == nil {
			break
		}
		input.Marker = out.Marker
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreationTime.After(infos[j].CreationTime)
	})
	return infos, nil
}

// CleanupOldSnapshots deletes project snapshots older than the retention
// window. A snapshot created exactly at the cutoff is kept. Per-snapshot
// deletion failures accumulate; the sweep never aborts early.
func (m *Manager) CleanupOldSnapshots(ctx context.Context, clusterID string, retentionDays int) *CleanupReport {
	report := &CleanupReport{}

	snapshots, err := m.ListSnapshots(ctx, clusterID)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	cutoff := m.now().AddDate(0, 0, -retentionDays)
	for _, snap := range snapshots {
		if !snap.CreationTime.Before(cutoff) {
			report.Kept = append(report.Kept, snap.SnapshotID)
			continue
		}
		if _, err := m.api.DeleteSnapshot(ctx, &elasticache.DeleteSnapshotInput{
			SnapshotName: aws.String(snap.SnapshotID),
		}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("delete %s: %v", snap.SnapshotID, err))
			continue
		}
		report.Deleted = append(report.Deleted, snap.SnapshotID)
	}

	m.logger.Info("snapshot retention sweep finished",
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("kept", len(report.Kept)),
		zap.Int("errors", len(report.Errors)))
	return report
}

// validateSnapshot checks that a completed snapshot carries the metadata a
// restore will need.
func validateSnapshot(snap types.Snapshot) map[string]string {
	checks := map[string]string{
		"snapshot_exists": "pass",
		"snapshot_status": passFail(aws.ToString(snap.SnapshotStatus) == statusAvailable,
			fmt.Sprintf("status %q", aws.ToString(snap.SnapshotStatus))),
		"engine_metadata": passFail(snap.Engine != nil && snap.EngineVersion != nil,
			"missing engine or engine version"),
		"node_metadata": passFail(snap.CacheNodeType != nil && snap.Port != nil,
			"missing node type or port"),
	}
	return checks
}

// validateRestoredCluster re-fetches the new cluster, compares engine
// identity against the source snapshot, and runs a live write-read-delete
// smoke test. This is where real correctness validation happens: not just
// "is the resource up" but "does it serve the reads and writes it accepts".
func (m *Manager) validateRestoredCluster(ctx context.Context, clusterID string, snap types.Snapshot) map[string]string {
	checks := map[string]string{}

	cluster, err := m.describeCluster(ctx, clusterID)
	if err != nil {
		checks["cluster_exists"] = "fail: " + err.Error()
		checks["data_integrity"] = "fail: not run"
		return checks
	}
	checks["cluster_exists"] = "pass"

	checks["engine_match"] = passFail(
		aws.ToString(cluster.Engine) == aws.ToString(snap.Engine),
		fmt.Sprintf("engine %q != %q", aws.ToString(cluster.Engine), aws.ToString(snap.Engine)))
	checks["engine_version_match"] = passFail(
		aws.ToString(cluster.EngineVersion) == aws.ToString(snap.EngineVersion),
		fmt.Sprintf("version %q != %q", aws.ToString(cluster.EngineVersion), aws.ToString(snap.EngineVersion)))

	if aws.ToString(cluster.CacheClusterStatus) != statusAvailable {
		checks["data_integrity"] = fmt.Sprintf("fail: cluster status %q", aws.ToString(cluster.CacheClusterStatus))
		return checks
	}
	if m.connect == nil {
		checks["data_integrity"] = "fail: no connection factory configured"
		return checks
	}

	addr, err := clusterEndpoint(cluster)
	if err != nil {
		checks["data_integrity"] = "fail: " + err.Error()
		return checks
	}

	if err := m.smokeTest(ctx, addr); err != nil {
		checks["data_integrity"] = "fail: " + err.Error()
	} else {
		checks["data_integrity"] = "pass"
	}
	return checks
}

// smokeTest writes a uniquely keyed value with a short TTL, reads it back,
// asserts byte equality, then deletes it. Freshly provisioned endpoints can
// briefly refuse connections, so the connect is retried.
func (m *Manager) smokeTest(ctx context.Context, addr string) error {
	var st store.Store
	err := retry.Do(
		func() error {
			var err error
			st, err = m.connect(ctx, addr)
			return err
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() { _ = st.Close() }()

	key := fmt.Sprintf("%s:dr-verify:%s", m.prefix, uuid.NewString())
	value := fmt.Sprintf("dr-check-%d", m.now().UnixNano())

	if err := st.Set(ctx, key, value, 60*time.Second); err != nil {
		return fmt.Errorf("smoke set: %w", err)
	}
	got, err := st.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("smoke get: %w", err)
	}
	if got != value {
		return fmt.Errorf("smoke value mismatch: wrote %q, read %q", value, got)
	}
	if err := st.Delete(ctx, key); err != nil {
		return fmt.Errorf("smoke delete: %w", err)
	}
	return nil
}

// waitForSnapshot polls until the snapshot leaves "creating", bounded by the
// attempt ceiling and the caller's context.
func (m *Manager) waitForSnapshot(ctx context.Context, snapshotID string) (types.Snapshot, error) {
	for attempt := 1; attempt <= m.maxPollAttempts; attempt++ {
		snap, err := m.describeSnapshot(ctx, snapshotID)
		if err != nil {
			return types.Snapshot{}, fmt.Errorf("poll snapshot %s: %w", snapshotID, err)
		}
		if aws.ToString(snap.SnapshotStatus) != statusCreating {
			return snap, nil
		}

		m.logger.Debug("snapshot still creating",
			zap.String("snapshot_id", snapshotID), zap.Int("attempt", attempt))
		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return types.Snapshot{}, fmt.Errorf("wait for snapshot %s: %w", snapshotID, ctx.Err())
		}
	}
	return types.Snapshot{}, fmt.Errorf("timed out waiting for snapshot %s after %d attempts",
		snapshotID, m.maxPollAttempts)
}

func (m *Manager) waitForClusterStatus(ctx context.Context, clusterID, target string) error {
	for attempt := 1; attempt <= m.maxPollAttempts; attempt++ {
		cluster, err := m.describeCluster(ctx, clusterID)
		if err != nil {
			return fmt.Errorf("poll cluster %s: %w", clusterID, err)
		}
		if aws.ToString(cluster.CacheClusterStatus) == target {
			return nil
		}

		m.logger.Debug("cluster not yet in target status",
			zap.String("cluster_id", clusterID),
			zap.String("status", aws.ToString(cluster.CacheClusterStatus)),
			zap.Int("attempt", attempt))
		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return fmt.Errorf("wait for cluster %s: %w", clusterID, ctx.Err())
		}
	}
	return fmt.Errorf("timed out waiting for cluster %s to become %q after %d attempts",
		clusterID, target, m.maxPollAttempts)
}

func (m *Manager) waitForClusterDeleted(ctx context.Context, clusterID string) error {
	for attempt := 1; attempt <= m.maxPollAttempts; attempt++ {
		_, err := m.describeCluster(ctx, clusterID)
		if err != nil {
			var notFound *types.CacheClusterNotFoundFault
			if errors.As(err, &notFound) {
				return nil
			}
			return fmt.Errorf("poll cluster %s: %w", clusterID, err)
		}

		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return fmt.Errorf("wait for cluster %s deletion: %w", clusterID, ctx.Err())
		}
	}
	return fmt.Errorf("timed out waiting for cluster %s deletion after %d attempts",
		clusterID, m.maxPollAttempts)
}

func (m *Manager) describeCluster(ctx context.Context, clusterID string) (types.CacheCluster, error) {
	out, err := m.api.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{
		CacheClusterId:    aws.String(clusterID),
		ShowCacheNodeInfo: aws.Bool(true),
	})
	if err != nil {
		return types.CacheCluster{}, err
	}
	if len(out.CacheClusters) == 0 {
		return types.CacheCluster{}, fmt.Errorf("cluster %s not found", clusterID)
	}
	return out.CacheClusters[0], nil
}

func (m *Manager) describeSnapshot(ctx context.Context, snapshotID string) (types.Snapshot, error) {
	out, err := m.api.DescribeSnapshots(ctx, &elasticache.DescribeSnapshotsInput{
		SnapshotName: aws.String(snapshotID),
	})
	if err != nil {
		return types.Snapshot{}, err
	}
	if len(out.Snapshots) == 0 {
		return types.Snapshot{}, fmt.Errorf("snapshot %s not found", snapshotID)
	}
	return out.Snapshots[0], nil
}

func clusterEndpoint(cluster types.CacheCluster) (string, error) {
	if cluster.ConfigurationEndpoint != nil && cluster.ConfigurationEndpoint.Address != nil {
		return fmt.Sprintf("%s:%d",
			aws.ToString(cluster.ConfigurationEndpoint.Address),
			aws.ToInt32(cluster.ConfigurationEndpoint.Port)), nil
	}
	for _, node := range cluster.CacheNodes {
		if node.Endpoint != nil && node.Endpoint.Address != nil {
			return fmt.Sprintf("%s:%d",
				aws.ToString(node.Endpoint.Address),
				aws.ToInt32(node.Endpoint.Port)), nil
		}
	}
	return "", fmt.Errorf("cluster %s has no reachable endpoint", aws.ToString(cluster.CacheClusterId))
}

func (m *Manager) fail(result *RecoveryResult, start time.Time, err error) *RecoveryResult {
	result.Outcome = OutcomeFailure
	result.Message = err.Error()
	result.RecoveryTime = m.now().Sub(start)
	m.logger.Warn("recovery operation failed",
		zap.String("operation", result.Operation), zap.Error(err))
	return result
}

func allPassed(checks map[string]string) bool {
	for _, v := range checks {
		if v != "pass" {
			return false
		}
	}
	return len(checks) > 0
}

func passFail(ok bool, detail string) string {
	if ok {
		return "pass"
	}
	return "fail: " + detail
}
