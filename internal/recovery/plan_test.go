package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() *RecoveryPlan {
	return &RecoveryPlan{
		ClusterID:       "prod-redis",
		BackupFrequency: "0 3 * * *",
		RetentionDays:   7,
		RTOMinutes:      60,
		RPOMinutes:      30,
	}
}

func TestRecoveryPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RecoveryPlan)
		wantErr string
	}{
		{"valid", func(p *RecoveryPlan) {}, ""},
		{"missing cluster", func(p *RecoveryPlan) { p.ClusterID = "" }, "cluster_id"},
		{"zero retention", func(p *RecoveryPlan) { p.RetentionDays = 0 }, "retention_days"},
		{"negative rto", func(p *RecoveryPlan) { p.RTOMinutes = -1 }, "rto_minutes"},
		{"rpo exceeds rto", func(p *RecoveryPlan) { p.RPOMinutes = 120 }, "rpo_minutes"},
		{"cross region without target", func(p *RecoveryPlan) { p.CrossRegion = true }, "target_region"},
		{"cross region with target", func(p *RecoveryPlan) {
			p.CrossRegion = true
			p.TargetRegion = "us-west-2"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)

			err := plan.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `cluster_id: prod-redis
backup_frequency: "0 3 * * *"
retention_days: 14
cross_region: true
target_region: us-west-2
rto_minutes: 60
rpo_minutes: 15
notification_endpoints:
  - ops@bookedbarber.com
validation_schedule: "0 6 * * 1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	assert.Equal(t, "prod-redis", plan.ClusterID)
	assert.Equal(t, 14, plan.RetentionDays)
	assert.True(t, plan.CrossRegion)
	assert.Equal(t, "us-west-2", plan.TargetRegion)
	assert.Equal(t, []string{"ops@bookedbarber.com"}, plan.NotificationEndpoints)
}

func TestLoadPlan_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPlan(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cluster_id: [unclosed"), 0o600))
		_, err := LoadPlan(path)
		require.Error(t, err)
	})

	t.Run("fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cluster_id: prod\nretention_days: 0\n"), 0o600))
		_, err := LoadPlan(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retention_days")
	})
}
