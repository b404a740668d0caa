package recovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RecoveryPlan declares the backup and recovery posture for a cluster. It is
// a configuration record for scheduling tooling; the manager validates and
// echoes it but does not yet act on it at runtime.
type RecoveryPlan struct {
	ClusterID             string   `yaml:"cluster_id" json:"cluster_id"`
	BackupFrequency       string   `yaml:"backup_frequency" json:"backup_frequency"` // cron expression
	RetentionDays         int      `yaml:"retention_days" json:"retention_days"`
	CrossRegion           bool     `yaml:"cross_region" json:"cross_region"`
	TargetRegion          string   `yaml:"target_region" json:"target_region"`
	RTOMinutes            int      `yaml:"rto_minutes" json:"rto_minutes"`
	RPOMinutes            int      `yaml:"rpo_minutes" json:"rpo_minutes"`
	NotificationEndpoints []string `yaml:"notification_endpoints" json:"notification_endpoints"`
	ValidationSchedule    string   `yaml:"validation_schedule" json:"validation_schedule"`
}

// Validate checks the plan for internal consistency.
func (p *RecoveryPlan) Validate() error {
	if p.ClusterID == "" {
		return fmt.Errorf("recovery plan: cluster_id is required")
	}
	if p.RetentionDays <= 0 {
		return fmt.Errorf("recovery plan: retention_days must be positive")
	}
	if p.RTOMinutes <= 0 || p.RPOMinutes <= 0 {
		return fmt.Errorf("recovery plan: rto_minutes and rpo_minutes must be positive")
	}
	if p.RPOMinutes > p.RTOMinutes {
		return fmt.Errorf("recovery plan: rpo_minutes should not exceed rto_minutes")
	}
	if p.CrossRegion && p.TargetRegion == "" {
		return fmt.Errorf("recovery plan: target_region is required when cross_region is set")
	}
	return nil
}

// LoadPlan reads and validates a recovery plan from a YAML file.
func LoadPlan(path string) (*RecoveryPlan, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("recovery plan: read %s: %w", path, err)
	}

	var plan RecoveryPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("recovery plan: parse %s: %w", path, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}
