package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookedbarber/cacheops/internal/config"
	"github.com/bookedbarber/cacheops/internal/recovery"
	"github.com/bookedbarber/cacheops/internal/store"
)

func newRecoveryCmd() *cobra.Command {
	var (
		region   string
		planPath string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "ElastiCache snapshot, restore and disaster-recovery operations",
	}

	cmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (default from CACHEOPS_AWS_REGION)")
	cmd.PersistentFlags().StringVar(&planPath, "plan", "", "recovery plan YAML to validate and echo")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// build assembles the manager for a subcommand invocation.
	build := func(ctx context.Context) (*recovery.Manager, *zap.Logger, error) {
		cfg, logger, err := setup(logLevel)
		if err != nil {
			return nil, nil, err
		}
		if region != "" {
			cfg.AWS.Region = region
		}

		if planPath != "" {
			plan, err := recovery.LoadPlan(planPath)
			if err != nil {
				return nil, nil, err
			}
			logger.Info("recovery plan loaded",
				zap.String("cluster_id", plan.ClusterID),
				zap.Int("retention_days", plan.RetentionDays),
				zap.Int("rto_minutes", plan.RTOMinutes),
				zap.Int("rpo_minutes", plan.RPOMinutes))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}

		manager := recovery.NewManager(
			elasticache.NewFromConfig(awsCfg),
			logger,
			recovery.WithSnapshotPrefix(cfg.Recovery.SnapshotPrefix),
			recovery.WithConnectFunc(func(ctx context.Context, addr string) (store.Store, error) {
				return store.EndpointFactory(cfg.Redis.Password)(ctx, addr)
			}),
		)
		return manager, logger, nil
	}

	cmd.AddCommand(
		newCreateSnapshotCmd(build),
		newRestoreCmd(build),
		newListSnapshotsCmd(build),
		newCleanupSnapshotsCmd(build),
		newExportDataCmd(build),
		newTestRecoveryCmd(build),
	)
	return cmd
}

type managerBuilder func(ctx context.Context) (*recovery.Manager, *zap.Logger, error)

func opContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printResult renders a recovery result and converts a failed outcome into a
// non-zero exit code.
func printResult(result *recovery.RecoveryResult) error {
	fmt.Printf("%s %s: %s (%.1fs)\n",
		statusMark(result.Outcome), result.Operation, result.Message,
		result.RecoveryTime.Seconds())
	for name, check := range result.Validation {
		fmt.Printf("  %-20s %s\n", name+":", check)
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if !result.Succeeded() {
		return fmt.Errorf("%s failed", result.Operation)
	}
	return nil
}

func statusMark(outcome recovery.OutcomeState) string {
	switch outcome {
	case recovery.OutcomeSuccess:
		return "✓"
	case recovery.OutcomePartialSuccess:
		return "~"
	default:
		return "✗"
	}
}

func newCreateSnapshotCmd(build managerBuilder) *cobra.Command {
	var clusterID, snapshotID, description string

	cmd := &cobra.Command{
		Use:   "create-snapshot",
		Short: "Create and validate a manual snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return printResult(manager.CreateManualSnapshot(ctx, clusterID, snapshotID, description))
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "source cluster id")
	cmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "snapshot name (default: timestamped)")
	cmd.Flags().StringVar(&description, "description", "", "snapshot description tag")
	_ = cmd.MarkFlagRequired("cluster-id")
	return cmd
}

func newRestoreCmd(build managerBuilder) *cobra.Command {
	var (
		snapshotID     string
		newClusterID   string
		nodeType       string
		securityGroups []string
		subnetGroup    string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a snapshot into a new cluster and validate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return printResult(manager.RestoreFromSnapshot(ctx, snapshotID, newClusterID, recovery.RestoreOptions{
				NodeType:         nodeType,
				SecurityGroupIDs: securityGroups,
				SubnetGroup:      subnetGroup,
			}))
		},
	}
	cmd.Flags().StringVar(&snapshotID, "snapshot-id", "", "snapshot to restore")
	cmd.Flags().StringVar(&newClusterID, "new-cluster-id", "", "id for the restored cluster")
	cmd.Flags().StringVar(&nodeType, "node-type", "", "override the snapshot's node type")
	cmd.Flags().StringSliceVar(&securityGroups, "security-groups", nil, "security group ids")
	cmd.Flags().StringVar(&subnetGroup, "subnet-group", "", "cache subnet group name")
	_ = cmd.MarkFlagRequired("snapshot-id")
	_ = cmd.MarkFlagRequired("new-cluster-id")
	return cmd
}

func newListSnapshotsCmd(build managerBuilder) *cobra.Command {
	var clusterID string

	cmd := &cobra.Command{
		Use:   "list-snapshots",
		Short: "List project snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			snapshots, err := manager.ListSnapshots(ctx, clusterID)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Println("no snapshots found")
				return nil
			}
			for _, s := range snapshots {
				fmt.Printf("%-50s %-12s %-20s %s %s\n",
					s.SnapshotID, s.Status, s.CreationTime.Format("2006-01-02 15:04:05"),
					s.NodeType, s.Size)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "filter to one source cluster")
	return cmd
}

func newCleanupSnapshotsCmd(build managerBuilder) *cobra.Command {
	var (
		clusterID     string
		retentionDays int
	)

	cmd := &cobra.Command{
		Use:   "cleanup-snapshots",
		Short: "Delete snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			report := manager.CleanupOldSnapshots(ctx, clusterID, retentionDays)
			fmt.Printf("deleted %d, kept %d\n", len(report.Deleted), len(report.Kept))
			for _, e := range report.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			if len(report.Errors) > 0 && len(report.Deleted)+len(report.Kept) == 0 {
				return fmt.Errorf("cleanup sweep failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "filter to one source cluster")
	cmd.Flags().IntVar(&retentionDays, "retention-days", 7, "keep snapshots newer than this many days")
	return cmd
}

func newExportDataCmd(build managerBuilder) *cobra.Command {
	var clusterID, outputDir string

	cmd := &cobra.Command{
		Use:   "export-data",
		Short: "Export a cluster's keyspace to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if outputDir == "" {
				cfg := config.Default()
				config.LoadFromEnv(cfg)
				outputDir = cfg.Recovery.OutputDir
			}

			report := manager.ExportClusterData(ctx, clusterID, outputDir)
			fmt.Printf("%s export: %s\n", statusMark(report.Outcome), report.Message)
			for _, e := range report.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			if report.Outcome == recovery.OutcomeFailure {
				return fmt.Errorf("export failed")
			}
			fmt.Printf("file: %s\n", report.ExportFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "cluster to export")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the export file")
	_ = cmd.MarkFlagRequired("cluster-id")
	return cmd
}

func newTestRecoveryCmd(build managerBuilder) *cobra.Command {
	var clusterID string

	cmd := &cobra.Command{
		Use:   "test-recovery",
		Short: "Run a full disaster-recovery drill against a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := opContext()
			defer stop()

			manager, logger, err := build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return printResult(manager.TestDisasterRecovery(ctx, clusterID))
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "cluster to drill against")
	_ = cmd.MarkFlagRequired("cluster-id")
	return cmd
}
