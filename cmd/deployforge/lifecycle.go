package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/deployforge/engine/pkg/orchestrator"
)

var (
	targetK8sVersionFlag string
	forceDeleteFlag      bool
	stateIsEmptyFlag     bool
)

var pauseClusterCmd = &cobra.Command{
	Use:   "pause-cluster",
	Short: "Pause a cluster's compute (§4.5 Pause)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)
		c, err := d.m.ToCluster()
		if err != nil {
			log.Fatalf("building cluster from manifest: %v", err)
		}

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.PauseKubernetes(d.details, nil, c, d.m.TerraformInputs(), func() bool { return false })
		report(tx.Commit(ctx))
	},
}

var resumeClusterCmd = &cobra.Command{
	Use:   "resume-cluster",
	Short: "Resume a paused cluster (§4.5 Resume)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.ResumeKubernetes(d.details, nil, d.m.TerraformInputs())
		report(tx.Commit(ctx))
	},
}

var upgradeClusterCmd = &cobra.Command{
	Use:   "upgrade-cluster",
	Short: "Upgrade a cluster's Kubernetes minor version (§4.5 Upgrade)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		target := targetK8sVersionFlag
		if target == "" {
			target = d.m.TargetK8sVersion
		}
		if target == "" {
			log.Fatalf("no target Kubernetes version: pass --target-version or set targetK8sVersion in the manifest")
		}

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.UpgradeKubernetes(d.details, nil, d.m.TerraformInputs(), target)
		report(tx.Commit(ctx))
	},
}

var deleteClusterCmd = &cobra.Command{
	Use:   "delete-cluster",
	Short: "Tear down a cluster (§4.5 Delete)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.DeleteKubernetes(d.details, nil, d.m.TerraformInputs(), stateIsEmptyFlag, forceDeleteFlag)
		report(tx.Commit(ctx))
	},
}
