package main

import (
	"github.com/spf13/cobra"

	"github.com/deployforge/engine/pkg/deploypipeline"
	"github.com/deployforge/engine/pkg/orchestrator"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy every service in the manifest's environment (§4.4)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.DeployEnvironment(d.details, nil, d.m.ToEnvironment(), d.m.ToSpecs(deploypipeline.ActionCreate))
		report(tx.Commit(ctx))
	},
}

var pauseEnvironmentCmd = &cobra.Command{
	Use:   "pause-environment",
	Short: "Pause every service in the manifest's environment",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.PauseEnvironment(d.details, nil, d.m.ToSpecs(deploypipeline.ActionPause))
		report(tx.Commit(ctx))
	},
}

var deleteEnvironmentCmd = &cobra.Command{
	Use:   "delete-environment",
	Short: "Delete every service in the manifest's environment",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.DeleteEnvironment(d.details, nil, d.m.ToSpecs(deploypipeline.ActionDelete))
		report(tx.Commit(ctx))
	},
}

var restartEnvironmentCmd = &cobra.Command{
	Use:   "restart-environment",
	Short: "Restart every service in the manifest's environment",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.RestartEnvironment(d.details, nil, d.m.ToSpecs(deploypipeline.ActionRestart))
		report(tx.Commit(ctx))
	},
}
