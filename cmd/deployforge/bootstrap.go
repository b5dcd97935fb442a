package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/deployforge/engine/pkg/orchestrator"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a cluster from the manifest (§4.5 Bootstrap)",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		d := loadDeps(ctx)

		c, err := d.m.ToCluster()
		if err != nil {
			log.Fatalf("building cluster from manifest: %v", err)
		}

		tx := orchestrator.New(d.infraCtx, d.orch)
		tx.CreateKubernetes(d.details, nil, c, d.m.TerraformInputs(), d.m.ClusterName, nil)
		report(tx.Commit(ctx))
	},
}
