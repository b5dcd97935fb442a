package main

import (
	"log"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var version = "(unknown)"

// rootCmd is the base command; every cluster/environment subcommand hangs
// off of it and shares the --manifest flag.
var rootCmd = &cobra.Command{
	Use:   "deployforge",
	Short: "Drives cluster and environment Transactions from a manifest file",
}

// Execute adds all child commands to the root command. It is called by
// main.main and should only run once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = bi.Main.Version
	} else {
		log.Printf("failed to read build info to get version")
	}

	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "deployforge.yaml", "path to the cluster/environment manifest")

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(pauseClusterCmd)
	rootCmd.AddCommand(resumeClusterCmd)
	rootCmd.AddCommand(upgradeClusterCmd)
	rootCmd.AddCommand(deleteClusterCmd)

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(pauseEnvironmentCmd)
	rootCmd.AddCommand(deleteEnvironmentCmd)
	rootCmd.AddCommand(restartEnvironmentCmd)

	upgradeClusterCmd.Flags().StringVar(&targetK8sVersionFlag, "target-version", "", "Kubernetes version to upgrade to (defaults to the manifest's targetK8sVersion)")
	deleteClusterCmd.Flags().BoolVar(&forceDeleteFlag, "force", false, "delete even though the cluster's Terraform state is not empty")
	deleteClusterCmd.Flags().BoolVar(&stateIsEmptyFlag, "state-is-empty", false, "declare the cluster's Terraform state empty, so the delete is not refused")
}
