package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/thingamajig/internal/ci"
	"github.com/spf13/cobra"
)

// NewCICommand creates the 'thingamajig ci' parent command
func NewCICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Repository CI helpers",
	}
	cmd.AddCommand(newCICheckCommand())
	return cmd
}

func newCICheckCommand() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "check [workflow-file]",
		Short: "Check the CI workflow against the repository",
		Long: `Check that the CI workflow builds, tests, cross-compiles and uploads
this project in that order, on pushes and pull requests to main, with the
color, target and binary environment set and an artifact path derived
from them.

The workflow defaults to ` + ci.DefaultPath + ` under the repository root,
found by walking up to the nearest go.mod.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()

			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				if root, err = ci.FindRoot(cwd); err != nil {
					return err
				}
			}
			path := filepath.Join(root, ci.DefaultPath)
			if len(args) == 1 {
				path = args[0]
			}

			wf, err := ci.LoadWorkflow(path)
			if err != nil {
				return err
			}
			exp := ci.DefaultExpectations()
			if err := wf.Validate(exp); err != nil {
				fmt.Fprintf(output, "✗ %s\n", path)
				return err
			}
			if err := ci.CheckLayout(root, exp); err != nil {
				fmt.Fprintf(output, "✗ %s\n", path)
				return err
			}

			fmt.Fprintf(output, "✓ %s publishes %s\n", path, ci.ArtifactPath(exp))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Repository root (default: nearest directory with go.mod)")

	return cmd
}
