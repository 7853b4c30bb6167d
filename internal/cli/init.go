package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"framesearch/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default framesearch.yaml into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := writeDefaultConfig(GetRootDir(), initForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

// writeDefaultConfig saves the default configuration under dir and creates
// the data directory next to it.
func writeDefaultConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, "framesearch.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.EnsureDataDir(dir); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
