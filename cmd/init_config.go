package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reality-cli/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		starter := config.Config{
			Store: config.StoreConfig{
				Driver: "sqlite",
				Path:   ".reality/history.db",
			},
			Report: config.ReportConfig{Dir: ".reality"},
			Cache: config.CacheConfig{
				Dir:      ".reality/cache",
				TTLHours: 1,
			},
			Filesystem: config.FilesystemConfig{
				Root:          ".",
				RequiredFiles: []string{"go.mod", "README.md"},
			},
			VCS: config.VCSConfig{RepoPath: "."},
			Trust: config.TrustConfig{
				Hierarchy: []string{"vcs", "filesystem", "database", "deployment", "integration", "task-tracker"},
			},
			Server: config.ServerConfig{Port: 8080},
			Log: config.LogConfig{
				Level:  "info",
				Format: "json",
			},
		}

		data, err := yaml.Marshal(&starter)
		if err != nil {
			return err
		}

		header := []byte("# reality-cli configuration.\n# Credentials (database.key, task_tracker.token) are better supplied via\n# REALITY_-prefixed environment variables than committed here.\n")
		if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
