package main

import (
	"fmt"
	"os"

	"zapdesk/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedEntry is one manager in the seed file.
type seedEntry struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register staff phones from a YAML file",
		Long: `Reads a YAML list of managers ({name, phone} pairs) and registers them
as staff. Seeding is idempotent: phones already registered are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("cannot read seed file: %w", err)
			}

			var entries []seedEntry
			if err := yaml.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("cannot parse seed file: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("seed file contains no managers")
			}

			db, closeDB, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			for _, entry := range entries {
				if entry.Name == "" || entry.Phone == "" {
					return fmt.Errorf("seed entries need both name and phone, got %+v", entry)
				}
				if err := db.AddManager(cmd.Context(), entry.Name, entry.Phone); err != nil {
					return fmt.Errorf("cannot register manager %s: %w", entry.Phone, err)
				}
				logger.Info("manager registered", "name", entry.Name, "phone", entry.Phone)
			}

			fmt.Printf("Seeded %d manager(s)\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "managers.yaml", "YAML file with managers to register")
	return cmd
}
