package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"zapdesk/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your zapdesk installation",
		Long: `Verifies that zapdesk's configuration, credentials, and database are
correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("zapdesk doctor v%s\n\n", version)

			passed, failed := 0, 0

			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'zapdesk init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// Unexpanded ${VAR} placeholders mean the env var was not set.
			for name, value := range map[string]string{
				"whatsapp.accessToken":   cfg.WhatsApp.AccessToken,
				"whatsapp.phoneNumberId": cfg.WhatsApp.PhoneNumberID,
				"whatsapp.verifyToken":   cfg.WhatsApp.VerifyToken,
			} {
				switch {
				case value == "":
					printFail(name, "empty")
					failed++
				case strings.HasPrefix(value, "${"):
					printFail(name, fmt.Sprintf("environment variable %s not set", value))
					failed++
				default:
					printPass(name, "set")
					passed++
				}
			}

			if cfg.Storage.InMemory {
				printPass("Storage", "in-memory registry (no database)")
				passed++
			} else if err := checkDatabase(cfg.Storage.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Storage.DBPath)
				passed++
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

func checkDatabase(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Ping()
}

func printPass(check, detail string) {
	fmt.Printf("  ✓ %-24s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  ✗ %-24s %s\n", check, detail)
}
