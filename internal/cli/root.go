package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultEnvFile    = ".env"
	defaultConfigFile = "forwarder.yaml"
	defaultDSN        = "file:forwarder.db?_foreign_keys=on"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Driver     string
	DSN        string
	Verbose    bool
}

// ValidDrivers lists the supported database drivers.
var ValidDrivers = []string{DriverSQLite, DriverPostgres}

// NewRootCommand creates the forwarder CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "forwarder",
		Short: "SMS to push notification forwarder",
		Long: `Forwarder ingests SMS fragments, reassembles them into messages and
delivers each message to every enabled push channel with retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(opts.EnvFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			if !cmd.Flags().Changed("driver") {
				if driver := os.Getenv("FORWARDER_DB_DRIVER"); driver != "" {
					opts.Driver = driver
				}
			}
			if !cmd.Flags().Changed("dsn") {
				if dsn := os.Getenv("FORWARDER_DB_DSN"); dsn != "" {
					opts.DSN = dsn
				}
			}
			opts.Driver = strings.ToLower(strings.TrimSpace(opts.Driver))
			if !isValidDriver(opts.Driver) {
				return fmt.Errorf("invalid driver %q: must be one of %v", opts.Driver, ValidDrivers)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file (default forwarder.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded before config")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", DriverSQLite, "database driver (sqlite3|postgres)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", defaultDSN, "database connection string")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewDecryptCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))

	return cmd
}

// loadEnvFile applies a dotenv file without overriding the real environment.
// A missing default file is ignored; a missing explicit file is an error.
func loadEnvFile(path string, explicit bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func isValidDriver(driver string) bool {
	for _, d := range ValidDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
