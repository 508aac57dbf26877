package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is replaced at link time.
var version = "dev"

// envPrefix is prepended to the environment variables that set flags, as in
// SCHD_LOG_LEVEL=debug.
const envPrefix = "SCHD"

// newViper creates the settings store. Environment variables override the
// model, and flags override the environment.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

func newRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:   "schdsim",
		Short: "schdsim simulates threads scheduled onto execution units.",
		Long: `schdsim simulates threads of tasks that a planner dispatches ` +
			`onto execution units. The units slow down when they overload ` +
			`the common resources they share.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			return v.BindPFlags(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env",
		"File with environment variables to load before anything else.")

	rootCmd.AddCommand(
		newRunCmd(v),
		newCheckCmd(),
		newTraceCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// loadEnvFile loads the variables of a dotenv file. A missing file is not an
// error. Variables already in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schdsim %s\n", version)
		},
	}
}
