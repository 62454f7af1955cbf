package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/project-flogo/core/support/log"
	"github.com/spf13/cobra"

	"github.com/project-flogo/petriflow"
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/support"
)

var envFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "petriflow",
	Short:         "petriflow runs workflow nets",
	Version:       petriflow.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFile, !cmd.Flags().Changed("env"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file with PETRIFLOW_* settings")
}

// loadEnv loads the env file, a missing default file is not an error
func loadEnv(file string, optional bool) error {
	if file == "" {
		return nil
	}
	err := godotenv.Load(file)
	if err != nil && optional && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// readDefinitionRep reads a net from a path or from a file, http or https uri
func readDefinitionRep(path string) (*definition.DefinitionRep, error) {
	if support.IsURI(path) {
		return support.NewRemoteNetProvider(log.ChildLogger(log.RootLogger(), "petriflow")).GetNet(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rep := &definition.DefinitionRep{}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, fmt.Errorf("unable to parse net '%s': %w", path, err)
	}
	return rep, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
