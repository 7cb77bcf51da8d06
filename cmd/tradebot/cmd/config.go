package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/tradebot/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print a default configuration",
	Long:  `Print a runnable default configuration in YAML, ready to edit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.Default())
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
