package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/cache"
)

var configCheck string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default job configuration",
	Long: `Print the default TOML job configuration, ready to be edited and passed to
"otr route --config". With --check the given file is validated instead.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&configCheck, "check", "", "validate a configuration file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if configCheck != "" {
		cfg, err := loadConfig(configCheck)
		if err != nil {
			return err
		}
		printSuccess(w, "%s is valid", configCheck)
		printKeyValue(w, "Fingerprint", cache.Hash([]byte(cfg.Fingerprint()))[:12])
		return nil
	}
	cfg, _ := loadConfig("")
	return cfg.Encode(w)
}
