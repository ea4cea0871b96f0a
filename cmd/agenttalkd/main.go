// Command agenttalkd is the AgentTalk daemon: a single-instance background
// service exposing a loopback HTTP control plane and a system-tray icon.
//
// Grounded on the teacher's main.go / pkg/tts/config.go cobra+viper usage,
// narrowed to the one `serve` entry point this daemon needs — CLI argument
// parsing beyond that is out of scope.
package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agenttalk/agenttalk/internal/configstore"
	"github.com/agenttalk/agenttalk/internal/supervisor"
)

// envConfig captures daemon tuning knobs overridable from the environment,
// matching the teacher's caarlos0/env/v11 usage in main.go.
type envConfig struct {
	ConfigDir string `env:"AGENTTALK_CONFIG_DIR"`
	Debug     bool   `env:"AGENTTALK_DEBUG"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "agenttalkd",
		Short: "AgentTalk speech daemon",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the AgentTalk daemon in the foreground",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config-dir", "", "override the config/state directory")
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
	viper.BindPFlag("config-dir", serveCmd.Flags().Lookup("config-dir"))
	viper.BindPFlag("debug", serveCmd.Flags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return fmt.Errorf("agenttalkd: parse environment: %w", err)
	}

	configDir := viper.GetString("config-dir")
	if configDir == "" {
		configDir = ec.ConfigDir
	}
	if configDir == "" {
		configDir = configstore.DefaultDir()
	}

	opts := supervisor.Options{
		ConfigDir: configDir,
		Debug:     viper.GetBool("debug") || ec.Debug,
	}

	os.Exit(supervisor.Run(opts))
	return nil
}
