package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "screencycler",
		Short: "ScreenCycler - cycle through monitor layouts from your status bar",
		Long: `ScreenCycler detects connected outputs, lists every clone and extend
layout they can form, and applies the one you pick with xrandr.

Features:
  • Scroll through layouts from i3bar/swaybar
  • Per-output position hints and workspace placement
  • Automatic fallback to the laptop panel when a monitor disappears
  • Startup layout applied once its outputs are connected
  • REST API and WebSocket stream for other integrations`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(viper.GetString("log_level"), viper.GetBool("pretty"), nil)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/screencycler/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable log output")
	rootCmd.PersistentFlags().String("poll-interval", "", "refresh interval (e.g. 10s)")
	rootCmd.PersistentFlags().String("source", "", "topology source (xrandr or randr)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.BindPFlag("poll_interval", rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.BindPFlag("topology_source", rootCmd.PersistentFlags().Lookup("source"))

	viper.SetEnvPrefix("SCREENCYCLER")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config file and applies command line overrides in
// memory.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Override port from flag if provided
	if port := viper.GetInt("server_port"); port > 0 {
		configMgr.SetPort(port)
	}

	// Override log level from flag if provided
	if level := viper.GetString("log_level"); level != "" {
		configMgr.SetLogLevel(level)
	}

	if s := viper.GetString("poll_interval"); s != "" {
		d, err := config.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		configMgr.SetPollInterval(d)
	}

	if src := viper.GetString("topology_source"); src != "" {
		configMgr.SetTopologySource(src)
	}

	cfg := configMgr.Get()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	return configMgr, nil
}
