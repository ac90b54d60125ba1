package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	TargetVersion          string `mapstructure:"target_version"`
	InstallerAppPath       string `mapstructure:"installer_app_path"`
	MaxPostponements       int    `mapstructure:"max_postponements"`
	PromptTimeoutSeconds   int    `mapstructure:"prompt_timeout_seconds"`
	ContactInfo            string `mapstructure:"contact_info"`
	DeferralOffsetsSeconds []int  `mapstructure:"deferral_offsets_seconds"`

	MinFreeSpaceGB           float64 `mapstructure:"min_free_space_gb"`
	PowerPollIntervalSeconds int     `mapstructure:"power_poll_interval_seconds"`
	PowerPollMaxAttempts     int     `mapstructure:"power_poll_max_attempts"`

	HelperPath     string `mapstructure:"helper_path"`
	IconPath       string `mapstructure:"icon_path"`
	CounterPath    string `mapstructure:"counter_path"`
	InstallLogPath string `mapstructure:"install_log_path"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	AuditMaxSizeMB int `mapstructure:"audit_max_size_mb"`
}

func Default() *Config {
	return &Config{
		MaxPostponements:         3,
		PromptTimeoutSeconds:     7200,
		DeferralOffsetsSeconds:   []int{3600, 7200, 14400},
		MinFreeSpaceGB:           40,
		PowerPollIntervalSeconds: 15,
		PowerPollMaxAttempts:     20,
		HelperPath:               "/Library/Application Support/JAMF/bin/jamfHelper.app/Contents/MacOS/jamfHelper",
		CounterPath:              filepath.Join(DataDir(), "postponements"),
		InstallLogPath:           "/var/log/upgrade-agent-install.log",
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("upgrade-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DataDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("UPGRADE_AGENT")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DataDir is the per-machine directory holding config, the postponement
// counter, and the audit trail. Shared by all local users, owned by root.
func DataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "WinsEng", "UpgradeAgent")
	case "darwin":
		return "/Library/Application Support/WinsEng/UpgradeAgent"
	default:
		return "/var/lib/upgrade-agent"
	}
}
