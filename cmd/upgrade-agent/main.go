package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/winseng/upgrade-agent/internal/audit"
	"github.com/winseng/upgrade-agent/internal/config"
	"github.com/winseng/upgrade-agent/internal/installer"
	"github.com/winseng/upgrade-agent/internal/logging"
	"github.com/winseng/upgrade-agent/internal/prompt"
	"github.com/winseng/upgrade-agent/internal/store"
	"github.com/winseng/upgrade-agent/internal/sysinfo"
	"github.com/winseng/upgrade-agent/internal/workflow"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "upgrade-agent",
	Short: "Managed macOS upgrade orchestrator",
	Long:  `upgrade-agent drives the deferred, user-mediated rollout of a major macOS upgrade on managed Macs. It is meant to be invoked once per day by the management framework; its exit code tells the scheduler what happened.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pass of the upgrade workflow",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runWorkflow())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print postponement state and effective settings",
	Run: func(cmd *cobra.Command, args []string) {
		if err := printStatus(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("upgrade-agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is upgrade-agent.yaml in the data directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWorkflow() int {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return int(workflow.ExitUnknown)
	}

	initLogging(cfg)

	log := logging.L("main")
	for _, err := range cfg.Validate() {
		log.Warn("config problem", logging.KeyError, err)
	}
	if cfg.TargetVersion == "" || cfg.InstallerAppPath == "" {
		log.Error("target_version and installer_app_path must be configured")
		return int(workflow.ExitUnknown)
	}

	trail, err := audit.Open(config.DataDir(), cfg.AuditMaxSizeMB)
	if err != nil {
		// The decision trail is valuable but never worth blocking an upgrade.
		log.Warn("audit trail unavailable", logging.KeyError, err)
	}
	defer trail.Close()

	controller := workflow.New(
		cfg,
		store.New(cfg.CounterPath),
		sysinfo.Querier{},
		prompt.NewJamfHelper(cfg.HelperPath, cfg.IconPath),
		installer.New(cfg.InstallerAppPath, cfg.InstallLogPath),
		trail,
	)

	return int(controller.Run(context.Background()))
}

func initLogging(cfg *config.Config) {
	var output io.Writer
	if cfg.LogFile != "" {
		if rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups); err == nil {
			output = logging.TeeWriter(os.Stderr, rw)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
}

type statusReport struct {
	TargetVersion     string `yaml:"target_version"`
	InstalledVersion  string `yaml:"installed_version,omitempty"`
	PostponementsUsed int    `yaml:"postponements_used"`
	MaxPostponements  int    `yaml:"max_postponements"`
	Remaining         int    `yaml:"remaining"`
	CounterPath       string `yaml:"counter_path"`
	InstallerPresent  bool   `yaml:"installer_present"`
}

func printStatus() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	count, err := store.New(cfg.CounterPath).Load()
	if err != nil {
		return fmt.Errorf("read postponement counter: %w", err)
	}

	remaining := cfg.MaxPostponements - count
	if remaining < 0 {
		remaining = 0
	}

	env := sysinfo.Querier{}
	installed, _ := env.OSVersion()

	report := statusReport{
		TargetVersion:     cfg.TargetVersion,
		InstalledVersion:  installed,
		PostponementsUsed: count,
		MaxPostponements:  cfg.MaxPostponements,
		Remaining:         remaining,
		CounterPath:       cfg.CounterPath,
		InstallerPresent:  env.PayloadPresent(cfg.InstallerAppPath),
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	fmt.Print(string(out))
	return nil
}
