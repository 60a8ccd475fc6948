package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"TrancheVault/internal/config"
	"TrancheVault/internal/custody"
	"TrancheVault/internal/vault"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "Path to the YAML config file",
		Value:  "configs/config.yaml",
		EnvVar: "CONFIG_PATH",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log.level",
		Usage: "Log level (trace|debug|info|warn|error), overrides log.level in the config",
	}
	seniorFlag = cli.StringFlag{
		Name:  "senior",
		Usage: "Senior tokens to burn (integer)",
		Value: "0",
	}
	juniorFlag = cli.StringFlag{
		Name:  "junior",
		Usage: "Junior tokens to burn (integer)",
		Value: "0",
	}
	assetFlag = cli.StringFlag{
		Name:  "asset",
		Usage: "Preview a single-asset withdrawal in this asset",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "vaultd"
	app.Usage = "Two-tranche insurance vault service"
	app.Version = "0.1.0"
	app.Writer = os.Stdout
	app.Flags = []cli.Flag{configFlag, logLevelFlag}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Run the keeper, status API and operator bot",
			Action: runCommand,
		},
		{
			Name:   "init",
			Usage:  "Write a fresh vault state file",
			Action: initCommand,
		},
		{
			Name:   "status",
			Usage:  "Print vault status from the state file",
			Action: statusCommand,
		},
		{
			Name:   "preview",
			Usage:  "Preview a withdrawal against the state file",
			Flags:  []cli.Flag{seniorFlag, juniorFlag, assetFlag},
			Action: previewCommand,
		},
	}
	app.Action = runCommand
	return app
}

// loadConfig reads and validates the config, then sets up logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if lvl := c.GlobalString(logLevelFlag.Name); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if err := setupLogging(cfg.Log.Level, cfg.Log.SentryDSN); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level, sentryDSN string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if sentryDSN == "" {
		return nil
	}
	hook, err := logrus_sentry.NewSentryHook(sentryDSN, []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	})
	if err != nil {
		return fmt.Errorf("sentry hook: %w", err)
	}
	hook.Timeout = 5 * time.Second
	logrus.AddHook(hook)
	return nil
}

// openVault restores the vault from the configured state file. The custody
// ledger is in memory; the service only moves assets through it in-process.
func openVault(cfg *config.Config) (*vault.Vault, *custody.Ledger, error) {
	vc, err := cfg.VaultConfig()
	if err != nil {
		return nil, nil, err
	}
	ledger := custody.NewLedger(cfg.CustodyAddress())
	v, err := vault.Open(vc, ledger, vault.WithStore(vault.NewJSONStore(cfg.Vault.StateFile)))
	if err != nil {
		return nil, nil, err
	}
	return v, ledger, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
