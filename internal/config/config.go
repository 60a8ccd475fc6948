package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"TrancheVault/internal/model"
	"TrancheVault/internal/vault"
)

// Config holds all application configuration.
type Config struct {
	Vault struct {
		AssetA     string `yaml:"asset_a"`
		AssetB     string `yaml:"asset_b"`
		Owner      string `yaml:"owner"`
		Address    string `yaml:"address"`
		MinDeposit string `yaml:"min_deposit"`
		Decimals   int32  `yaml:"decimals"`
		StateFile  string `yaml:"state_file"`
		Durations  struct {
			Active      time.Duration `yaml:"active"`
			Claims      time.Duration `yaml:"claims"`
			FinalClaims time.Duration `yaml:"final_claims"`
		} `yaml:"durations"`
	} `yaml:"vault"`
	Keeper struct {
		AutoRestart bool `yaml:"auto_restart"`
	} `yaml:"keeper"`
	Schedule struct {
		// KeeperCron is empty by default: phases only move on an explicit
		// operator call unless a keeper schedule is configured.
		KeeperCron     string `yaml:"keeper_cron"`
		CheckpointCron string `yaml:"checkpoint_cron"`
		ReportCron     string `yaml:"report_cron"`
		MarketCron     string `yaml:"market_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Market struct {
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		SeniorSymbol string `yaml:"senior_symbol"`
		JuniorSymbol string `yaml:"junior_symbol"`
	} `yaml:"market"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
	Log struct {
		Level     string `yaml:"level"`
		SentryDSN string `yaml:"sentry_dsn"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("AMM_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := os.Getenv("AMM_API_KEY"); v != "" {
		c.Market.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("VAULT_OWNER"); v != "" {
		c.Vault.Owner = v
	}
	if v := os.Getenv("VAULT_STATE_FILE"); v != "" {
		c.Vault.StateFile = v
	}
	if v := os.Getenv("KEEPER_AUTO_RESTART"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Keeper.AutoRestart = b
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		c.API.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.Log.SentryDSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.Vault.MinDeposit == "" {
		c.Vault.MinDeposit = vault.DefaultMinDeposit.String()
	}
	if c.Vault.StateFile == "" {
		c.Vault.StateFile = "data/vault_state.json"
	}
	if c.Vault.Durations.Active == 0 {
		c.Vault.Durations.Active = 5 * 24 * time.Hour
	}
	if c.Vault.Durations.Claims == 0 {
		c.Vault.Durations.Claims = 24 * time.Hour
	}
	if c.Vault.Durations.FinalClaims == 0 {
		c.Vault.Durations.FinalClaims = 24 * time.Hour
	}
	if c.Schedule.CheckpointCron == "" {
		c.Schedule.CheckpointCron = "0 */5 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 9 * * *"
	}
	if c.Schedule.MarketCron == "" {
		c.Schedule.MarketCron = "0 0 * * * *"
	}
	if c.Market.SeniorSymbol == "" {
		c.Market.SeniorSymbol = vault.SeniorSymbol
	}
	if c.Market.JuniorSymbol == "" {
		c.Market.JuniorSymbol = vault.JuniorSymbol
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/tranche_vault.db"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"vault.asset_a": c.Vault.AssetA,
		"vault.asset_b": c.Vault.AssetB,
		"vault.owner":   c.Vault.Owner,
	} {
		if !common.IsHexAddress(v) || common.HexToAddress(v) == (common.Address{}) {
			return fmt.Errorf("%s must be a non-zero hex address, got %q", name, v)
		}
	}
	if c.Vault.Address != "" && !common.IsHexAddress(c.Vault.Address) {
		return fmt.Errorf("vault.address must be a hex address, got %q", c.Vault.Address)
	}
	if common.HexToAddress(c.Vault.AssetA) == common.HexToAddress(c.Vault.AssetB) {
		return fmt.Errorf("vault.asset_a and vault.asset_b must differ")
	}
	if _, err := c.MinDepositAmount(); err != nil {
		return err
	}
	if c.Vault.Decimals < 0 || c.Vault.Decimals > 36 {
		return fmt.Errorf("vault.decimals must be within 0..36")
	}
	d := c.Durations()
	if d.Active <= 0 || d.Claims <= 0 || d.FinalClaims <= 0 {
		return fmt.Errorf("vault.durations must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// MinDepositAmount parses vault.min_deposit as a base-10 integer.
func (c *Config) MinDepositAmount() (*big.Int, error) {
	n, ok := new(big.Int).SetString(c.Vault.MinDeposit, 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("vault.min_deposit must be a positive integer, got %q", c.Vault.MinDeposit)
	}
	return n, nil
}

func (c *Config) Durations() model.PhaseDurations {
	return model.PhaseDurations{
		Active:      c.Vault.Durations.Active,
		Claims:      c.Vault.Durations.Claims,
		FinalClaims: c.Vault.Durations.FinalClaims,
	}
}

func (c *Config) OwnerAddress() common.Address { return common.HexToAddress(c.Vault.Owner) }

// CustodyAddress is vault.address, or the address a contract deployed by the
// owner at nonce 0 would get.
func (c *Config) CustodyAddress() common.Address {
	if c.Vault.Address != "" {
		return common.HexToAddress(c.Vault.Address)
	}
	return crypto.CreateAddress(c.OwnerAddress(), 0)
}

// VaultConfig builds the vault configuration. Call Validate first.
func (c *Config) VaultConfig() (vault.Config, error) {
	minDeposit, err := c.MinDepositAmount()
	if err != nil {
		return vault.Config{}, err
	}
	return vault.Config{
		AssetA:     common.HexToAddress(c.Vault.AssetA),
		AssetB:     common.HexToAddress(c.Vault.AssetB),
		Owner:      c.OwnerAddress(),
		MinDeposit: minDeposit,
		Durations:  c.Durations(),
	}, nil
}
