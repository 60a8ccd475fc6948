package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	cli "gopkg.in/urfave/cli.v1"

	"TrancheVault/internal/vault"
)

func initCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Vault.StateFile); err == nil {
		return fmt.Errorf("state file %s already exists", cfg.Vault.StateFile)
	}
	v, _, err := openVault(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "initialized %s (owner %s, custody %s)\n",
		cfg.Vault.StateFile, v.Owner().Hex(), cfg.CustodyAddress().Hex())
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	v, _, err := openVault(cfg)
	if err != nil {
		return err
	}
	return printJSON(c, v.Status())
}

type preview struct {
	Senior    string `json:"senior"`
	Junior    string `json:"junior"`
	Asset     string `json:"asset,omitempty"`
	AssetAOut string `json:"asset_a_out,omitempty"`
	AssetBOut string `json:"asset_b_out,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
}

func previewCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	senior, ok := new(big.Int).SetString(c.String(seniorFlag.Name), 10)
	if !ok {
		return fmt.Errorf("--senior: invalid integer %q", c.String(seniorFlag.Name))
	}
	junior, ok := new(big.Int).SetString(c.String(juniorFlag.Name), 10)
	if !ok {
		return fmt.Errorf("--junior: invalid integer %q", c.String(juniorFlag.Name))
	}
	v, _, err := openVault(cfg)
	if err != nil {
		return err
	}

	out := preview{Senior: senior.String(), Junior: junior.String()}
	if asset := c.String(assetFlag.Name); asset != "" {
		if !common.IsHexAddress(asset) {
			return fmt.Errorf("%w: %q", vault.ErrUnsupportedAsset, asset)
		}
		addr := common.HexToAddress(asset)
		amt, err := v.CalculateSingleAssetWithdrawal(senior, junior, addr)
		if err != nil {
			return err
		}
		out.Asset, out.AmountOut = addr.Hex(), amt.String()
	} else {
		a, b, err := v.CalculateWithdrawalAmounts(senior, junior)
		if err != nil {
			return err
		}
		out.AssetAOut, out.AssetBOut = a.String(), b.String()
	}
	return printJSON(c, out)
}
