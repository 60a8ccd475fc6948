package model

import "github.com/ethereum/go-ethereum/common"

// Preference selects how a regular withdrawal is paid out: split across both
// pool assets by live composition, or drawn from one specific asset.
type Preference struct {
	asset    common.Address
	specific bool
}

// Either pays out of both assets in proportion to the pool composition.
func Either() Preference { return Preference{} }

// Specific pays out of a single asset, capped by its accounted balance.
func Specific(asset common.Address) Preference {
	return Preference{asset: asset, specific: true}
}

// IsEither reports whether the payout is split across both assets.
func (p Preference) IsEither() bool { return !p.specific }

// Asset returns the requested asset and true for a specific preference.
func (p Preference) Asset() (common.Address, bool) { return p.asset, p.specific }

func (p Preference) String() string {
	if !p.specific {
		return "either"
	}
	return p.asset.Hex()
}
