package vault

import (
	"errors"

	"TrancheVault/internal/phase"
	"TrancheVault/internal/pool"
)

// Validation errors.
var (
	ErrInvalidAssetAddress       = pool.ErrInvalidAssetAddress
	ErrUnsupportedAsset          = pool.ErrUnsupportedAsset
	ErrInvalidAddress            = errors.New("invalid address")
	ErrInsufficientDepositAmount = errors.New("insufficient deposit amount")
	ErrUnevenDepositAmount       = errors.New("uneven deposit amount")
	ErrNoTokensToWithdraw        = errors.New("no tokens to withdraw")
	ErrInsufficientTokenBalance  = errors.New("insufficient token balance")
	ErrEqualAmountsRequired      = errors.New("equal senior and junior amounts required")
)

// State errors.
var (
	ErrEmergencyModeActive     = errors.New("emergency mode active")
	ErrEmergencyModeNotActive  = errors.New("emergency mode not active")
	ErrPhaseTransitionNotReady = phase.ErrTransitionNotReady
	ErrReentrantCall           = errors.New("reentrant call")
)

// Authorization errors.
var ErrUnauthorized = errors.New("caller is not the owner")

// ErrorKind groups vault errors by what the caller has to fix.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindState
	KindAuthorization
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	default:
		return "internal"
	}
}

var (
	validationErrs = []error{
		ErrInvalidAssetAddress, ErrUnsupportedAsset, ErrInvalidAddress,
		ErrInsufficientDepositAmount, ErrUnevenDepositAmount,
		ErrNoTokensToWithdraw, ErrInsufficientTokenBalance, ErrEqualAmountsRequired,
	}
	stateErrs = []error{
		ErrEmergencyModeActive, ErrEmergencyModeNotActive,
		ErrPhaseTransitionNotReady, ErrReentrantCall,
	}
)

// Classify maps err, possibly wrapped, onto the vault's error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return KindValidation
		}
	}
	for _, target := range stateErrs {
		if errors.Is(err, target) {
			return KindState
		}
	}
	if errors.Is(err, ErrUnauthorized) {
		return KindAuthorization
	}
	return KindInternal
}
