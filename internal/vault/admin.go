package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/model"
)

func (v *Vault) onlyOwner(caller common.Address) error {
	if v.owner == (common.Address{}) || caller != v.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// AdvanceIfDue moves to the next phase once the current phase's duration
// has elapsed. In FINAL_CLAIMS it changes nothing; see RestartCycle.
func (v *Vault) AdvanceIfDue(ctx context.Context, caller common.Address) (current model.Phase, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return 0, err
	}
	tr, ok, err := v.clock.AdvanceIfDue(v.now())
	if err != nil {
		return v.clock.Current(), err
	}
	if ok {
		f.emit(model.PhaseTransitioned{OldPhase: tr.From, NewPhase: tr.To, At: tr.At})
		log.WithFields(logrus.Fields{"from": tr.From, "to": tr.To}).Info("phase advanced")
	}
	return v.clock.Current(), nil
}

// ForceAdvance moves to the next phase without waiting for the current one
// to elapse. It shortens the coverage window at the owner's discretion.
func (v *Vault) ForceAdvance(ctx context.Context, caller common.Address) (current model.Phase, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return 0, err
	}
	tr, ok := v.clock.ForceAdvance(v.now())
	if ok {
		f.emit(model.PhaseTransitioned{OldPhase: tr.From, NewPhase: tr.To, Forced: true, At: tr.At})
		log.WithFields(logrus.Fields{"from": tr.From, "to": tr.To}).Warn("phase force-advanced")
	}
	return v.clock.Current(), nil
}

// RestartCycle starts a new cycle in ACTIVE once FINAL_CLAIMS has elapsed.
// Pool balances and TotalIssued carry over unchanged.
func (v *Vault) RestartCycle(ctx context.Context, caller common.Address) (cycle uint64, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return 0, err
	}
	now := v.now()
	cycle, err = v.clock.RestartCycle(now)
	if err != nil {
		return 0, err
	}
	f.emit(model.CycleStarted{Cycle: cycle, At: now})
	log.WithField("cycle", cycle).Info("cycle restarted")
	return cycle, nil
}

// TransferOwnership hands the admin role to newOwner.
func (v *Vault) TransferOwnership(ctx context.Context, caller, newOwner common.Address) (err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner is the zero address", ErrInvalidAddress)
	}
	v.setOwner(f, newOwner)
	return nil
}

// RenounceOwnership removes the owner. No admin operation can run afterwards.
func (v *Vault) RenounceOwnership(ctx context.Context, caller common.Address) (err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	v.setOwner(f, common.Address{})
	return nil
}

func (v *Vault) setOwner(f *frame, next common.Address) {
	prev := v.owner
	v.owner = next
	f.emit(model.OwnershipTransferred{PreviousOwner: prev, NewOwner: next, At: v.now()})
	log.WithFields(logrus.Fields{"previous": prev.Hex(), "new": next.Hex()}).Warn("ownership transferred")
}
