package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/model"
	"TrancheVault/internal/token"
)

type frameKey struct{}

// frame is one mutating call. It holds the vault's writer lock for its whole
// lifetime, records how to undo every ledger effect, and buffers events
// until the call commits.
type frame struct {
	v      *Vault
	ctx    context.Context
	undo   []func()
	events []model.Event
}

// begin rejects calls that arrive through a context handed to custody by an
// in-flight call, then takes the writer lock.
func (v *Vault) begin(ctx context.Context) (*frame, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if active, _ := ctx.Value(frameKey{}).(*Vault); active == v {
		return nil, ErrReentrantCall
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.busy.Store(true)
	return &frame{v: v, ctx: context.WithValue(ctx, frameKey{}, v)}, nil
}

// end commits the frame when *errp is nil and rolls every effect back
// otherwise. It must be deferred directly so it can observe panics.
func (f *frame) end(errp *error) {
	v := f.v
	if r := recover(); r != nil {
		f.revert()
		v.busy.Store(false)
		v.mu.Unlock()
		panic(r)
	}
	if *errp != nil {
		f.revert()
		f.events = nil
	} else if len(f.events) > 0 {
		v.save()
	}
	v.busy.Store(false)
	v.mu.Unlock()

	for _, e := range f.events {
		v.publish(e)
	}
}

func (f *frame) revert() {
	for i := len(f.undo) - 1; i >= 0; i-- {
		f.undo[i]()
	}
	f.undo = nil
}

func (f *frame) emit(e model.Event) { f.events = append(f.events, e) }

func (f *frame) onRevert(fn func()) { f.undo = append(f.undo, fn) }

func (f *frame) mint(m *token.Minter, to common.Address, amount *big.Int) error {
	if err := m.Mint(to, amount); err != nil {
		return err
	}
	f.onRevert(func() { mustUndo(m.Burn(to, amount)) })
	return nil
}

func (f *frame) burn(m *token.Minter, from common.Address, amount *big.Int) error {
	if err := m.Burn(from, amount); err != nil {
		return err
	}
	f.onRevert(func() { mustUndo(m.Mint(from, amount)) })
	return nil
}

func (f *frame) credit(asset common.Address, amount *big.Int) error {
	p := f.v.pool
	if err := p.Credit(asset, amount); err != nil {
		return err
	}
	f.onRevert(func() { mustUndo(p.Debit(asset, amount)) })
	return nil
}

func (f *frame) debit(asset common.Address, amount *big.Int) error {
	p := f.v.pool
	if err := p.Debit(asset, amount); err != nil {
		return err
	}
	f.onRevert(func() { mustUndo(p.Credit(asset, amount)) })
	return nil
}

func (f *frame) issue(delta *big.Int) {
	total := f.v.totalIssued
	total.Add(total, delta)
	f.onRevert(func() { total.Sub(total, delta) })
}

func (f *frame) retire(delta *big.Int) {
	total := f.v.totalIssued
	total.Sub(total, delta)
	f.onRevert(func() { total.Add(total, delta) })
}

// reclaim pulls back an asset that custody already paid out during a frame
// that is now being rolled back. A refusal is logged; the accounted balance
// is restored either way.
func (f *frame) reclaim(asset, from common.Address, amount *big.Int) {
	ctx := context.WithoutCancel(f.ctx)
	if err := f.v.custody.TransferIn(ctx, asset, from, amount); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"asset":  asset.Hex(),
			"holder": from.Hex(),
			"amount": amount,
		}).Error("could not reclaim payout of rolled-back withdrawal")
	}
}

// mustUndo panics when an inverse ledger operation fails. An undo only
// reverses an effect applied earlier in the same frame under the same lock,
// so a failure means the ledgers are corrupt.
func mustUndo(err error) {
	if err != nil {
		panic("vault: undo failed: " + err.Error())
	}
}
