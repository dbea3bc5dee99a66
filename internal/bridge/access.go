package bridge

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// GrantRole grants role to account. Validator grants go through AddValidator.
func (b *Bridge) GrantRole(ctx context.Context, caller common.Address, role Role, account common.Address) error {
	if role == RoleValidator {
		return b.AddValidator(ctx, caller, account)
	}
	const op = "GrantRole"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if !role.Valid() {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %q", ErrInvalidRole, role))
	}
	if isZeroAddress(account) {
		b.mu.Unlock()
		return opErr(op, ErrInvalidIdentity)
	}
	if b.st.hasRole(role, account) {
		b.mu.Unlock()
		return nil
	}
	b.st.roles[role][account] = true
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"role": role, "account": account.Hex(), "sender": caller.Hex()}).Info("🔑 Role granted")
	b.emit(ctx, RoleGranted{Role: role, Account: account, Sender: caller})
	return nil
}

// RevokeRole revokes role from account. The last admin cannot be revoked.
func (b *Bridge) RevokeRole(ctx context.Context, caller common.Address, role Role, account common.Address) error {
	if role == RoleValidator {
		return b.RemoveValidator(ctx, caller, account)
	}
	const op = "RevokeRole"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if !role.Valid() {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %q", ErrInvalidRole, role))
	}
	if !b.st.hasRole(role, account) {
		b.mu.Unlock()
		return nil
	}
	if role == RoleAdmin && len(b.st.roles[RoleAdmin]) == 1 {
		b.mu.Unlock()
		return opErr(op, ErrLastAdmin)
	}
	delete(b.st.roles[role], account)
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"role": role, "account": account.Hex(), "sender": caller.Hex()}).Info("🔒 Role revoked")
	b.emit(ctx, RoleRevoked{Role: role, Account: account, Sender: caller})
	return nil
}

// AddValidator adds account to the validator set
func (b *Bridge) AddValidator(ctx context.Context, caller, account common.Address) error {
	const op = "AddValidator"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if isZeroAddress(account) {
		b.mu.Unlock()
		return opErr(op, ErrInvalidIdentity)
	}
	if b.st.hasRole(RoleValidator, account) {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %s", ErrValidatorExists, account.Hex()))
	}
	b.st.roles[RoleValidator][account] = true
	count := uint64(len(b.st.roles[RoleValidator]))
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"validator": account.Hex(), "count": count}).Info("✅ Validator added")
	b.emit(ctx,
		RoleGranted{Role: RoleValidator, Account: account, Sender: caller},
		ValidatorAdded{Validator: account, Count: count},
	)
	return nil
}

// RemoveValidator removes account from the validator set. Confirmations it
// already recorded keep counting.
func (b *Bridge) RemoveValidator(ctx context.Context, caller, account common.Address) error {
	const op = "RemoveValidator"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if !b.st.hasRole(RoleValidator, account) {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %s", ErrValidatorNotFound, account.Hex()))
	}
	delete(b.st.roles[RoleValidator], account)
	count := uint64(len(b.st.roles[RoleValidator]))
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"validator": account.Hex(), "count": count}).Info("🗑️ Validator removed")
	b.emit(ctx,
		RoleRevoked{Role: RoleValidator, Account: account, Sender: caller},
		ValidatorRemoved{Validator: account, Count: count},
	)
	return nil
}

// Pause stops new transfers from being created
func (b *Bridge) Pause(ctx context.Context, caller common.Address) error {
	return b.setPaused(ctx, "Pause", caller, true)
}

func (b *Bridge) Unpause(ctx context.Context, caller common.Address) error {
	return b.setPaused(ctx, "Unpause", caller, false)
}

func (b *Bridge) setPaused(ctx context.Context, op string, caller common.Address, paused bool) error {
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RolePauser); err != nil {
		b.mu.Unlock()
		return err
	}
	if b.st.paused == paused {
		b.mu.Unlock()
		if paused {
			return opErr(op, ErrAlreadyPaused)
		}
		return opErr(op, ErrNotPaused)
	}
	b.st.paused = paused
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"paused": paused, "account": caller.Hex()}).Warn("⏸️ Bridge pause state changed")
	b.emit(ctx, Paused{Paused: paused, Account: caller})
	return nil
}

// SetEmergencyStop blocks creation and confirmation while stopped.
// Cancellation and failure marking stay available so funds can be recovered.
func (b *Bridge) SetEmergencyStop(ctx context.Context, caller common.Address, stopped bool) error {
	const op = "SetEmergencyStop"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	changed := b.st.stopped != stopped
	b.st.stopped = stopped
	b.mu.Unlock()

	if !changed {
		return nil
	}
	b.logger.WithFields(logrus.Fields{"stopped": stopped, "account": caller.Hex()}).Warn("🚨 Emergency stop changed")
	b.emit(ctx, EmergencyStop{Stopped: stopped, Account: caller})
	return nil
}

func (b *Bridge) HasRole(role Role, account common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.hasRole(role, account)
}

// RoleMembers holders of role ordered by address
func (b *Bridge) RoleMembers(role Role) []common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedAddresses(b.st.roles[role])
}

func (b *Bridge) Validators() []common.Address {
	return b.RoleMembers(RoleValidator)
}

func (b *Bridge) ValidatorCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.st.roles[RoleValidator]))
}

func sortedAddresses(set map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(set))
	for addr, ok := range set {
		if ok {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
