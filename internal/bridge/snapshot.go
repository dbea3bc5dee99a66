package bridge

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FeeEntry one row of the fee table
type FeeEntry struct {
	SourceChain      uint64       `json:"source_chain"`
	DestinationChain uint64       `json:"destination_chain"`
	Fee              *uint256.Int `json:"fee"`
}

// RoleAssignment one role holder
type RoleAssignment struct {
	Role    Role           `json:"role"`
	Account common.Address `json:"account"`
}

// Confirmation one recorded validator confirmation
type Confirmation struct {
	TransferID uint64         `json:"transfer_id"`
	Validator  common.Address `json:"validator"`
}

// State is a detached copy of everything a bridge instance holds.
// Custody totals are derived from transfers on Restore.
type State struct {
	Chains         []Chain          `json:"chains"`
	Routes         []AssetRoute     `json:"routes"`
	Fees           []FeeEntry       `json:"fees"`
	Roles          []RoleAssignment `json:"roles"`
	Transfers      []Transfer       `json:"transfers"`
	Confirmations  []Confirmation   `json:"confirmations"`
	NextTransferID uint64           `json:"next_transfer_id"`
	Paused         bool             `json:"paused"`
	Stopped        bool             `json:"stopped"`
}

// Snapshot deep copy of the instance state with deterministic ordering
func (b *Bridge) Snapshot() State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := State{
		NextTransferID: b.st.nextID,
		Paused:         b.st.paused,
		Stopped:        b.st.stopped,
	}
	for _, chain := range b.st.chains {
		st.Chains = append(st.Chains, chain.clone())
	}
	sort.Slice(st.Chains, func(i, j int) bool { return st.Chains[i].ID < st.Chains[j].ID })

	for _, route := range b.st.routes {
		st.Routes = append(st.Routes, route.clone())
	}
	sortRoutes(st.Routes)

	for key, fee := range b.st.fees {
		st.Fees = append(st.Fees, FeeEntry{SourceChain: key.SourceChain, DestinationChain: key.DestinationChain, Fee: fee.Clone()})
	}
	sort.Slice(st.Fees, func(i, j int) bool {
		if st.Fees[i].SourceChain != st.Fees[j].SourceChain {
			return st.Fees[i].SourceChain < st.Fees[j].SourceChain
		}
		return st.Fees[i].DestinationChain < st.Fees[j].DestinationChain
	})

	for _, role := range []Role{RoleAdmin, RolePauser, RoleValidator} {
		for _, account := range sortedAddresses(b.st.roles[role]) {
			st.Roles = append(st.Roles, RoleAssignment{Role: role, Account: account})
		}
	}

	for id := uint64(1); id < b.st.nextID; id++ {
		t, ok := b.st.transfers[id]
		if !ok {
			continue
		}
		st.Transfers = append(st.Transfers, t.clone())
		for _, v := range sortedAddresses(b.st.confirmations[id]) {
			st.Confirmations = append(st.Confirmations, Confirmation{TransferID: id, Validator: v})
		}
	}
	return st
}

// Restore rebuilds an instance from a snapshot. cfg supplies the
// construction parameters, its bootstrap role holders are ignored.
func Restore(cfg Config, snap State, ledger TokenLedger, opts ...Option) (*Bridge, error) {
	b, err := newBridge(cfg, ledger, opts)
	if err != nil {
		return nil, err
	}
	if err := b.st.load(snap); err != nil {
		return nil, opErr("Restore", err)
	}
	if len(b.st.roles[RoleAdmin]) == 0 {
		return nil, opErr("Restore", fmt.Errorf("%w: no admin in state", ErrInvalidIdentity))
	}
	return b, nil
}

func (s *state) load(snap State) error {
	if snap.NextTransferID == 0 {
		snap.NextTransferID = 1
	}
	s.nextID = snap.NextTransferID
	s.paused = snap.Paused
	s.stopped = snap.Stopped

	for i := range snap.Chains {
		c := snap.Chains[i].clone()
		if c.ID == 0 || c.MinTransfer.Gt(c.MaxTransfer) {
			return fmt.Errorf("%w: chain %d", ErrInvalidChain, c.ID)
		}
		s.chains[c.ID] = &c
	}
	for i := range snap.Routes {
		r := snap.Routes[i].clone()
		if isZeroAddress(r.Asset) {
			return ErrInvalidAsset
		}
		s.routes[r.key()] = &r
	}
	for _, f := range snap.Fees {
		s.fees[FeeKey{SourceChain: f.SourceChain, DestinationChain: f.DestinationChain}] = cloneAmount(f.Fee)
	}
	for _, ra := range snap.Roles {
		if !ra.Role.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidRole, ra.Role)
		}
		if isZeroAddress(ra.Account) {
			return ErrInvalidIdentity
		}
		s.roles[ra.Role][ra.Account] = true
	}
	for i := range snap.Transfers {
		t := snap.Transfers[i].clone()
		if t.ID == 0 || t.ID >= s.nextID {
			return fmt.Errorf("transfer id %d outside [1, %d)", t.ID, s.nextID)
		}
		if _, dup := s.transfers[t.ID]; dup {
			return fmt.Errorf("duplicate transfer id %d", t.ID)
		}
		s.transfers[t.ID] = &t
		switch t.Status {
		case StatusPending:
			s.custody.lock(t.ID, t.Asset, t.Total())
		case StatusCompleted:
			s.custody.lock(t.ID, t.Asset, t.Total())
			s.custody.release(t.ID, t.Asset)
		}
	}
	for _, c := range snap.Confirmations {
		if _, ok := s.transfers[c.TransferID]; !ok {
			return fmt.Errorf("%w: confirmation for %d", ErrTransferNotFound, c.TransferID)
		}
		if s.confirmations[c.TransferID] == nil {
			s.confirmations[c.TransferID] = make(map[common.Address]bool)
		}
		s.confirmations[c.TransferID][c.Validator] = true
	}
	for id, t := range s.transfers {
		if got := uint64(len(s.confirmations[id])); got != t.ConfirmationCount {
			return fmt.Errorf("transfer %d has %d confirmation records, count says %d", id, got, t.ConfirmationCount)
		}
	}
	return nil
}
