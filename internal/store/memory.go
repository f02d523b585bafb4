package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stakereferral/internal/models"
	"stakereferral/internal/referral"
)

// Memory is an in-process store. Each unit of work runs on a copy of the
// data that replaces the original only when the unit succeeds.
type Memory struct {
	mu   sync.Mutex
	data memoryData
}

type memoryData struct {
	registry      *models.GlobalState
	partners      map[string]models.ReferralState
	nextPartnerID uint
	accounts      map[string]models.TokenAccount
	nextAccountID uint
	operations    []models.OperationRecord
	settlements   []models.SettlementRecord
}

func NewMemory() *Memory {
	return &Memory{data: memoryData{
		partners: map[string]models.ReferralState{},
		accounts: map[string]models.TokenAccount{},
	}}
}

var _ referral.Store = (*Memory)(nil)

func (d memoryData) clone() memoryData {
	out := d
	if d.registry != nil {
		reg := *d.registry
		reg.Foremen = append([]string(nil), d.registry.Foremen...)
		out.registry = &reg
	}
	out.partners = make(map[string]models.ReferralState, len(d.partners))
	for k, v := range d.partners {
		out.partners[k] = v
	}
	out.accounts = make(map[string]models.TokenAccount, len(d.accounts))
	for k, v := range d.accounts {
		out.accounts[k] = v
	}
	out.operations = append([]models.OperationRecord(nil), d.operations...)
	out.settlements = append([]models.SettlementRecord(nil), d.settlements...)
	return out
}

// Atomic serializes units of work and commits the staged copy on success.
func (m *Memory) Atomic(ctx context.Context, fn func(tx referral.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.data.clone()
	if err := fn(&memoryTx{data: &staged}); err != nil {
		return err
	}
	m.data = staged
	return nil
}

// OpenAccount adds a ledger account.
func (m *Memory) OpenAccount(ctx context.Context, account models.TokenAccount) error {
	return m.Atomic(ctx, func(tx referral.Tx) error {
		return openAccount(ctx, tx.(*memoryTx), account)
	})
}

// Approve sets the delegate of an account. The signer must be its owner.
func (m *Memory) Approve(ctx context.Context, address, owner, delegate string) error {
	return m.Atomic(ctx, func(tx referral.Tx) error {
		return approve(ctx, tx.(*memoryTx), address, owner, delegate)
	})
}

// ListAccounts returns the accounts of owner, or every account when owner
// is empty, in creation order.
func (m *Memory) ListAccounts(ctx context.Context, owner string) ([]models.TokenAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TokenAccount, 0)
	for _, a := range m.data.accounts {
		if owner == "" || a.OwnerAddress == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) Registry(context.Context) (*models.GlobalState, error) {
	if t.data.registry == nil {
		return nil, referral.ErrRegistryNotInitialized
	}
	reg := *t.data.registry
	reg.Foremen = append([]string(nil), t.data.registry.Foremen...)
	return &reg, nil
}

func (t *memoryTx) CreateRegistry(ctx context.Context, state *models.GlobalState) error {
	if t.data.registry != nil {
		return referral.ErrAlreadyInitialized
	}
	state.ID = 1
	return t.SaveRegistry(ctx, state)
}

func (t *memoryTx) SaveRegistry(_ context.Context, state *models.GlobalState) error {
	reg := *state
	reg.Foremen = append([]string(nil), state.Foremen...)
	t.data.registry = &reg
	return nil
}

func (t *memoryTx) Partner(_ context.Context, partner string) (*models.ReferralState, error) {
	state, ok := t.data.partners[partner]
	if !ok {
		return nil, fmt.Errorf("%w: %s", referral.ErrPartnerNotFound, partner)
	}
	return &state, nil
}

func (t *memoryTx) CreatePartner(_ context.Context, state *models.ReferralState) error {
	if _, ok := t.data.partners[state.PartnerAccount]; ok {
		return fmt.Errorf("%w: partner %s", referral.ErrAlreadyInitialized, state.PartnerAccount)
	}
	t.data.nextPartnerID++
	state.ID = t.data.nextPartnerID
	t.data.partners[state.PartnerAccount] = *state
	return nil
}

func (t *memoryTx) SavePartner(_ context.Context, state *models.ReferralState) error {
	if _, ok := t.data.partners[state.PartnerAccount]; !ok {
		return fmt.Errorf("%w: %s", referral.ErrPartnerNotFound, state.PartnerAccount)
	}
	t.data.partners[state.PartnerAccount] = *state
	return nil
}

func (t *memoryTx) DeletePartner(_ context.Context, partner string) error {
	if _, ok := t.data.partners[partner]; !ok {
		return fmt.Errorf("%w: %s", referral.ErrPartnerNotFound, partner)
	}
	delete(t.data.partners, partner)
	return nil
}

func (t *memoryTx) ListPartners(context.Context) ([]models.ReferralState, error) {
	out := make([]models.ReferralState, 0, len(t.data.partners))
	for _, p := range t.data.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) RecordOperation(_ context.Context, record *models.OperationRecord) error {
	t.data.operations = append(t.data.operations, *record)
	return nil
}

func (t *memoryTx) RecordSettlement(_ context.Context, record *models.SettlementRecord) error {
	t.data.settlements = append(t.data.settlements, *record)
	return nil
}

func (t *memoryTx) ListOperations(_ context.Context, partner string, limit int) ([]models.OperationRecord, error) {
	var out []models.OperationRecord
	for i := len(t.data.operations) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if r := t.data.operations[i]; r.PartnerAccount == partner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memoryTx) ListSettlements(_ context.Context, partner string, limit int) ([]models.SettlementRecord, error) {
	var out []models.SettlementRecord
	for i := len(t.data.settlements) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if r := t.data.settlements[i]; r.PartnerAccount == partner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memoryTx) Ledger() referral.Ledger {
	return ledger{book: t}
}

func (t *memoryTx) getAccount(_ context.Context, address string) (*models.TokenAccount, error) {
	account, ok := t.data.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", referral.ErrAccountNotFound, address)
	}
	return &account, nil
}

func (t *memoryTx) putAccount(_ context.Context, account *models.TokenAccount) error {
	if account.ID == 0 {
		t.data.nextAccountID++
		account.ID = t.data.nextAccountID
	}
	t.data.accounts[account.AccountAddress] = *account
	return nil
}
