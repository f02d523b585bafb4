package referral

import "time"

const (
	EventRegistryInitialized = "referral.registry_initialized"
	EventAdminChanged        = "referral.admin_changed"
	EventOperatorsChanged    = "referral.operators_changed"
	EventPartnerCreated      = "referral.partner_created"
	EventPartnerUpdated      = "referral.partner_updated"
	EventPartnerPaused       = "referral.partner_paused"
	EventTierUpdated         = "referral.tier_updated"
	EventPartnerDeleted      = "referral.partner_deleted"
	EventDeposit             = "referral.deposit"
	EventDepositStakeAccount = "referral.deposit_stake_account"
	EventLiquidUnstake       = "referral.liquid_unstake"
	EventOrderUnstake        = "referral.order_unstake"
	EventSettled             = "referral.settled"
	EventDelayedUnstakeReset = "referral.delayed_unstake_reset"
)

// Event is published after a unit of work commits.
type Event struct {
	Type       string            `json:"type"`
	Partner    string            `json:"partner,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Time       time.Time         `json:"time"`
}

// Emitter receives committed events. Implementations must not block the
// caller for long.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter drops every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans an event out to every non-nil emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}
