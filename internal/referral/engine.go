package referral

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"stakereferral/internal/models"
	"stakereferral/pkg/metrics"
)

// Engine applies referral operations against a Store and forwards staking
// calls to the protocol.
type Engine struct {
	store     Store
	protocol  StakingProtocol
	positions StakePositionReader
	resolver  AccountResolver
	emitter   Emitter
	clock     clockwork.Clock
	cfg       Config
}

// NewEngine validates cfg and returns an engine with a real clock and a
// no-op emitter.
func NewEngine(store Store, protocol StakingProtocol, cfg Config) (*Engine, error) {
	if store == nil || protocol == nil {
		return nil, fmt.Errorf("%w: store and protocol are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:    store,
		protocol: protocol,
		emitter:  NoopEmitter{},
		clock:    clockwork.NewRealClock(),
		cfg:      cfg,
	}
	if reader, ok := protocol.(StakePositionReader); ok {
		e.positions = reader
	}
	return e, nil
}

// Config returns the engine policies.
func (e *Engine) Config() Config { return e.cfg }

// SetEmitter configures the event sink. Nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source. Nil restores the real clock.
func (e *Engine) SetClock(clock clockwork.Clock) {
	if clock == nil {
		e.clock = clockwork.NewRealClock()
		return
	}
	e.clock = clock
}

// SetPositionReader overrides the stake position reader used by the
// delegation stake amount source.
func (e *Engine) SetPositionReader(reader StakePositionReader) { e.positions = reader }

// SetAccountResolver adds a second source for payout and treasury checks.
// Accounts must still be open in the unit-of-work ledger. Nil checks the
// ledger only.
func (e *Engine) SetAccountResolver(resolver AccountResolver) { e.resolver = resolver }

func (e *Engine) now() int64 { return e.clock.Now().Unix() }

type emitFunc func(eventType, partner string, attrs map[string]string)

// atomic runs fn as one unit of work and publishes its events only after
// the commit.
func (e *Engine) atomic(ctx context.Context, op string, fn func(tx Tx, emit emitFunc) error) error {
	var pending []Event
	err := e.store.Atomic(ctx, func(tx Tx) error {
		pending = pending[:0]
		return fn(tx, func(eventType, partner string, attrs map[string]string) {
			pending = append(pending, Event{
				Type:       eventType,
				Partner:    partner,
				Attributes: attrs,
				Time:       e.clock.Now().UTC(),
			})
		})
	})
	if err != nil {
		metrics.ObserveFailure(op, KindOf(err).String())
		log.WithFields(log.Fields{"op": op}).WithError(err).Warn("referral operation rejected")
		return err
	}
	for _, ev := range pending {
		e.emitter.Emit(ev)
	}
	return nil
}

// resolveAccount looks address up in the unit-of-work ledger, which every
// fee and share transfer goes through. With a resolver configured the
// account must also exist there with the same owner and mint.
func (e *Engine) resolveAccount(ctx context.Context, tx Tx, address solana.PublicKey) (*models.TokenAccount, error) {
	local, err := tx.Ledger().Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if e.resolver == nil {
		return local, nil
	}
	account, err := e.resolver.TokenAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	switch {
	case account.IsClose:
		return nil, fmt.Errorf("%w: %s is closed", ErrAccountNotFound, address)
	case account.OwnerAddress != local.OwnerAddress, account.Mint != local.Mint:
		return nil, fmt.Errorf("%w: resolver and ledger disagree on %s", ErrAccountNotFound, address)
	}
	return account, nil
}

func requireKey(name string, key solana.PublicKey) error {
	if key.IsZero() {
		return fmt.Errorf("%w: %s is empty", ErrInvalidAddress, name)
	}
	return nil
}
