package referral

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

// EffectMeter measures one economic effect of a forwarded call. Before is
// read ahead of the call and After turns it into the effect.
type EffectMeter interface {
	Before(ctx context.Context, led Ledger) (uint64, error)
	After(ctx context.Context, led Ledger, before uint64) (uint64, error)
}

// BalanceDiffMeter measures how much an account balance moved. Increase
// selects the expected direction; movement the other way is a calculation
// failure.
type BalanceDiffMeter struct {
	Account  solana.PublicKey
	Increase bool
}

func (m BalanceDiffMeter) Before(ctx context.Context, led Ledger) (uint64, error) {
	return led.Balance(ctx, m.Account)
}

func (m BalanceDiffMeter) After(ctx context.Context, led Ledger, before uint64) (uint64, error) {
	after, err := led.Balance(ctx, m.Account)
	if err != nil {
		return 0, err
	}
	if m.Increase {
		if after < before {
			return 0, fmt.Errorf("%w: %s decreased by %d", ErrCalculationFailure, m.Account, before-after)
		}
		return after - before, nil
	}
	if after > before {
		return 0, fmt.Errorf("%w: %s increased by %d", ErrCalculationFailure, m.Account, after-before)
	}
	return before - after, nil
}

// DelegationMeter reports the delegated stake recorded before the call.
type DelegationMeter struct {
	Reader       StakePositionReader
	StakeAccount solana.PublicKey
}

func (m DelegationMeter) Before(ctx context.Context, led Ledger) (uint64, error) {
	if m.Reader == nil {
		return 0, fmt.Errorf("%w: no stake position reader", ErrInvalidConfig)
	}
	return m.Reader.Delegation(ctx, led, m.StakeAccount)
}

func (m DelegationMeter) After(_ context.Context, _ Ledger, before uint64) (uint64, error) {
	return before, nil
}

// measure runs invoke between the Before and After reads of every meter.
// Errors from invoke are wrapped with ErrUpstream.
func measure(ctx context.Context, led Ledger, invoke func() error, meters ...EffectMeter) ([]uint64, error) {
	before := make([]uint64, len(meters))
	for i, m := range meters {
		v, err := m.Before(ctx, led)
		if err != nil {
			return nil, err
		}
		before[i] = v
	}
	if err := invoke(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	deltas := make([]uint64, len(meters))
	for i, m := range meters {
		v, err := m.After(ctx, led, before[i])
		if err != nil {
			return nil, err
		}
		deltas[i] = v
	}
	return deltas, nil
}

func addChecked(field *uint64, amount uint64, name string) error {
	sum, carry := bits.Add64(*field, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s overflow", ErrCalculationFailure, name)
	}
	*field = sum
	return nil
}
