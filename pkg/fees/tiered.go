package fees

import "math/bits"

// TierConfig is the range the partner share rate moves through as net stake grows.
type TierConfig struct {
	BaseFee     Fee
	MaxFee      Fee
	MaxNetStake uint64
}

// NetStake returns deposited - unstaked, floored at zero.
func NetStake(deposited, unstaked uint64) uint64 {
	if unstaked >= deposited {
		return 0
	}
	return deposited - unstaked
}

// Rate interpolates linearly between BaseFee and MaxFee by netStake and
// saturates at MaxFee above MaxNetStake. A zero MaxNetStake saturates
// everything. The caller guarantees BaseFee <= MaxFee.
func (t TierConfig) Rate(netStake uint64) Fee {
	if netStake == 0 {
		return t.BaseFee
	}
	if t.MaxNetStake == 0 || netStake > t.MaxNetStake || t.MaxFee.BasisPoints <= t.BaseFee.BasisPoints {
		if t.MaxFee.BasisPoints < t.BaseFee.BasisPoints {
			return t.BaseFee
		}
		return t.MaxFee
	}
	span := uint64(t.MaxFee.BasisPoints - t.BaseFee.BasisPoints)
	// netStake <= MaxNetStake keeps the quotient <= span
	hi, lo := bits.Mul64(span, netStake)
	step, _ := bits.Div64(hi, lo, t.MaxNetStake)
	return FromBasisPoints(t.BaseFee.BasisPoints + uint32(step))
}

// Share is the tiered cut of pool for the given totals.
func (t TierConfig) Share(deposited, unstaked, pool uint64) (Fee, uint64) {
	rate := t.Rate(NetStake(deposited, unstaked))
	return rate, rate.Apply(pool)
}
