package consensus

import "github.com/tobysharp/timechain/pkg/primitives"

// DifficultyParameters is the per-network retarget policy: how often the
// target is recomputed, what duration it aims for, and the network's proof
// ceiling.
type DifficultyParameters struct {
	AdjustmentInterval int64  // blocks between retargets
	TargetDuration     int64  // seconds the interval should take
	PowLimitBits       uint32 // loosest (easiest) permitted compact target
}

// MainnetDifficultyParameters mirrors Bitcoin mainnet's retarget policy.
var MainnetDifficultyParameters = DifficultyParameters{
	AdjustmentInterval: 2016,
	TargetDuration:     14 * 24 * 60 * 60,
	PowLimitBits:       primitives.MaxCompactTarget,
}

// IsRetargetHeight reports whether height is a retarget boundary: the only
// height at which ComputeCompactTarget may produce a value different from
// the parent's bits.
func (p DifficultyParameters) IsRetargetHeight(height int64) bool {
	return height%p.AdjustmentInterval == 0
}

// clamp restricts duration to [target/4, target*4], the per-period adjustment
// limit that prevents an attacker from swinging difficulty in one step.
func (p DifficultyParameters) clamp(duration int64) int64 {
	min := p.TargetDuration / 4
	max := p.TargetDuration * 4
	if duration < min {
		return min
	}
	if duration > max {
		return max
	}
	return duration
}

// ComputeCompactTarget returns the bits that apply at height, given the
// parent header's bits and the retarget period's start/end timestamps.
// Away from a retarget boundary it returns parentBits unchanged; at a
// retarget boundary it applies the standard
// new_target = min(pow_limit, expand(parent.bits) * period_duration / target_duration)
// formula.
func (p DifficultyParameters) ComputeCompactTarget(height int64, parentBits uint32, periodStartTime, periodEndTime uint32) uint32 {
	if !p.IsRetargetHeight(height) {
		return parentBits
	}

	duration := p.clamp(int64(periodEndTime) - int64(periodStartTime))

	parentTarget := primitives.ExpandCompactTarget(parentBits)
	newValue := parentTarget.Value().MulSmall(uint32(duration)).DivSmall(uint32(p.TargetDuration))

	newTarget := primitives.FromValue(newValue)
	powLimit := primitives.ExpandCompactTarget(p.PowLimitBits)
	if powLimit.LessOrEqual(newTarget) {
		return p.PowLimitBits
	}
	return newTarget.Compress()
}
