package consensus

import (
	"testing"

	"github.com/tobysharp/timechain/pkg/primitives"
)

func TestComputeCompactTarget_NonRetargetHeightCarriesForward(t *testing.T) {
	p := MainnetDifficultyParameters
	got := p.ComputeCompactTarget(2017, 0x1d00ffff, 0, uint32(p.TargetDuration))
	if got != 0x1d00ffff {
		t.Errorf("non-retarget height must carry parent bits forward: got %#x", got)
	}
}

func TestComputeCompactTarget_ExactDurationKeepsTarget(t *testing.T) {
	p := MainnetDifficultyParameters
	parentBits := uint32(0x1b0404cb)
	got := p.ComputeCompactTarget(2016, parentBits, 0, uint32(p.TargetDuration))
	if got != parentBits {
		t.Errorf("exact-duration period should reproduce the same bits: got %#x, want %#x", got, parentBits)
	}
}

func TestComputeCompactTarget_FasterThanExpectedTightens(t *testing.T) {
	p := MainnetDifficultyParameters
	parentBits := uint32(0x1b0404cb)
	// Period took half the expected time: target should shrink (harder).
	got := p.ComputeCompactTarget(2016, parentBits, 0, uint32(p.TargetDuration/2))
	gotTarget := primitives.ExpandCompactTarget(got)
	parentTarget := primitives.ExpandCompactTarget(parentBits)
	if !gotTarget.LessOrEqual(parentTarget) || gotTarget.Value().Cmp(parentTarget.Value()) == 0 {
		t.Error("faster-than-expected period should produce a strictly smaller (harder) target")
	}
}

func TestComputeCompactTarget_ClampsExtremeDuration(t *testing.T) {
	p := MainnetDifficultyParameters
	parentBits := uint32(0x1b0404cb)
	// Actual duration is far beyond 4x target: should clamp to 4x, not use raw value.
	unclamped := p.ComputeCompactTarget(2016, parentBits, 0, uint32(p.TargetDuration*100))
	clampedDuration := p.ComputeCompactTarget(2016, parentBits, 0, uint32(p.TargetDuration*4))
	if unclamped != clampedDuration {
		t.Errorf("extreme duration should clamp to the same result as 4x target duration: got %#x, want %#x", unclamped, clampedDuration)
	}
}

func TestComputeCompactTarget_NeverLoosensBeyondPowLimit(t *testing.T) {
	p := MainnetDifficultyParameters
	// Start from a target already at the pow limit and ask for a much longer
	// period than expected, which would normally loosen the target further.
	got := p.ComputeCompactTarget(2016, p.PowLimitBits, 0, uint32(p.TargetDuration*4))
	if got != p.PowLimitBits {
		t.Errorf("target must never exceed the network pow limit: got %#x, want %#x", got, p.PowLimitBits)
	}
}

func TestIsRetargetHeight(t *testing.T) {
	p := MainnetDifficultyParameters
	if !p.IsRetargetHeight(0) {
		t.Error("height 0 is a multiple of the interval")
	}
	if !p.IsRetargetHeight(2016) {
		t.Error("height 2016 should be a retarget boundary")
	}
	if p.IsRetargetHeight(2017) {
		t.Error("height 2017 should not be a retarget boundary")
	}
}
