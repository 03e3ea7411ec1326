package primitives

// Work is the expected number of double-SHA256 trials needed to produce a
// hash meeting a given target; it is additive across headers, so a chain's
// total work is the sum of its headers' individual works.
type Work struct {
	value Uint256
}

// ZeroWork is the additive identity.
var ZeroWork = Work{}

// WorkFromUint256 wraps a precomputed value (used by tests and by callers
// composing work directly).
func WorkFromUint256(v Uint256) Work {
	return Work{value: v}
}

// GetWork computes the work implied by this target:
//
//	work = (~target / (target+1)) + 1
//
// Since SHA256 output is uniformly distributed, the number of independent
// trials to first achieve hash<=target is a geometric random variable with
// mean 2^256/(target+1); the rearrangement above avoids needing to represent
// 2^256 directly. A zero (invalid) target yields zero work.
func (t Target) GetWork() Work {
	if !t.valid || t.value.IsZero() {
		return ZeroWork
	}
	denom := t.value.Add(One)
	return Work{value: t.value.Not().Div(denom).Add(One)}
}

// WorkFromCompactTarget is a convenience composing ExpandCompactTarget and
// GetWork, mirroring the source's Work::FromBits.
func WorkFromCompactTarget(bits uint32) Work {
	return ExpandCompactTarget(bits).GetWork()
}

// Value returns the underlying 256-bit accumulator.
func (w Work) Value() Uint256 { return w.value }

// Add returns the sum of two works.
func (w Work) Add(o Work) Work { return Work{value: w.value.Add(o.value)} }

// Cmp compares two works: -1, 0, 1.
func (w Work) Cmp(o Work) int { return w.value.Cmp(o.value) }

// Less reports w < o.
func (w Work) Less(o Work) bool { return w.Cmp(o) < 0 }

// Greater reports w > o.
func (w Work) Greater(o Work) bool { return w.Cmp(o) > 0 }

// GreaterOrEqual reports w >= o.
func (w Work) GreaterOrEqual(o Work) bool { return w.Cmp(o) >= 0 }
