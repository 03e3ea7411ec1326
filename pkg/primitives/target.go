package primitives

import "github.com/tobysharp/timechain/pkg/types"

// MaxCompactTarget is the mainnet proof-of-work limit in compact form
// (bits=0x1d00ffff), expanding to 0x00000000FFFF0000...0000.
const MaxCompactTarget uint32 = 0x1d00ffff

// Target represents the 256-bit upper bound a double-SHA256 hash must not
// exceed to satisfy proof-of-work: hash <= target.
type Target struct {
	value Uint256
	valid bool
}

// InvalidTarget is returned by ExpandCompactTarget for a malformed encoding;
// it never compares true for any hash (so it fails PoW unconditionally).
var InvalidTarget = Target{}

// MaxTarget is the mainnet protocol-maximum target value.
var MaxTarget = mustExpand(MaxCompactTarget)

func mustExpand(bits uint32) Target {
	t := ExpandCompactTarget(bits)
	if !t.valid {
		panic("primitives: MaxCompactTarget does not expand")
	}
	return t
}

// ExpandCompactTarget decodes a 32-bit compact target ("bits"): the high 8
// bits are the exponent, the low 23 bits the mantissa, and bit 23 a sign bit
// that must be zero whenever the mantissa is nonzero.
//
// target = mantissa * 256^(exponent-3)
//
// Rejected (returns the invalid zero-value Target) when: mantissa is zero;
// the sign bit is set and the mantissa is nonzero; or the encoding overflows
// 256 bits, i.e. mantissa != 0 and the number of significant mantissa bits M
// satisfies M + 8*(exponent-3) > 256. For exponent>=35 any nonzero mantissa
// overflows; for exponent==34 mantissa must be <=0xFF; for exponent==33
// mantissa must be <=0xFFFF.
func ExpandCompactTarget(bits uint32) Target {
	exponent := int(bits >> 24)
	mantissa := bits & 0x007fffff
	signBit := bits&0x00800000 != 0
	negative := mantissa > 0 && signBit
	overflow := mantissa > 0 && (exponent > 34 ||
		(exponent == 34 && mantissa > 0xFF) ||
		(exponent == 33 && mantissa > 0xFFFF))
	if negative || mantissa == 0 || overflow {
		return InvalidTarget
	}
	lshiftBits := 8 * (exponent - 3)
	base := FromUint64(uint64(mantissa))
	var value Uint256
	if lshiftBits < 0 {
		value = base.Rsh(uint(-lshiftBits))
	} else {
		value = base.Lsh(uint(lshiftBits))
	}
	return Target{value: value, valid: true}
}

// FromValue wraps a raw 256-bit value as a valid Target, for targets derived
// from arithmetic (e.g. a difficulty retarget) rather than decoded directly
// from a compact encoding.
func FromValue(value Uint256) Target {
	return Target{value: value, valid: true}
}

// Compress re-encodes the target to its compact 32-bit form. The exponent is
// the number of significant bytes of the value; the mantissa is the most
// significant 3 of those bytes. If the mantissa's high bit (bit 23) would be
// set — meaning 24 significant bits were needed, one more than the 23 we
// have room for — shift the mantissa right one byte and bump the exponent.
func (t Target) Compress() uint32 {
	significantBytes := (t.value.SignificantBits() + 7) / 8
	rshiftBytes := significantBytes - 3
	var shifted Uint256
	if rshiftBytes >= 0 {
		shifted = t.value.Rsh(uint(rshiftBytes * 8))
	} else {
		shifted = t.value.Lsh(uint(-rshiftBytes * 8))
	}
	mantissa := uint32(shifted.Words()[0])
	exponent := significantBytes
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | (mantissa & 0x007fffff)
}

// IsValid reports whether the target decoded successfully and does not
// exceed the mainnet protocol maximum.
func (t Target) IsValid() bool {
	return t.valid && t.LessOrEqual(MaxTarget)
}

// Value returns the underlying 256-bit value. Panics if the target is
// invalid (callers must check IsValid first).
func (t Target) Value() Uint256 {
	if !t.valid {
		panic("primitives: Value() on invalid Target")
	}
	return t.value
}

// LessOrEqual reports t <= o (both must be valid encodings to compare
// meaningfully; an invalid target is never <= anything).
func (t Target) LessOrEqual(o Target) bool {
	if !t.valid || !o.valid {
		return false
	}
	return t.value.LessOrEqual(o.value)
}

// HashSatisfies reports hash <= t, interpreting the hash as a little-endian
// Uint256. An invalid target is never satisfied.
func (t Target) HashSatisfies(hash types.Hash) bool {
	if !t.valid {
		return false
	}
	return FromBytesLE(hash).LessOrEqual(t.value)
}

// FromHash interprets a hash's native bytes as a Uint256 target value
// directly (used when comparing a computed hash to a target, not for
// decoding bits).
func FromHash(hash types.Hash) Uint256 {
	return FromBytesLE(hash)
}
