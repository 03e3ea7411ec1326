// Package consensus implements per-header and per-block consensus rules:
// proof-of-work, difficulty retargeting, and timestamp/version gating.
package consensus

import (
	"fmt"
	"time"

	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/types"
)

// HeaderErrorReason is the closed set of consensus rule failures a
// candidate header can be rejected with.
type HeaderErrorReason int

const (
	_ HeaderErrorReason = iota
	ParentNotFound
	InvalidProofOfWork
	BadTimestamp
	BadDifficultyTransition
	BadVersion
)

func (r HeaderErrorReason) String() string {
	switch r {
	case ParentNotFound:
		return "ParentNotFound"
	case InvalidProofOfWork:
		return "InvalidProofOfWork"
	case BadTimestamp:
		return "BadTimestamp"
	case BadDifficultyTransition:
		return "BadDifficultyTransition"
	case BadVersion:
		return "BadVersion"
	default:
		return "Unknown"
	}
}

// HeaderError reports which consensus rule a candidate header failed.
type HeaderError struct {
	Reason HeaderErrorReason
}

func (e *HeaderError) Error() string { return fmt.Sprintf("consensus: %s", e.Reason) }

// ParentInfo is the subset of the parent HeaderContext the validator needs:
// its hash, height, bits, and timestamp.
type ParentInfo struct {
	Hash      types.Hash
	Height    int64
	Bits      uint32
	Timestamp uint32
}

// AncestryView supplies the timestamp history needed for the
// median-time-past and difficulty-transition rules.
type AncestryView interface {
	// TimestampAt returns the timestamp of the ancestor at the given
	// height, ok=false if height is out of range for this view.
	TimestampAt(height int64) (timestamp uint32, ok bool)
	// LastNTimestamps returns up to count ancestor timestamps ending at
	// height, most recent first.
	LastNTimestamps(height int64, count int) []uint32
}

// ActivationHeights carries the per-network heights at which BIP34, BIP65,
// and BIP66 become active, for the BadVersion rule.
type ActivationHeights struct {
	BIP34 int64
	BIP65 int64
	BIP66 int64
}

// MainnetActivationHeights mirrors Bitcoin mainnet's historical activation
// heights.
var MainnetActivationHeights = ActivationHeights{BIP34: 227931, BIP65: 388381, BIP66: 363725}

// medianTimePastWindow is the number of ancestor timestamps the MTP rule
// considers.
const medianTimePastWindow = 11

// futureTimestampTolerance bounds how far a header's timestamp may exceed
// wall-clock time.
const futureTimestampTolerance = 2 * 60 * 60

// HeaderValidator applies the ordered consensus rules to a candidate header
// given its parent and an ancestry view rooted at that parent.
type HeaderValidator struct {
	Difficulty  DifficultyParameters
	Activations ActivationHeights
	// Now returns the current wall-clock time for the future-timestamp
	// rule; defaults to time.Now if nil.
	Now func() time.Time
}

// NewHeaderValidator builds a validator with mainnet defaults.
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{
		Difficulty:  MainnetDifficultyParameters,
		Activations: MainnetActivationHeights,
	}
}

func (v *HeaderValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate applies the six ordered header consensus rules, short-circuiting
// on the first failure. height is the candidate header's height (parent's
// height + 1).
func (v *HeaderValidator) Validate(header *block.Header, parent ParentInfo, view AncestryView, height int64) error {
	if parent.Hash != header.PrevBlockHash {
		return &HeaderError{Reason: ParentNotFound}
	}

	if !header.IsProofOfWork() {
		return &HeaderError{Reason: InvalidProofOfWork}
	}

	expectedBits := parent.Bits
	if v.Difficulty.IsRetargetHeight(height) {
		periodStart, ok := view.TimestampAt(height - v.Difficulty.AdjustmentInterval)
		if !ok {
			return &HeaderError{Reason: BadDifficultyTransition}
		}
		expectedBits = v.Difficulty.ComputeCompactTarget(height, parent.Bits, periodStart, parent.Timestamp)
	}
	if expectedBits != header.Bits {
		return &HeaderError{Reason: BadDifficultyTransition}
	}

	recent := view.LastNTimestamps(height-1, medianTimePastWindow)
	if header.Timestamp <= medianTimestamp(recent) {
		return &HeaderError{Reason: BadTimestamp}
	}
	if int64(header.Timestamp) > v.now().Unix()+futureTimestampTolerance {
		return &HeaderError{Reason: BadTimestamp}
	}

	if err := v.checkVersion(header.Version, height); err != nil {
		return err
	}

	return nil
}

func (v *HeaderValidator) checkVersion(version int32, height int64) error {
	if version < 0 {
		return &HeaderError{Reason: BadVersion}
	}
	if (version == 0 || version == 1) && height >= v.Activations.BIP34 {
		return &HeaderError{Reason: BadVersion}
	}
	if version == 2 && height >= v.Activations.BIP66 {
		return &HeaderError{Reason: BadVersion}
	}
	if version == 3 && height >= v.Activations.BIP65 {
		return &HeaderError{Reason: BadVersion}
	}
	return nil
}

// medianTimestamp returns the median of timestamps, treating an empty slice
// as having no floor (returns 0, so any positive timestamp passes).
func medianTimestamp(timestamps []uint32) uint32 {
	if len(timestamps) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), timestamps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}
