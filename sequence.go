package supervisor

import (
	"fmt"
	"math"
)

// Raw sentinel values used at the adapter boundary. Stream adapters hand
// these to WrapSequence when a partition has no recorded progress or will
// never produce another record.
const (
	RawNotSet         int64 = -1
	RawEndOfPartition int64 = math.MaxInt64
)

// SequenceKind discriminates real offsets from sentinel positions.
type SequenceKind int

const (
	// KindUnset means no progress has been recorded for the partition.
	// Orders before every real offset.
	KindUnset SequenceKind = iota

	// KindValue is an ordinary offset within the partition.
	KindValue

	// KindEndOfPartition means no more data will ever arrive on the
	// partition. Orders after every real offset.
	KindEndOfPartition
)

// SequenceNumber is a totally ordered position within one partition.
// Exclusive reports whether the position itself was already consumed, so
// a continuation must start after it rather than at it.
type SequenceNumber struct {
	Kind      SequenceKind
	Offset    int64
	Exclusive bool
}

// WrapSequence builds a SequenceNumber from a raw adapter value,
// classifying the raw sentinels into their tagged kinds.
func WrapSequence(raw int64, exclusive bool) SequenceNumber {
	switch raw {
	case RawNotSet:
		return SequenceNumber{Kind: KindUnset, Exclusive: exclusive}
	case RawEndOfPartition:
		return SequenceNumber{Kind: KindEndOfPartition, Exclusive: exclusive}
	default:
		return SequenceNumber{Kind: KindValue, Offset: raw, Exclusive: exclusive}
	}
}

// UnsetSequence returns the sentinel for "no progress recorded".
func UnsetSequence() SequenceNumber {
	return SequenceNumber{Kind: KindUnset}
}

// EndOfPartitionSequence returns the sentinel for "no more data ever".
func EndOfPartitionSequence() SequenceNumber {
	return SequenceNumber{Kind: KindEndOfPartition}
}

// SequenceOf returns an ordinary offset position.
func SequenceOf(offset int64) SequenceNumber {
	return SequenceNumber{Kind: KindValue, Offset: offset}
}

// Raw converts the sequence back to its raw adapter representation.
func (s SequenceNumber) Raw() int64 {
	switch s.Kind {
	case KindUnset:
		return RawNotSet
	case KindEndOfPartition:
		return RawEndOfPartition
	default:
		return s.Offset
	}
}

// IsUnset reports whether the sequence is the "no progress" sentinel.
func (s SequenceNumber) IsUnset() bool { return s.Kind == KindUnset }

// IsEndOfPartition reports whether the sequence is the terminal sentinel.
func (s SequenceNumber) IsEndOfPartition() bool { return s.Kind == KindEndOfPartition }

// Compare orders s against other: Unset < any Value < EndOfPartition, and
// values order by offset. The Exclusive flag does not participate in
// ordering.
func (s SequenceNumber) Compare(other SequenceNumber) int {
	if s.Kind != other.Kind {
		if s.Kind < other.Kind {
			return -1
		}
		return 1
	}
	if s.Kind != KindValue {
		return 0
	}
	switch {
	case s.Offset < other.Offset:
		return -1
	case s.Offset > other.Offset:
		return 1
	default:
		return 0
	}
}

// Equal reports positional equality, ignoring the Exclusive flag.
func (s SequenceNumber) Equal(other SequenceNumber) bool {
	return s.Compare(other) == 0
}

// Max returns the greater of s and other per Compare.
func (s SequenceNumber) Max(other SequenceNumber) SequenceNumber {
	if s.Compare(other) >= 0 {
		return s
	}
	return other
}

func (s SequenceNumber) String() string {
	switch s.Kind {
	case KindUnset:
		return "NOT_SET"
	case KindEndOfPartition:
		return "END_OF_PARTITION"
	default:
		if s.Exclusive {
			return fmt.Sprintf("%d(exclusive)", s.Offset)
		}
		return fmt.Sprintf("%d", s.Offset)
	}
}
