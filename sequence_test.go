package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapSequence_ClassifiesSentinels(t *testing.T) {
	assert.True(t, WrapSequence(RawNotSet, false).IsUnset())
	assert.True(t, WrapSequence(RawEndOfPartition, false).IsEndOfPartition())

	seq := WrapSequence(100, true)
	assert.Equal(t, KindValue, seq.Kind)
	assert.Equal(t, int64(100), seq.Offset)
	assert.True(t, seq.Exclusive)
}

func TestSequenceNumber_TotalOrderAcrossSentinels(t *testing.T) {
	unset := UnsetSequence()
	low := SequenceOf(0)
	high := SequenceOf(1 << 40)
	eop := EndOfPartitionSequence()

	assert.Equal(t, -1, unset.Compare(low))
	assert.Equal(t, -1, low.Compare(high))
	assert.Equal(t, -1, high.Compare(eop))
	assert.Equal(t, 1, eop.Compare(unset))
	assert.Equal(t, 0, unset.Compare(UnsetSequence()))
	assert.Equal(t, 0, eop.Compare(EndOfPartitionSequence()))
}

func TestSequenceNumber_ExclusiveDoesNotAffectOrdering(t *testing.T) {
	a := SequenceNumber{Kind: KindValue, Offset: 7, Exclusive: true}
	b := SequenceNumber{Kind: KindValue, Offset: 7, Exclusive: false}

	assert.Equal(t, 0, a.Compare(b))
	assert.True(t, a.Equal(b))
}

func TestSequenceNumber_RawRoundTripsSentinels(t *testing.T) {
	assert.Equal(t, RawNotSet, UnsetSequence().Raw())
	assert.Equal(t, RawEndOfPartition, EndOfPartitionSequence().Raw())
	assert.Equal(t, int64(42), SequenceOf(42).Raw())
}

func TestSequenceNumber_MaxPicksGreater(t *testing.T) {
	assert.Equal(t, SequenceOf(9), SequenceOf(9).Max(SequenceOf(3)))
	assert.Equal(t, SequenceOf(3), UnsetSequence().Max(SequenceOf(3)))
	assert.True(t, EndOfPartitionSequence().Max(SequenceOf(3)).IsEndOfPartition())
}
