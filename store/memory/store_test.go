package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/store"
)

func p(id int32) supervisor.Partition {
	return supervisor.Partition{Stream: "events", ID: id}
}

func meta(offsets supervisor.OffsetMap) supervisor.DataSourceMetadata {
	return supervisor.DataSourceMetadata{DataSource: "pageviews", Stream: "events", Offsets: offsets}
}

func TestReadMetadata_NotFoundWhenNeverPublished(t *testing.T) {
	s := New()

	_, err := s.ReadMetadata(context.Background(), "pageviews")

	assert.ErrorIs(t, err, store.ErrMetadataNotFound)
}

func TestCompareAndSwapMetadata_InsertsWhenNoneExpectedAndNoneStored(t *testing.T) {
	s := New()
	updated := meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(100)})

	err := s.CompareAndSwapMetadata(context.Background(), meta(nil), updated)

	require.NoError(t, err)
	got, err := s.ReadMetadata(context.Background(), "pageviews")
	require.NoError(t, err)
	assert.True(t, got.Offsets.Equal(updated.Offsets))
}

func TestCompareAndSwapMetadata_AdvancesWhenPreconditionHolds(t *testing.T) {
	s := New()
	ctx := context.Background()
	old := meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(100)})
	require.NoError(t, s.ResetMetadata(ctx, old))

	updated := meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(200)})
	err := s.CompareAndSwapMetadata(ctx, old, updated)

	require.NoError(t, err)
	got, _ := s.ReadMetadata(ctx, "pageviews")
	assert.Equal(t, supervisor.SequenceOf(200), got.Offsets[p(0)])
}

func TestCompareAndSwapMetadata_RejectsStalePrecondition(t *testing.T) {
	s := New()
	ctx := context.Background()

	// A concurrent external reset moved the store to 150 after the
	// supervisor read 100.
	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(150)})))

	err := s.CompareAndSwapMetadata(ctx,
		meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(100)}),
		meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(200)}))

	assert.ErrorIs(t, err, store.ErrPreconditionFailed)

	// The stored value is untouched; the caller re-reads 150.
	got, readErr := s.ReadMetadata(ctx, "pageviews")
	require.NoError(t, readErr)
	assert.Equal(t, supervisor.SequenceOf(150), got.Offsets[p(0)])
}

func TestCompareAndSwapMetadata_RejectsInsertWhenMetadataExists(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(1)})))

	err := s.CompareAndSwapMetadata(ctx, meta(nil), meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(2)}))

	assert.ErrorIs(t, err, store.ErrPreconditionFailed)
}

func TestCompareAndSwapMetadata_RejectsStreamMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(10)})))

	expected := supervisor.DataSourceMetadata{
		DataSource: "pageviews",
		Stream:     "other-topic",
		Offsets:    supervisor.OffsetMap{p(0): supervisor.SequenceOf(10)},
	}
	err := s.CompareAndSwapMetadata(ctx, expected, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(20)}))

	assert.ErrorIs(t, err, store.ErrPreconditionFailed)
}

func TestResetMetadata_OverwritesUnconditionally(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(500)})))

	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(5)})))

	got, err := s.ReadMetadata(ctx, "pageviews")
	require.NoError(t, err)
	assert.Equal(t, supervisor.SequenceOf(5), got.Offsets[p(0)])
}

func TestReadMetadata_ReturnsIndependentCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.ResetMetadata(ctx, meta(supervisor.OffsetMap{p(0): supervisor.SequenceOf(7)})))

	got, err := s.ReadMetadata(ctx, "pageviews")
	require.NoError(t, err)
	got.Offsets[p(0)] = supervisor.SequenceOf(999)

	again, err := s.ReadMetadata(ctx, "pageviews")
	require.NoError(t, err)
	assert.Equal(t, supervisor.SequenceOf(7), again.Offsets[p(0)])
}
