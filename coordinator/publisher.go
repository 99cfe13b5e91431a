package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/store"
)

// PublishOutcome classifies the result of one publish attempt.
type PublishOutcome int

const (
	// PublishCommitted means the metadata advance was durably committed.
	PublishCommitted PublishOutcome = iota

	// PublishAlreadyCommitted means the store already holds the target
	// offsets; a replica or racing supervisor got there first. No second
	// commit was issued.
	PublishAlreadyCommitted

	// PublishAbandoned means the durable metadata moved somewhere
	// incompatible with the group's range; the group must be dropped and
	// its partitions reassigned fresh.
	PublishAbandoned
)

// PublisherConfig holds configuration for the Publisher.
type PublisherConfig struct {
	// Store is the durable metadata store (required).
	Store store.MetadataStore

	// DataSource and Stream scope every publish (required).
	DataSource supervisor.DataSourceName
	Stream     string

	// Logger is for observability (optional).
	Logger *slog.Logger
}

// Publisher performs the exactly-once, compare-and-swap advance of
// datasource metadata for frozen task groups.
type Publisher struct {
	config PublisherConfig

	mu        sync.Mutex
	committed map[string]bool // offset-range fingerprints already committed
}

// NewPublisher creates a Publisher with the given configuration.
func NewPublisher(cfg PublisherConfig) *Publisher {
	return &Publisher{
		config:    cfg,
		committed: make(map[string]bool),
	}
}

// Publish advances the durable metadata to the group's frozen end
// offsets, conditioned on the store still holding the offsets this
// supervisor last observed.
//
// On a precondition failure the publisher re-reads the store and
// re-derives: if the fresh value already equals the target the publish
// counts as already committed; otherwise the group's range is stale and
// the outcome is PublishAbandoned. It never retries the same
// precondition blindly.
func (p *Publisher) Publish(ctx context.Context, group *supervisor.TaskGroup) (PublishOutcome, error) {
	if group.Phase != supervisor.GroupPhasePublishing || group.EndOffsets == nil {
		return PublishAbandoned, fmt.Errorf("group %d is not frozen for publish", group.ID)
	}

	fp := fingerprint(p.config.Stream, group.EndOffsets)
	p.mu.Lock()
	if p.committed[fp] {
		p.mu.Unlock()
		return PublishAlreadyCommitted, nil
	}
	p.mu.Unlock()

	expected, err := p.readCurrent(ctx)
	if err != nil {
		return PublishAbandoned, err
	}

	updated := supervisor.DataSourceMetadata{
		DataSource: p.config.DataSource,
		Stream:     p.config.Stream,
		Offsets:    mergeOffsets(expected.Offsets, group.EndOffsets),
	}

	err = p.config.Store.CompareAndSwapMetadata(ctx, expected, updated)
	if err == nil {
		p.markCommitted(fp)
		if p.config.Logger != nil {
			p.config.Logger.Info("metadata published",
				"dataSource", p.config.DataSource, "group", group.ID)
		}
		return PublishCommitted, nil
	}
	if !errors.Is(err, store.ErrPreconditionFailed) {
		return PublishAbandoned, fmt.Errorf("publish group %d: %w", group.ID, err)
	}

	// Precondition failed: someone changed the metadata underneath us.
	fresh, readErr := p.readCurrent(ctx)
	if readErr != nil {
		return PublishAbandoned, readErr
	}
	if fresh.Offsets.Equal(updated.Offsets) {
		p.markCommitted(fp)
		return PublishAlreadyCommitted, nil
	}

	if p.config.Logger != nil {
		p.config.Logger.Warn("publish precondition failed, abandoning task group",
			"dataSource", p.config.DataSource, "group", group.ID)
	}
	return PublishAbandoned, nil
}

// Reset overwrites the durable metadata with operator-supplied offsets,
// bypassing the monotonic-advance rule, and clears the dedup record so
// future publishes are judged against the fresh baseline.
func (p *Publisher) Reset(ctx context.Context, offsets supervisor.OffsetMap) error {
	meta := supervisor.DataSourceMetadata{
		DataSource: p.config.DataSource,
		Stream:     p.config.Stream,
		Offsets:    offsets.Clone(),
	}
	if err := p.config.Store.ResetMetadata(ctx, meta); err != nil {
		return fmt.Errorf("reset metadata: %w", err)
	}

	p.mu.Lock()
	p.committed = make(map[string]bool)
	p.mu.Unlock()

	if p.config.Logger != nil {
		p.config.Logger.Warn("metadata reset by operator",
			"dataSource", p.config.DataSource, "stream", p.config.Stream)
	}
	return nil
}

// readCurrent loads the store's value, mapping "no metadata yet" to an
// expected value with nil offsets (the insert precondition). Metadata
// for a different stream is not this supervisor's: it is treated as
// absent rather than adopted.
func (p *Publisher) readCurrent(ctx context.Context) (supervisor.DataSourceMetadata, error) {
	meta, err := p.config.Store.ReadMetadata(ctx, p.config.DataSource)
	if errors.Is(err, store.ErrMetadataNotFound) {
		return supervisor.DataSourceMetadata{DataSource: p.config.DataSource, Stream: p.config.Stream}, nil
	}
	if err != nil {
		return supervisor.DataSourceMetadata{}, fmt.Errorf("read metadata: %w", err)
	}
	if !meta.Matches(p.config.DataSource, p.config.Stream) {
		if p.config.Logger != nil {
			p.config.Logger.Warn("ignoring metadata for foreign stream",
				"dataSource", p.config.DataSource, "stored", meta.Stream)
		}
		return supervisor.DataSourceMetadata{DataSource: p.config.DataSource, Stream: p.config.Stream}, nil
	}
	return meta, nil
}

func (p *Publisher) markCommitted(fp string) {
	p.mu.Lock()
	p.committed[fp] = true
	p.mu.Unlock()
}

func mergeOffsets(base, advance supervisor.OffsetMap) supervisor.OffsetMap {
	out := base.Clone()
	if out == nil {
		out = make(supervisor.OffsetMap)
	}
	for p, seq := range advance {
		out[p] = seq
	}
	return out
}

func fingerprint(streamName string, offsets supervisor.OffsetMap) string {
	parts := make([]string, 0, len(offsets))
	for _, p := range offsets.Partitions() {
		parts = append(parts, fmt.Sprintf("%s=%d", p.Key(), offsets[p].Raw()))
	}
	sort.Strings(parts)
	return streamName + "|" + strings.Join(parts, ",")
}
