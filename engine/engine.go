package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

// DefaultRetryBudget is the number of times a transaction is restarted
// after losing a validation race before ErrBusy surfaces.
const DefaultRetryBudget = 8

// Config configures an engine.
type Config struct {
	// Store holds the content blobs. The engine never closes it; the
	// mount lifecycle that opened it does.
	Store *store.Store

	// KeepEmptyTags retains a tag whose last member was removed. The
	// default deletes it: tags are dynamic classifications, not
	// persistent containers.
	KeepEmptyTags bool

	// RetryBudget overrides DefaultRetryBudget when positive.
	RetryBudget int

	Logger *logrus.Logger
}

// Engine orchestrates all graph mutations as atomic transactions over the
// three registries, the digest index, and the content store. All indices
// start empty on construction and are dropped on Close; only blob content
// outlives a mount.
type Engine struct {
	store   *store.Store
	files   *graph.FileRegistry
	names   *graph.NameRegistry
	tags    *graph.TagIndex
	digests *digestIndex

	keepEmptyTags bool
	retryBudget   int
	log           *logrus.Logger
}

// New creates an engine over the given content store.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine requires a content store")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	budget := cfg.RetryBudget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}
	return &Engine{
		store:         cfg.Store,
		files:         graph.NewFileRegistry(),
		names:         graph.NewNameRegistry(),
		tags:          graph.NewTagIndex(),
		digests:       newDigestIndex(),
		keepEmptyTags: cfg.KeepEmptyTags,
		retryBudget:   budget,
		log:           cfg.Logger,
	}, nil
}

// Close drops the in-memory graph and indices. Content already persisted
// in the store is untouched.
func (e *Engine) Close() error {
	e.log.WithFields(logrus.Fields{
		"files": e.files.Len(),
		"names": e.names.Len(),
		"tags":  e.tags.Len(),
	}).Debug("engine closed")
	e.files = graph.NewFileRegistry()
	e.names = graph.NewNameRegistry()
	e.tags = graph.NewTagIndex()
	e.digests = newDigestIndex()
	return nil
}

// transact runs one operation, restarting it while attempts lose
// validation races, up to the retry budget. An abandoned context stops
// retrying between attempts; an attempt that has started committing
// always finishes, so callers never observe partial mutation.
func (e *Engine) transact(ctx context.Context, op string, fn func() error) error {
	txid := uuid.NewString()
	for attempt := 1; attempt <= e.retryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if errors.Is(err, errRestart) {
			e.log.WithFields(logrus.Fields{
				"op":      op,
				"tx":      txid,
				"attempt": attempt,
			}).Debug("transaction restarted")
			continue
		}
		return err
	}
	e.log.WithFields(logrus.Fields{"op": op, "tx": txid}).Warn("retry budget exhausted")
	return fmt.Errorf("%s: %w", op, ErrBusy)
}

// unreachable records an invariant violation and builds the error
// surfaced for it. Never repaired in place.
func (e *Engine) unreachable(op string, detail string) error {
	e.log.WithFields(logrus.Fields{"op": op, "detail": detail}).Error("graph invariant violated")
	return fmt.Errorf("%s: %s: %w", op, detail, ErrUnreachable)
}

// collectBlob releases a condemned blob after its transaction committed.
// Deletion failure is logged, not surfaced: the graph mutation is already
// visible and the orphan blob is harmless.
func (e *Engine) collectBlob(d store.Digest) {
	if err := e.store.Delete(d); err != nil {
		e.log.WithError(err).WithField("digest", d.Short()).Warn("releasing blob")
	}
	e.digests.absolve(d)
}

// Stats describes the live graph and index sizes.
type Stats struct {
	Files   int
	Names   int
	Tags    int
	Digests int
}

// Stat returns current graph statistics.
func (e *Engine) Stat() Stats {
	return Stats{
		Files:   e.files.Len(),
		Names:   e.names.Len(),
		Tags:    e.tags.Len(),
		Digests: e.digests.len(),
	}
}

// Tags returns all known tag labels, sorted. The boundary adapter lists
// these as the top-level directories.
func (e *Engine) Tags() []string {
	return e.tags.Labels()
}

// TagID resolves a label to its stable tag id. The boundary adapter
// derives directory inodes from it.
func (e *Engine) TagID(label string) (graph.TagID, error) {
	t, err := e.tags.Lookup(label)
	if err != nil {
		return 0, err
	}
	return t.ID(), nil
}

// EnsureTag creates a tag on first use of the label and returns its id.
// Backs the adapter's mkdir.
func (e *Engine) EnsureTag(label string) (graph.TagID, error) {
	t, err := e.tags.GetOrCreate(label)
	if err != nil {
		return 0, err
	}
	return t.ID(), nil
}

// RemoveTag deletes an empty tag. Backs the adapter's rmdir; removing a
// tag that still has members fails with graph.ErrNotEmpty.
func (e *Engine) RemoveTag(ctx context.Context, label string) error {
	return e.transact(ctx, "remove_tag", func() error {
		tag, err := e.tags.Lookup(label)
		if err != nil {
			return err
		}
		locks := lockSet{tagLock(tag, false)}
		locks.acquire()
		defer locks.release()

		if cur, err := e.tags.Lookup(label); err != nil || cur != tag {
			return errRestart
		}
		if tag.MemberCount() > 0 {
			return fmt.Errorf("%w: %q", graph.ErrNotEmpty, label)
		}
		e.tags.Remove(tag.ID())
		return nil
	})
}
