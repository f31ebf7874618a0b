package dedup

import (
	"context"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// Store is the durable record store.
type Store interface {
	Exists(ctx context.Context, id, deadline string) (bool, error)
	Insert(ctx context.Context, rec model.ScholarshipRecord) (bool, error)
	Touch(ctx context.Context, id, deadline string, at time.Time) (bool, error)
}

// Cache is an optional fast path in front of Store.Exists.
type Cache interface {
	Seen(ctx context.Context, id, deadline string) (bool, error)
	Mark(ctx context.Context, id, deadline string) error
	Forget(ctx context.Context, id, deadline string) error
}

// Outcome is what Upsert did with a record.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Deduper checks existence before every write and never overwrites stored
// content: a known record only has its updated_at bumped.
type Deduper struct {
	store Store
	cache Cache
	log   logger.Logger
	now   func() time.Time
}

// New returns a Deduper. cache may be nil.
func New(store Store, cache Cache, log logger.Logger) *Deduper {
	return &Deduper{store: store, cache: cache, log: log.With(logger.Component("dedup")), now: time.Now}
}

// Exists reports whether (id, deadline) is already known. Cache failures fall
// back to the store.
func (d *Deduper) Exists(ctx context.Context, id, deadline string) (bool, error) {
	if d.cache != nil {
		seen, err := d.cache.Seen(ctx, id, deadline)
		if err != nil {
			d.log.Warn("Seen-cache lookup failed, using store", logger.String("id", id), logger.Error(err))
		} else if seen {
			return true, nil
		}
	}
	return d.store.Exists(ctx, id, deadline)
}

// Upsert persists rec if it is new, otherwise refreshes its updated_at. A
// lost insert race counts as an update.
func (d *Deduper) Upsert(ctx context.Context, rec model.ScholarshipRecord) (Outcome, error) {
	exists, err := d.Exists(ctx, rec.ID, rec.Deadline)
	if err != nil {
		return 0, err
	}

	if exists {
		found, err := d.store.Touch(ctx, rec.ID, rec.Deadline, d.now().UTC())
		if err != nil {
			return 0, err
		}
		if found {
			d.mark(ctx, rec)
			return OutcomeUpdated, nil
		}
		// Cached but gone from the store.
		d.forget(ctx, rec)
	}

	inserted, err := d.store.Insert(ctx, rec)
	if err != nil {
		return 0, err
	}
	if !inserted {
		if _, err := d.store.Touch(ctx, rec.ID, rec.Deadline, d.now().UTC()); err != nil {
			return 0, err
		}
		d.mark(ctx, rec)
		return OutcomeUpdated, nil
	}
	d.mark(ctx, rec)
	return OutcomeInserted, nil
}

func (d *Deduper) mark(ctx context.Context, rec model.ScholarshipRecord) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Mark(ctx, rec.ID, rec.Deadline); err != nil {
		d.log.Warn("Seen-cache mark failed", logger.String("id", rec.ID), logger.Error(err))
	}
}

func (d *Deduper) forget(ctx context.Context, rec model.ScholarshipRecord) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Forget(ctx, rec.ID, rec.Deadline); err != nil {
		d.log.Warn("Seen-cache forget failed", logger.String("id", rec.ID), logger.Error(err))
	}
}
