// Package submission commits a finished registration draft: it prices the
// draft, writes the disposal and credits the balance in one transaction.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/registration"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/metrics"
)

var (
	ErrIncompleteDraft  = errors.New("submission: draft is incomplete")
	ErrUnauthenticated  = errors.New("submission: user is not authenticated")
	ErrStoreUnavailable = errors.New("submission: store unavailable")
)

var errBalanceOverflow = errors.New("balance overflow")

// DefaultTimeout bounds the ledger transaction when none is configured.
const DefaultTimeout = 5 * time.Second

type Calculator interface {
	Compute(materialID, quantityRaw string) (award.Result, error)
}

type Coordinator struct {
	store   disposals.Store
	calc    Calculator
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(store disposals.Store, calc Calculator, log *slog.Logger, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		store:   store,
		calc:    calc,
		log:     log,
		timeout: timeout,
		now:     time.Now,
	}
}

// IsRetryable reports whether resubmitting the same draft may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Submit records the draft for userID. The draft's AttemptID is the record
// id: submitting the same attempt again returns the stored record and does
// not credit the balance twice.
func (c *Coordinator) Submit(ctx context.Context, userID string, draft registration.Draft) (disposals.Record, error) {
	rec, replay, err := c.submit(ctx, userID, draft)
	if err != nil {
		metrics.SubmissionFailures.WithLabelValues(reason(err)).Inc()
		c.log.Warn("submission failed",
			"user_id", userID,
			"site_id", draft.Site.SiteID,
			"material", draft.Material,
			"attempt_id", draft.AttemptID,
			"err", err,
		)
		return disposals.Record{}, err
	}

	if replay {
		c.log.Info("disposal replayed", "user_id", userID, "disposal_id", rec.ID)
		return rec, nil
	}
	metrics.DisposalsRegistered.WithLabelValues(string(rec.Unit())).Inc()
	metrics.PointsAwarded.Add(float64(rec.PointsAwarded))
	c.log.Info("disposal registered",
		"user_id", userID,
		"disposal_id", rec.ID,
		"site_id", rec.SiteID,
		"material", rec.MaterialID,
		"quantity", rec.QuantityLabel(),
		"points", rec.PointsAwarded,
	)
	return rec, nil
}

func (c *Coordinator) submit(ctx context.Context, userID string, draft registration.Draft) (disposals.Record, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return disposals.Record{}, false, ErrUnauthenticated
	}
	if draft.Site.IsZero() || draft.Category == "" || draft.Material == "" || strings.TrimSpace(draft.Quantity) == "" {
		return disposals.Record{}, false, ErrIncompleteDraft
	}

	res, err := c.calc.Compute(draft.Material, draft.Quantity)
	if err != nil {
		return disposals.Record{}, false, err
	}
	if res.Rule.Category != draft.Category {
		return disposals.Record{}, false, fmt.Errorf("%w: %q is not in category %q", ErrIncompleteDraft, res.Rule.MaterialID, draft.Category)
	}

	id := draft.AttemptID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return disposals.Record{}, false, fmt.Errorf("%w: attempt id %q", ErrIncompleteDraft, id)
	}

	rec := disposals.Record{
		ID:            id,
		UserID:        userID,
		SiteID:        draft.Site.SiteID,
		MaterialID:    res.Rule.MaterialID,
		Category:      res.Rule.Category,
		PointsAwarded: res.Points,
		Status:        disposals.StatusPendingValidation,
		CreatedAt:     c.now().UTC(),
	}
	switch res.Quantity.Unit {
	case pricing.UnitPerCount:
		n := res.Quantity.Count
		rec.Count = &n
	default:
		m := res.Quantity.Mass
		rec.Mass = &m
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	var (
		out    disposals.Record
		replay bool
	)
	err = c.store.Transactionally(ctx, func(tx disposals.Tx) error {
		cur, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return err
		}
		existing, err := tx.Find(ctx, rec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.UserID != userID {
				return fmt.Errorf("%w: attempt %s belongs to another account", ErrIncompleteDraft, rec.ID)
			}
			out, replay = *existing, true
			return nil
		}
		if cur > math.MaxInt64-rec.PointsAwarded {
			return errBalanceOverflow
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, userID, cur+rec.PointsAwarded); err != nil {
			return err
		}
		out = rec
		return nil
	})
	metrics.SubmissionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		return disposals.Record{}, false, classify(err)
	}
	return out, replay, nil
}

// classify maps store errors onto the submission taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrIncompleteDraft):
		return err
	case errors.Is(err, disposals.ErrAccountNotFound):
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	case errors.Is(err, errBalanceOverflow):
		return fmt.Errorf("%w: %v", award.ErrInvalidQuantity, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrIncompleteDraft):
		return "incomplete_draft"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, award.ErrUnknownMaterial):
		return "unknown_material"
	case errors.Is(err, award.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, award.ErrZeroAward):
		return "zero_award"
	}
	return "other"
}
