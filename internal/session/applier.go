package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/loopguard/internal/core/domain"
)

const unknownID = "unknown"

var (
	// ErrMissingIdentifier is returned for operations without an identifier.
	ErrMissingIdentifier = domain.NewError(domain.ClassValidation, "operation has no identifier")

	// ErrMissingFields is returned when creating an entity without heading and content.
	ErrMissingFields = domain.NewError(domain.ClassValidation, "create requires heading and content")

	// ErrNoSnapshot is returned when Apply is called without a target collection.
	ErrNoSnapshot = errors.New("no target snapshot")
)

// Summary aggregates the outcome of a batch.
type Summary struct {
	Results []domain.OperationResult `json:"results"`
	Errors  []domain.BatchError      `json:"errors"`
}

// HasErrors reports whether any operation failed.
func (s Summary) HasErrors() bool { return len(s.Errors) > 0 }

// Applied counts the successful operations.
func (s Summary) Applied() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == domain.OperationSuccess {
			n++
		}
	}
	return n
}

// Applier applies operation batches to snapshots.
type Applier struct {
	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// NewApplier creates an applier.
func NewApplier(log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{
		now:   time.Now,
		newID: uuid.NewString,
		log:   log.With("component", "applier"),
	}
}

// Apply processes ops in order against snap. A failing operation is
// recorded and skipped; it never aborts the rest of the batch.
func (a *Applier) Apply(ops []domain.Operation, snap *Snapshot) Summary {
	summary := Summary{
		Results: make([]domain.OperationResult, 0, len(ops)),
		Errors:  []domain.BatchError{},
	}

	for _, op := range ops {
		var (
			action domain.OperationAction
			err    error
		)
		if snap == nil {
			action, err = actionOf(op), ErrNoSnapshot
		} else {
			action, err = a.applyOne(op, snap)
		}

		result := domain.OperationResult{ID: op.ID, Action: action, Status: domain.OperationSuccess}
		if err != nil {
			result.Status = domain.OperationError
			result.Error = err.Error()

			id := op.ID
			if id == "" {
				id = unknownID
			}
			summary.Errors = append(summary.Errors, domain.BatchError{
				ID:             id,
				Classification: domain.ClassifyOf(err),
				Message:        err.Error(),
			})
			a.log.Debug("Operation failed", "id", id, "action", action, "error", err)
		}
		summary.Results = append(summary.Results, result)
	}

	return summary
}

func actionOf(op domain.Operation) domain.OperationAction {
	if op.Delete {
		return domain.ActionDelete
	}
	return domain.ActionUpsert
}

func (a *Applier) applyOne(op domain.Operation, snap *Snapshot) (domain.OperationAction, error) {
	if op.ID == "" {
		return actionOf(op), ErrMissingIdentifier
	}

	if op.Delete {
		// Deleting an absent entity is an idempotent no-op.
		if snap.remove(op.ID) {
			a.touch(snap, domain.ActionDelete, op.ID)
		}
		return domain.ActionDelete, nil
	}

	now := a.now()
	if existing, ok := snap.entities[op.ID]; ok {
		updated := *existing
		if op.Heading != nil && *op.Heading != "" {
			updated.Heading = *op.Heading
		}
		if op.Content != nil && *op.Content != "" {
			updated.Content = *op.Content
		}
		if op.Notes != nil {
			updated.Notes = *op.Notes
		}
		updated.UpdatedAt = now
		snap.put(&updated)
		a.touch(snap, domain.ActionUpdate, op.ID)
		return domain.ActionUpdate, nil
	}

	if op.Heading == nil || *op.Heading == "" || op.Content == nil || *op.Content == "" {
		return domain.ActionCreate, ErrMissingFields
	}

	e := &domain.Entity{
		ID:        op.ID,
		Heading:   *op.Heading,
		Content:   *op.Content,
		CreatedAt: now,
	}
	if op.Notes != nil {
		e.Notes = *op.Notes
	}
	snap.put(e)
	a.touch(snap, domain.ActionCreate, op.ID)
	return domain.ActionCreate, nil
}

// touch marks the collection dirty and appends an audit record.
func (a *Applier) touch(snap *Snapshot, action domain.OperationAction, id string) {
	snap.dirty = true
	snap.activity = append(snap.activity, domain.Activity{
		ID:        a.newID(),
		Type:      snap.name,
		Action:    action,
		EntityID:  id,
		Status:    domain.OperationSuccess,
		Timestamp: a.now(),
	})
}
