package reconciler

import (
	"context"

	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
	"github.com/arnavshah/pharmacal-api/pkg/models"
)

// SlotStore is the slice of storage a reconciliation needs.
type SlotStore interface {
	ReadSlots(ctx context.Context) ([]models.Slot, error)
	CreateSlot(ctx context.Context, slot models.Slot) error
	UpdateSlotAssignee(ctx context.Context, code, name string) error
	DeleteSlot(ctx context.Context, code string) error
}

// Result is how a single mutation ended.
type Result string

const (
	ResultApplied        Result = "applied"
	ResultFallbackCreate Result = "fallback_create"
	ResultSkipped        Result = "skipped"
	ResultFailed         Result = "failed"
)

// Outcome reports one mutation.
type Outcome struct {
	Mutation models.Mutation `json:"mutation"`
	Result   Result          `json:"result"`
	Warning  string          `json:"warning,omitempty"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`

	Err error `json:"-"`
}

// Report is the per-mutation account of an Apply.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Failed returns the outcomes that did not reach storage.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Result == ResultFailed {
			out = append(out, o)
		}
	}
	return out
}

// Warnings collects the non-fatal notes of every outcome.
func (r Report) Warnings() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Warning != "" {
			out = append(out, o.Warning)
		}
	}
	return out
}

// OK reports whether every mutation landed.
func (r Report) OK() bool {
	return len(r.Failed()) == 0
}

// Reconciler applies desired availability to a SlotStore.
type Reconciler struct {
	store   SlotStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Reconciler. logger and m may be nil.
func New(store SlotStore, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger, metrics: m}
}

// Plan reads a fresh snapshot and returns the mutations Run would apply.
func (r *Reconciler) Plan(ctx context.Context, desired *Desired) ([]models.Mutation, error) {
	persisted, err := r.store.ReadSlots(ctx)
	if err != nil {
		if !errs.Is(err, errs.ErrStorage) {
			err = errs.Storage(err, "read persisted slots")
		}
		return nil, err
	}
	return Diff(desired, persisted), nil
}

// Run plans against a fresh snapshot and applies the plan. A failed read
// aborts before anything is written; failures of individual mutations are
// reported in the Report instead.
func (r *Reconciler) Run(ctx context.Context, desired *Desired) (Report, error) {
	plan, err := r.Plan(ctx, desired)
	if err != nil {
		r.logger.Error("reconcile: snapshot read failed", zap.Error(err))
		return Report{}, err
	}
	r.logger.Info("reconcile: planned", zap.Int("mutations", len(plan)))
	return r.Apply(ctx, plan), nil
}

// Apply executes mutations in order. It keeps going past failures so that
// one bad row cannot block the rest of the grid.
func (r *Reconciler) Apply(ctx context.Context, plan []models.Mutation) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(plan))}
	for _, m := range plan {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, r.finish(m, ResultFailed, "", err))
			continue
		}
		report.Outcomes = append(report.Outcomes, r.apply(ctx, m))
	}
	return report
}

func (r *Reconciler) apply(ctx context.Context, m models.Mutation) Outcome {
	switch m.Kind {
	case models.MutationCreate:
		if err := r.store.CreateSlot(ctx, m.Slot()); err != nil {
			return r.finish(m, ResultFailed, "", err)
		}
		return r.finish(m, ResultApplied, "", nil)

	case models.MutationUpdateAssignee:
		err := r.store.UpdateSlotAssignee(ctx, m.UniqueCode, m.AssignedName)
		if err == nil {
			return r.finish(m, ResultApplied, "", nil)
		}
		if !errs.Is(err, errs.ErrNotFound) {
			return r.finish(m, ResultFailed, "", err)
		}
		// The row vanished after the snapshot: recreate it under the same code.
		warning := "slot " + m.UniqueCode + " was not found for update; created instead"
		if err := r.store.CreateSlot(ctx, m.Slot()); err != nil {
			return r.finish(m, ResultFailed, warning, err)
		}
		return r.finish(m, ResultFallbackCreate, warning, nil)

	case models.MutationDelete:
		err := r.store.DeleteSlot(ctx, m.UniqueCode)
		if err == nil {
			return r.finish(m, ResultApplied, "", nil)
		}
		if errs.Is(err, errs.ErrNotFound) {
			return r.finish(m, ResultSkipped, "slot "+m.UniqueCode+" was already gone", nil)
		}
		return r.finish(m, ResultFailed, "", err)
	}
	return r.finish(m, ResultFailed, "", errs.Validation("unknown mutation kind %q", m.Kind))
}

func (r *Reconciler) finish(m models.Mutation, result Result, warning string, err error) Outcome {
	o := Outcome{Mutation: m, Result: result, Warning: warning, Err: err}
	fields := []zap.Field{
		zap.String("kind", string(m.Kind)),
		zap.String("unique_code", m.UniqueCode),
		zap.String("key", m.Key.String()),
		zap.String("result", string(result)),
	}
	switch {
	case err != nil:
		o.Error = errs.Message(err)
		o.Code = errs.Code(err)
		r.logger.Error("reconcile: mutation failed", append(fields, zap.Error(err))...)
	case warning != "":
		r.logger.Warn("reconcile: "+warning, fields...)
	default:
		r.logger.Debug("reconcile: mutation applied", fields...)
	}
	r.metrics.ObserveMutation(string(m.Kind), string(result))
	return o
}
