// Package booking moves slots between unbooked and booked and tells the
// parties about it.
package booking

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/errs"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
	"github.com/arnavshah/pharmacal-api/pkg/models"
	"github.com/arnavshah/pharmacal-api/pkg/notify"
)

// Store is what the lifecycle needs from storage.
type Store interface {
	FindSlotByCode(ctx context.Context, code string) (models.Slot, error)
	MarkBooked(ctx context.Context, code, requesterName, requesterContact, nonce string) error
	ClearBooking(ctx context.Context, code, nonce string) error
	ResolveContact(ctx context.Context, name string) (string, error)
}

// Request is the requester side of a booking.
type Request struct {
	RequesterName    string `json:"requester_name" validate:"required"`
	RequesterContact string `json:"requester_contact" validate:"required,email"`
}

// Result is the slot after a transition plus anything that went wrong on
// the side, such as an undelivered e-mail.
type Result struct {
	Slot     models.Slot `json:"slot"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Service runs the booking lifecycle against a Store.
type Service struct {
	store     Store
	notifier  notify.Notifier
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService wires the lifecycle. notifier, logger and m may be nil.
func NewService(store Store, notifier notify.Notifier, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{store: store, notifier: notifier, validator: v, logger: logger, metrics: m}
}

// Book claims an assigned, unbooked slot for a requester.
func (s *Service) Book(ctx context.Context, code string, req Request) (Result, error) {
	code = strings.TrimSpace(code)
	req.RequesterName = strings.TrimSpace(req.RequesterName)
	req.RequesterContact = strings.TrimSpace(req.RequesterContact)

	if code == "" {
		return Result{}, s.reject("book", errs.Validation("unique_code is required"))
	}
	if err := s.validate(code, req); err != nil {
		return Result{}, s.reject("book", err)
	}

	slot, err := s.store.FindSlotByCode(ctx, code)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			err = errs.Mark(err, errs.ErrInvalidBooking)
		}
		return Result{}, s.reject("book", err)
	}
	if !models.IsAvailable(slot) {
		return Result{}, s.reject("book", errs.Mark(
			errs.Newf("slot %s (%s) is unassigned", slot.UniqueCode, slot.Key()), errs.ErrInvalidBooking))
	}
	if slot.Booked {
		return Result{}, s.reject("book", errs.Mark(
			errs.Newf("slot %s (%s) is already booked", slot.UniqueCode, slot.Key()), errs.ErrInvalidBooking))
	}

	nonce := uuid.NewString()
	if err := s.store.MarkBooked(ctx, code, req.RequesterName, req.RequesterContact, nonce); err != nil {
		return Result{}, s.reject("book", err)
	}
	slot.Booked = true
	slot.RequesterName = req.RequesterName
	slot.RequesterContact = req.RequesterContact
	slot.BookingNonce = nonce

	s.logger.Info("booking: slot booked",
		zap.String("unique_code", slot.UniqueCode),
		zap.String("key", slot.Key().String()),
		zap.String("assignee", slot.Assignee()),
		zap.String("requester", slot.RequesterName))
	s.metrics.ObserveBooking("book", "ok")

	res := Result{Slot: slot}
	res.Warnings = s.notify(ctx, notify.EventBooked, slot, req.RequesterName, req.RequesterContact)
	return res, nil
}

// Cancel undoes whatever booking the slot holds. The assignee stays on the
// slot.
func (s *Service) Cancel(ctx context.Context, code string) (Result, error) {
	return s.cancel(ctx, code, "")
}

// CancelBooking undoes one particular booking, identified by the nonce it
// was made with. A slot booked again since then is left alone.
func (s *Service) CancelBooking(ctx context.Context, code, nonce string) (Result, error) {
	if strings.TrimSpace(nonce) == "" {
		return Result{}, s.reject("cancel", errs.Validation("slot %s: booking nonce is required", code))
	}
	return s.cancel(ctx, code, nonce)
}

func (s *Service) cancel(ctx context.Context, code, nonce string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, s.reject("cancel", errs.Validation("unique_code is required"))
	}

	slot, err := s.store.FindSlotByCode(ctx, code)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			err = errs.Mark(err, errs.ErrInvalidState)
		}
		return Result{}, s.reject("cancel", err)
	}
	if !slot.Booked {
		return Result{}, s.reject("cancel",
			errs.InvalidState("slot %s (%s) is not booked", slot.UniqueCode, slot.Key()))
	}

	if nonce != "" && slot.BookingNonce != nonce {
		return Result{}, s.reject("cancel",
			errs.InvalidState("slot %s (%s) has been booked again since that booking", slot.UniqueCode, slot.Key()))
	}

	if err := s.store.ClearBooking(ctx, code, nonce); err != nil {
		return Result{}, s.reject("cancel", err)
	}
	requesterName, requesterContact := slot.RequesterName, slot.RequesterContact
	slot.Booked = false
	slot.RequesterName, slot.RequesterContact, slot.BookingNonce = "", "", ""

	s.logger.Info("booking: booking cancelled",
		zap.String("unique_code", slot.UniqueCode),
		zap.String("key", slot.Key().String()),
		zap.String("assignee", slot.Assignee()),
		zap.String("requester", requesterName))
	s.metrics.ObserveBooking("cancel", "ok")

	res := Result{Slot: slot}
	res.Warnings = s.notify(ctx, notify.EventCancelled, slot, requesterName, requesterContact)
	return res, nil
}

func (s *Service) validate(code string, req Request) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.Mark(errs.Wrap(err, "slot "+code), errs.ErrValidation)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		case "email":
			problems = append(problems, fe.Field()+" must be an e-mail address")
		default:
			problems = append(problems, fe.Field()+" failed "+fe.Tag())
		}
	}
	return errs.Validation("slot %s: %s", code, strings.Join(problems, "; "))
}

// notify runs after the state change has been committed; failures become
// warnings and never undo the transition.
func (s *Service) notify(ctx context.Context, event notify.Event, slot models.Slot, requesterName, requesterContact string) []string {
	if s.notifier == nil {
		return nil
	}

	var warnings []string
	assigneeContact, err := s.store.ResolveContact(ctx, slot.Assignee())
	if err != nil {
		warnings = append(warnings, "no contact for "+slot.Assignee()+", assignee not notified")
		s.logger.Warn("booking: assignee contact unresolved",
			zap.String("unique_code", slot.UniqueCode),
			zap.String("assignee", slot.Assignee()),
			zap.Error(err))
	}

	err = s.notifier.Notify(ctx, notify.Notice{
		Event:            event,
		Slot:             slot,
		RequesterName:    requesterName,
		RequesterContact: requesterContact,
		AssigneeContact:  assigneeContact,
	})
	if err != nil {
		warnings = append(warnings, "notification failed: "+err.Error())
		s.logger.Warn("booking: notification failed",
			zap.String("event", string(event)),
			zap.String("unique_code", slot.UniqueCode),
			zap.Error(err))
		s.metrics.ObserveNotification(string(event), "failed")
		return warnings
	}
	s.metrics.ObserveNotification(string(event), "sent")
	return warnings
}

func (s *Service) reject(op string, err error) error {
	s.logger.Info("booking: "+op+" rejected", zap.String("code", errs.Code(err)), zap.Error(err))
	s.metrics.ObserveBooking(op, strings.ToLower(errs.Code(err)))
	return err
}
