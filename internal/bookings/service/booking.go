package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "smartassist/internal/bookings/errors"
	"smartassist/internal/bookings/repository"
	"smartassist/internal/bookings/slot"
	"smartassist/internal/bookings/validator"
	"smartassist/internal/events"
	"smartassist/pkg/clock"
	"smartassist/pkg/config"
	apperrors "smartassist/pkg/errors"
	"smartassist/pkg/locker"
	"smartassist/pkg/model"
	"smartassist/pkg/sanitizer"
	"smartassist/pkg/sealer"

	"github.com/google/uuid"
)

type BookingService interface {
	ProposeBooking(ctx context.Context, req *model.ProposeRequest) (*model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	SetStatus(ctx context.Context, id, status, remarks string) (*model.Booking, error)
	// ApplyAction performs a status change carried by a signed e-mail link.
	ApplyAction(ctx context.Context, id, status, token string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	locker    locker.Locker
	validator *validator.BookingValidator
	sealer    *sealer.Sealer
	publisher events.Publisher
	sequencer *clock.Sequencer
	cfg       *config.Config
}

type Option func(*bookingService)

func WithClock(c clock.Clock) Option {
	return func(s *bookingService) {
		s.sequencer = clock.NewSequencer(c)
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *bookingService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithSealer enables one-click action links.
func WithSealer(sl *sealer.Sealer) Option {
	return func(s *bookingService) {
		s.sealer = sl
	}
}

func NewBookingService(
	repo repository.BookingRepository,
	lk locker.Locker,
	validator *validator.BookingValidator,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:      repo,
		locker:    lk,
		validator: validator,
		publisher: events.Nop(),
		sequencer: clock.NewSequencer(clock.System()),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func SlotLockKey(resource, date string) string {
	return "slot:" + resource + "|" + date
}

func (s *bookingService) ProposeBooking(ctx context.Context, req *model.ProposeRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}

	proposal := *req
	s.sanitize(&proposal)
	if err := s.validator.Validate(&proposal); err != nil {
		s.cfg.Log.Warn("Booking proposal validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking input", map[string]any{"errors": err})
	}

	interval, err := s.checkSlot(&proposal)
	if err != nil {
		return nil, err
	}

	var created *model.Booking
	err = s.withSlotLock(ctx, proposal.Resource, proposal.Date, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			active, err := s.repo.FindActiveBySlot(txCtx, proposal.Resource, proposal.Date)
			if err != nil {
				return apperrors.Internal("Failed to load bookings for slot", err)
			}
			for _, existing := range active {
				if interval.Overlaps(slot.Interval{Start: existing.StartMinute, End: existing.EndMinute}) {
					return slotUnavailable(&proposal, existing)
				}
			}

			now, seq := s.sequencer.Next()
			booking := &model.Booking{
				ID:          uuid.NewString(),
				Requester:   proposal.Requester,
				UserID:      proposal.UserID,
				Resource:    proposal.Resource,
				Date:        proposal.Date,
				Time:        proposal.Time,
				Duration:    proposal.Duration,
				Status:      model.StatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
				Sequence:    seq,
				StartMinute: interval.Start,
				EndMinute:   interval.End,
			}
			if err := s.repo.Create(txCtx, booking); err != nil {
				return apperrors.Internal("Failed to create booking", err)
			}
			created = booking
			return nil
		})
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Info("Booking proposal rejected", "resource", proposal.Resource, "date", proposal.Date, "time", proposal.Time, "reason", err)
		} else {
			s.cfg.Log.Error("Failed to propose booking", "resource", proposal.Resource, "date", proposal.Date, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking proposed",
		"id", created.ID,
		"resource", created.Resource,
		"date", created.Date,
		"time", created.Time,
		"duration", created.Duration,
		"user_id", created.UserID,
	)
	s.publisher.Publish(events.NewBookingEvent(model.EventBookingProposed, created, created.CreatedAt))

	return created.Clone(), nil
}

func (s *bookingService) ListBookings(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	filter.UserID = sanitizer.TrimAndNormalize(filter.UserID)
	switch filter.Status {
	case "", model.StatusAll, model.StatusHistory, model.StatusPending, model.StatusApproved, model.StatusRejected:
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status filter %q", filter.Status))
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperrors.InvalidInput("limit and offset cannot be negative")
	}

	bookings, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(id, err)
	}
	return booking, nil
}

func (s *bookingService) SetStatus(ctx context.Context, id, status, remarks string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if status != model.StatusApproved && status != model.StatusRejected {
		return nil, apperrors.InvalidInput(fmt.Sprintf("status must be %s or %s", model.StatusApproved, model.StatusRejected))
	}

	update := &model.StatusUpdate{Status: status, Remarks: sanitizer.NormalizeText(remarks)}
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		return nil, apperrors.Validation("Invalid status update", map[string]any{"errors": err})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(id, err)
	}

	var (
		updated    *model.Booking
		superseded []*model.Booking
	)
	err = s.withSlotLock(ctx, existing.Resource, existing.Date, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			superseded = nil

			current, err := s.repo.FindByID(txCtx, id)
			if err != nil {
				return s.translateLookupError(id, err)
			}
			if current.Status != model.StatusPending {
				return apperrors.InvalidTransition(current.Status, update.Status)
			}

			now, _ := s.sequencer.Next()
			if update.Status == model.StatusApproved {
				superseded, err = s.resolveApproval(txCtx, current, now)
				if err != nil {
					return err
				}
			}

			updated, err = s.repo.UpdateStatus(txCtx, id, model.StatusPending, update.Status, update.Remarks, now)
			if err != nil {
				if errors.Is(err, bookingserrors.ErrStatusChanged) {
					return apperrors.InvalidTransition(current.Status, update.Status)
				}
				return apperrors.Internal("Failed to update booking status", err)
			}
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to change booking status", "id", id, "status", update.Status, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking status changed", "id", id, "status", updated.Status, "superseded", len(superseded))
	for _, b := range superseded {
		s.publisher.Publish(events.NewBookingEvent(model.EventBookingRejected, b, b.UpdatedAt))
	}
	s.publisher.Publish(events.NewBookingEvent(model.EventTypeForStatus(updated.Status), updated, updated.UpdatedAt))

	return updated, nil
}

func (s *bookingService) ApplyAction(ctx context.Context, id, status, token string) (*model.Booking, error) {
	if s.sealer == nil {
		return nil, apperrors.Forbidden("Action links are disabled")
	}
	if token == "" || !s.sealer.Verify(token, id, status) {
		s.cfg.Log.Warn("Rejected action link with invalid token", "id", id, "status", status)
		return nil, apperrors.Forbidden("Invalid or tampered action link")
	}
	return s.SetStatus(ctx, id, status, "")
}

// resolveApproval applies the approval policy to the other bookings of the
// slot. Under first_approved_wins it returns the pending bookings it rejected.
func (s *bookingService) resolveApproval(ctx context.Context, target *model.Booking, now time.Time) ([]*model.Booking, error) {
	active, err := s.repo.FindActiveBySlot(ctx, target.Resource, target.Date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings for slot", err)
	}

	var overlappingPending []*model.Booking
	for _, other := range active {
		if other.ID == target.ID || !target.Overlaps(other) {
			continue
		}
		if other.Status == model.StatusApproved {
			return nil, apperrors.Conflict(fmt.Sprintf(
				"slot unavailable: %s is already approved for booking %s from %s to %s",
				target.Resource, other.ID, slot.FormatMinutes(other.StartMinute), slot.FormatMinutes(other.EndMinute),
			)).WithDetails(map[string]any{"conflicting_booking_id": other.ID})
		}
		overlappingPending = append(overlappingPending, other)
	}

	if s.cfg.ApprovalPolicy != config.PolicyFirstApprovedWins {
		return nil, nil
	}

	var superseded []*model.Booking
	for _, other := range overlappingPending {
		rejected, err := s.repo.UpdateStatus(ctx, other.ID, model.StatusPending, model.StatusRejected, "superseded by booking "+target.ID, now)
		if err != nil {
			return nil, apperrors.Internal("Failed to reject overlapping booking", err)
		}
		superseded = append(superseded, rejected)
	}
	return superseded, nil
}

// withSlotLock runs fn while holding the slot lock. The lock is released
// before withSlotLock returns so callers can publish outside the critical section.
func (s *bookingService) withSlotLock(ctx context.Context, resource, date string, fn func() error) error {
	key := SlotLockKey(resource, date)

	release, err := s.locker.Lock(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, locker.ErrTimeout):
			return apperrors.Conflict("slot is being booked by another request")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return apperrors.Timeout("Request ended while waiting for the slot")
		default:
			return apperrors.Unavailable("Booking lock")
		}
	}
	defer func() {
		if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "key", key, "error", releaseErr)
		}
	}()

	return fn()
}

// checkSlot parses the proposal's interval and applies the calendar rules.
func (s *bookingService) checkSlot(req *model.ProposeRequest) (slot.Interval, error) {
	interval, err := slot.Parse(req.Time, req.Duration)
	if err != nil {
		return slot.Interval{}, apperrors.InvalidInput(err.Error())
	}

	day, err := slot.ParseDate(req.Date, s.location())
	if err != nil {
		return slot.Interval{}, apperrors.InvalidInput(err.Error())
	}

	if !s.cfg.AllowPastDates {
		now := s.sequencer.Now().In(s.location())
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location())
		if day.Before(today) {
			return slot.Interval{}, apperrors.InvalidInput(fmt.Sprintf("date %s is in the past", req.Date))
		}
	}

	return interval, nil
}

func (s *bookingService) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}

func (s *bookingService) sanitize(req *model.ProposeRequest) {
	req.Requester = sanitizer.NormalizeName(req.Requester)
	req.UserID = sanitizer.TrimAndNormalize(req.UserID)
	req.Resource = sanitizer.NormalizeResource(req.Resource)
	req.Date = sanitizer.TrimAndNormalize(req.Date)
	req.Time = sanitizer.NormalizeClock(req.Time)
	req.Duration = sanitizer.TrimAndNormalize(req.Duration)
}

func (s *bookingService) translateLookupError(id string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func slotUnavailable(req *model.ProposeRequest, existing *model.Booking) error {
	return apperrors.Conflict(fmt.Sprintf(
		"slot unavailable: %s is already booked on %s from %s to %s",
		req.Resource, req.Date, slot.FormatMinutes(existing.StartMinute), slot.FormatMinutes(existing.EndMinute),
	)).WithDetails(map[string]any{
		"conflicting_booking_id": existing.ID,
		"conflicting_status":     existing.Status,
	})
}
