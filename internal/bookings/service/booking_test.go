package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartassist/internal/bookings/repository"
	"smartassist/internal/bookings/validator"
	"smartassist/pkg/clock"
	"smartassist/pkg/config"
	apperrors "smartassist/pkg/errors"
	"smartassist/pkg/locker"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"
	"smartassist/pkg/sealer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LedgerEvent
}

func (p *recordingPublisher) Publish(e model.LedgerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubLocker struct {
	err error
}

func (l stubLocker) Lock(context.Context, string) (locker.ReleaseFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error { return nil }, nil
}

type fixture struct {
	svc       BookingService
	repo      repository.BookingRepository
	publisher *recordingPublisher
	clock     *clock.Fixed
	sealer    *sealer.Sealer
	cfg       *config.Config
}

func newFixture(t *testing.T, mutate ...func(cfg *config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		Log:            logger.Discard(),
		ApprovalPolicy: config.PolicyRecheck,
		Location:       time.UTC,
	}
	for _, m := range mutate {
		m(cfg)
	}

	sl, err := sealer.NewRandom()
	require.NoError(t, err)

	f := &fixture{
		repo:      repository.NewMemoryBookingRepository(),
		publisher: &recordingPublisher{},
		clock:     clock.NewFixed(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)),
		sealer:    sl,
		cfg:       cfg,
	}
	f.svc = NewBookingService(
		f.repo,
		locker.NewMemoryLocker(5*time.Second),
		validator.NewBookingValidator(cfg.Log),
		cfg,
		WithClock(f.clock),
		WithPublisher(f.publisher),
		WithSealer(sl),
	)
	return f
}

func proposal(resource, date, clockTime, duration string) *model.ProposeRequest {
	return &model.ProposeRequest{
		Requester: "Prof. Iyer",
		UserID:    "iyer@campus.edu",
		Resource:  resource,
		Date:      date,
		Time:      clockTime,
		Duration:  duration,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}

// seed stores a booking directly, bypassing the overlap check, to set up
// states the approval policies must cope with.
func (f *fixture) seed(t *testing.T, id, clockTime string, start, end int, seq int64) {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), &model.Booking{
		ID:          id,
		Requester:   "seed",
		UserID:      "seed@campus.edu",
		Resource:    "Auditorium",
		Date:        "2026-03-01",
		Time:        clockTime,
		Duration:    "1 hour",
		Status:      model.StatusPending,
		Sequence:    seq,
		StartMinute: start,
		EndMinute:   end,
	}))
}

// ────────────────────────────────────────────────
// ProposeBooking
// ────────────────────────────────────────────────

func TestProposeBooking_LectureTheatreScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ProposeBooking(ctx, proposal("Lecture Theatre 4", "2026-02-25", "2:00 PM", "2 hours"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 14*60, first.StartMinute)
	assert.Equal(t, 16*60, first.EndMinute)

	_, err = f.svc.ProposeBooking(ctx, proposal("Lecture Theatre 4", "2026-02-25", "3:00 PM", "1 hour"))
	requireCode(t, err, apperrors.CodeConflict)
	assert.Contains(t, err.Error(), "slot unavailable")

	approved, err := f.svc.SetStatus(ctx, first.ID, model.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	third, err := f.svc.ProposeBooking(ctx, proposal("Lecture Theatre 4", "2026-02-25", "4:00 PM", "1 hour"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, third.Status)

	all, err := f.svc.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProposeBooking_IdenticalPendingConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProposeBooking(ctx, proposal("Lab 2", "2026-03-02", "10:00 AM", "1 hour"))
	require.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("Lab 2", "2026-03-02", "10:00 AM", "1 hour"))
	requireCode(t, err, apperrors.CodeConflict)

	pending, err := f.svc.ListBookings(ctx, model.BookingFilter{Status: model.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestProposeBooking_OverlapRules(t *testing.T) {
	tests := []struct {
		name      string
		clockTime string
		duration  string
		conflict  bool
	}{
		{"ends where existing starts", "8:00 AM", "2 hours", false},
		{"starts where existing ends", "12:00 PM", "30 minutes", false},
		{"overlaps start", "9:30 AM", "1 hour", true},
		{"contained", "10:15", "15 minutes", true},
		{"contains", "9:00 AM", "4 hours", true},
		{"24h clock overlapping", "11:59", "1h", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.ProposeBooking(ctx, proposal("Board Room", "2026-03-05", "10:00 AM", "2 hours"))
			require.NoError(t, err)

			_, err = f.svc.ProposeBooking(ctx, proposal("Board Room", "2026-03-05", tt.clockTime, tt.duration))
			if tt.conflict {
				requireCode(t, err, apperrors.CodeConflict)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProposeBooking_ScopedByResourceAndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProposeBooking(ctx, proposal("Lab 1", "2026-03-02", "10:00 AM", "1 hour"))
	require.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("Lab 2", "2026-03-02", "10:00 AM", "1 hour"))
	assert.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("Lab 1", "2026-03-03", "10:00 AM", "1 hour"))
	assert.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("  Lab   1 ", "2026-03-02", "10:30 am", "1 hour"))
	requireCode(t, err, apperrors.CodeConflict)
}

func TestProposeBooking_RejectedBookingsFreeTheSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ProposeBooking(ctx, proposal("Studio", "2026-03-04", "1:00 PM", "1 hour"))
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, first.ID, model.StatusRejected, "clashes with exam")
	require.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("Studio", "2026-03-04", "1:00 PM", "1 hour"))
	assert.NoError(t, err)
}

func TestProposeBooking_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *model.ProposeRequest
		code string
	}{
		{"nil request", nil, apperrors.CodeInvalidInput},
		{"missing requester", &model.ProposeRequest{UserID: "u", Resource: "R", Date: "2026-03-01", Time: "9 AM", Duration: "1 hour"}, apperrors.CodeValidation},
		{"blank resource", proposal("   ", "2026-03-01", "9 AM", "1 hour"), apperrors.CodeValidation},
		{"bad date", proposal("R", "March 1st", "9 AM", "1 hour"), apperrors.CodeValidation},
		{"bad time", proposal("R", "2026-03-01", "noon-ish", "1 hour"), apperrors.CodeValidation},
		{"zero duration", proposal("R", "2026-03-01", "9 AM", "0 minutes"), apperrors.CodeValidation},
		{"past midnight", proposal("R", "2026-03-01", "11:00 PM", "2 hours"), apperrors.CodeInvalidInput},
		{"longer than a day", proposal("R", "2026-03-01", "9 AM", "25 hours"), apperrors.CodeValidation},
		{"past date", proposal("R", "2026-01-31", "9 AM", "1 hour"), apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.ProposeBooking(context.Background(), tt.req)
			requireCode(t, err, tt.code)

			all, listErr := f.svc.ListBookings(context.Background(), model.BookingFilter{})
			require.NoError(t, listErr)
			assert.Empty(t, all)
		})
	}
}

func TestProposeBooking_OversizedDurationCannotBypassOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProposeBooking(ctx, proposal("Lab 3", "2026-03-01", "11:59 PM", "9223372036854774784 minutes"))
	require.Error(t, err)
	assert.False(t, apperrors.HasCode(err, apperrors.CodeInternal))

	_, err = f.svc.ProposeBooking(ctx, proposal("Lab 3", "2026-03-01", "11:59 PM", "1 minute"))
	require.NoError(t, err)

	_, err = f.svc.ProposeBooking(ctx, proposal("Lab 3", "2026-03-01", "11:59 PM", "1 minute"))
	requireCode(t, err, apperrors.CodeConflict)

	all, err := f.svc.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	for _, b := range all {
		assert.Less(t, b.StartMinute, b.EndMinute)
	}
}

func TestProposeBooking_TodayAndPastDatesPolicy(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ProposeBooking(context.Background(), proposal("R", "2026-02-01", "7:00 AM", "1 hour"))
	assert.NoError(t, err, "earlier today is still today")

	f = newFixture(t, func(cfg *config.Config) { cfg.AllowPastDates = true })
	_, err = f.svc.ProposeBooking(context.Background(), proposal("R", "2025-12-01", "9 AM", "1 hour"))
	assert.NoError(t, err)
}

func TestProposeBooking_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.ProposeBooking(ctx, proposal("Lecture Theatre 4", "2026-02-25", "2:00 PM", "2 hours"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	all, err := f.svc.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProposeBooking_LockTimeoutIsConflict(t *testing.T) {
	cfg := &config.Config{Log: logger.Discard(), ApprovalPolicy: config.PolicyRecheck, AllowPastDates: true}
	svc := NewBookingService(
		repository.NewMemoryBookingRepository(),
		stubLocker{err: locker.ErrTimeout},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	_, err := svc.ProposeBooking(context.Background(), proposal("R", "2026-03-01", "9 AM", "1 hour"))
	requireCode(t, err, apperrors.CodeConflict)
	assert.Contains(t, err.Error(), "being booked by another request")

	svc = NewBookingService(
		repository.NewMemoryBookingRepository(),
		stubLocker{err: context.DeadlineExceeded},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	_, err = svc.ProposeBooking(context.Background(), proposal("R", "2026-03-01", "9 AM", "1 hour"))
	requireCode(t, err, apperrors.CodeTimeout)
}

func TestProposeBooking_PublishesEvent(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.ProposeBooking(context.Background(), proposal("R", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)

	require.Equal(t, []string{model.EventBookingProposed}, f.publisher.types())
	assert.Equal(t, b.ID, f.publisher.events[0].Booking.ID)
}

// ────────────────────────────────────────────────
// ListBookings / GetBooking
// ────────────────────────────────────────────────

func TestListBookings_OrderAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, clockTime := range []string{"8:00 AM", "9:00 AM", "10:00 AM", "11:00 AM"} {
		b, err := f.svc.ProposeBooking(ctx, proposal("Hall", "2026-03-01", clockTime, "1 hour"))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	_, err := f.svc.SetStatus(ctx, ids[0], model.StatusApproved, "")
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, ids[2], model.StatusRejected, "")
	require.NoError(t, err)

	all, err := f.svc.ListBookings(ctx, model.BookingFilter{Status: model.StatusAll})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{ids[3], ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	history, err := f.svc.ListBookings(ctx, model.BookingFilter{Status: model.StatusHistory})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[0], history[1].ID)

	approved, err := f.svc.ListBookings(ctx, model.BookingFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	rejected, err := f.svc.ListBookings(ctx, model.BookingFilter{Status: model.StatusRejected})
	require.NoError(t, err)
	assert.Equal(t, len(approved)+len(rejected), len(history))

	mine, err := f.svc.ListBookings(ctx, model.BookingFilter{UserID: " iyer@campus.edu "})
	require.NoError(t, err)
	assert.Len(t, mine, 4)

	none, err := f.svc.ListBookings(ctx, model.BookingFilter{UserID: "someone@else"})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListBookings(ctx, model.BookingFilter{Status: "cancelled"})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestListBookings_SameTickKeepsCreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ProposeBooking(ctx, proposal("A", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)
	second, err := f.svc.ProposeBooking(ctx, proposal("B", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	all, err := f.svc.ListBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.ProposeBooking(ctx, proposal("R", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)

	got, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.svc.GetBooking(ctx, "does-not-exist")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.GetBooking(ctx, "")
	requireCode(t, err, apperrors.CodeInvalidInput)
}

// ────────────────────────────────────────────────
// SetStatus
// ────────────────────────────────────────────────

func TestSetStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.ProposeBooking(ctx, proposal("R", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, b.ID, model.StatusPending, "")
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.SetStatus(ctx, "missing", model.StatusApproved, "")
	requireCode(t, err, apperrors.CodeNotFound)

	f.clock.Advance(time.Hour)
	rejected, err := f.svc.SetStatus(ctx, b.ID, model.StatusRejected, "  room closed  ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "room closed", rejected.Remarks)
	assert.True(t, rejected.UpdatedAt.After(rejected.CreatedAt))

	for _, target := range []string{model.StatusApproved, model.StatusRejected} {
		_, err = f.svc.SetStatus(ctx, b.ID, target, "")
		requireCode(t, err, apperrors.CodeInvalidTransition)
	}

	stored, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Equal(t, "room closed", stored.Remarks)

	assert.Equal(t, []string{model.EventBookingProposed, model.EventBookingRejected}, f.publisher.types())
}

func TestSetStatus_RecheckPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "a", "9:00 AM", 540, 600, 1)
	f.seed(t, "b", "9:30 AM", 570, 630, 2)

	_, err := f.svc.SetStatus(ctx, "a", model.StatusApproved, "")
	require.NoError(t, err)

	_, err = f.svc.SetStatus(ctx, "b", model.StatusApproved, "")
	requireCode(t, err, apperrors.CodeConflict)

	b, err := f.svc.GetBooking(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status, "a failed approval leaves the booking untouched")

	_, err = f.svc.SetStatus(ctx, "b", model.StatusRejected, "")
	assert.NoError(t, err, "rejecting is always possible")
}

func TestSetStatus_FirstApprovedWinsPolicy(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.ApprovalPolicy = config.PolicyFirstApprovedWins })
	ctx := context.Background()

	f.seed(t, "a", "9:00 AM", 540, 600, 1)
	f.seed(t, "b", "9:30 AM", 570, 630, 2)
	f.seed(t, "c", "10:00 AM", 600, 660, 3)

	approved, err := f.svc.SetStatus(ctx, "a", model.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	b, err := f.svc.GetBooking(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, b.Status)
	assert.Equal(t, "superseded by booking a", b.Remarks)

	c, err := f.svc.GetBooking(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, c.Status, "adjacent bookings do not overlap")

	assert.Equal(t, []string{model.EventBookingRejected, model.EventBookingApproved}, f.publisher.types())
}

// ────────────────────────────────────────────────
// ApplyAction
// ────────────────────────────────────────────────

func TestApplyAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.ProposeBooking(ctx, proposal("R", "2026-03-01", "9 AM", "1 hour"))
	require.NoError(t, err)

	rejectToken, err := f.sealer.Seal(b.ID, model.StatusRejected)
	require.NoError(t, err)
	approveToken, err := f.sealer.Seal(b.ID, model.StatusApproved)
	require.NoError(t, err)

	_, err = f.svc.ApplyAction(ctx, b.ID, model.StatusApproved, rejectToken)
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.ApplyAction(ctx, b.ID, model.StatusApproved, "")
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.ApplyAction(ctx, "other-id", model.StatusApproved, approveToken)
	requireCode(t, err, apperrors.CodeForbidden)

	updated, err := f.svc.ApplyAction(ctx, b.ID, model.StatusApproved, approveToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)

	_, err = f.svc.ApplyAction(ctx, b.ID, model.StatusApproved, approveToken)
	requireCode(t, err, apperrors.CodeInvalidTransition)
}

func TestApplyAction_Disabled(t *testing.T) {
	cfg := &config.Config{Log: logger.Discard(), ApprovalPolicy: config.PolicyRecheck}
	svc := NewBookingService(
		repository.NewMemoryBookingRepository(),
		locker.NewMemoryLocker(time.Second),
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	_, err := svc.ApplyAction(context.Background(), "id", model.StatusApproved, "token")
	requireCode(t, err, apperrors.CodeForbidden)
	assert.False(t, errors.Is(err, context.Canceled))
}
