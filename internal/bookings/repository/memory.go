package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bookingserrors "smartassist/internal/bookings/errors"
	mongotx "smartassist/pkg/db/mongo"
	httputil "smartassist/pkg/http"
	"smartassist/pkg/model"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

// NewMemoryBookingRepository returns a process-local store. Callers always
// receive copies, so records handed out can be modified freely.
func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

type journalKey struct{}

// journal records the previous state of every record written inside
// ExecuteTransaction so a failing function can be undone.
type journal struct {
	mu      sync.Mutex
	entries []journalEntry
}

type journalEntry struct {
	id       string
	previous *model.Booking
}

func (j *journal) record(id string, previous *model.Booking) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{id: id, previous: previous})
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateID, booking.ID)
	}
	r.bookings[booking.ID] = booking.Clone()

	if j := journalFrom(ctx); j != nil {
		j.record(booking.ID, nil)
	}
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return booking.Clone(), nil
}

func (r *memoryBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]*model.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		if matchesFilter(b, filter) {
			matched = append(matched, b.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Sequence > matched[j].Sequence
	})

	return httputil.Page(matched, filter.Limit, filter.Offset), nil
}

func (r *memoryBookingRepository) FindActiveBySlot(ctx context.Context, resource, date string) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	active := []*model.Booking{}
	for _, b := range r.bookings {
		if b.Resource == resource && b.Date == date && b.Active() {
			active = append(active, b.Clone())
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartMinute < active[j].StartMinute
	})
	return active, nil
}

func (r *memoryBookingRepository) UpdateStatus(ctx context.Context, id, from, to, remarks string, updatedAt time.Time) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if current.Status != from {
		return nil, bookingserrors.ErrStatusChanged
	}

	updated := current.Clone()
	updated.Status = to
	updated.UpdatedAt = updatedAt
	if remarks != "" {
		updated.Remarks = remarks
	}
	r.bookings[id] = updated

	if j := journalFrom(ctx); j != nil {
		j.record(id, current)
	}
	return updated.Clone(), nil
}

// ExecuteTransaction runs fn and reverts its writes when it fails. Isolation
// from concurrent writers is left to the caller's lock.
func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	j := &journal{}
	err := fn(context.WithValue(ctx, journalKey{}, j))
	if err == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.entries) - 1; i >= 0; i-- {
		entry := j.entries[i]
		if entry.previous == nil {
			delete(r.bookings, entry.id)
			continue
		}
		r.bookings[entry.id] = entry.previous
	}
	return err
}

func matchesFilter(b *model.Booking, filter model.BookingFilter) bool {
	if filter.UserID != "" && b.UserID != filter.UserID {
		return false
	}

	switch filter.Status {
	case "", model.StatusAll:
		return true
	case model.StatusHistory:
		return b.Status == model.StatusApproved || b.Status == model.StatusRejected
	default:
		return b.Status == filter.Status
	}
}
