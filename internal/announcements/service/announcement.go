package service

import (
	"context"
	"errors"

	"smartassist/internal/announcements/repository"
	"smartassist/internal/announcements/validator"
	"smartassist/internal/events"
	"smartassist/pkg/clock"
	"smartassist/pkg/config"
	apperrors "smartassist/pkg/errors"
	"smartassist/pkg/locker"
	"smartassist/pkg/model"
	"smartassist/pkg/sanitizer"

	"github.com/google/uuid"
)

// LockKey serializes posts so timestamps and sequences follow commit order.
const LockKey = "announcements"

type AnnouncementService interface {
	PostAnnouncement(ctx context.Context, content, postedBy string) (*model.Announcement, error)
	ListAnnouncements(ctx context.Context, limit, offset int) ([]*model.Announcement, error)
}

type announcementService struct {
	repo      repository.AnnouncementRepository
	locker    locker.Locker
	validator *validator.AnnouncementValidator
	publisher events.Publisher
	sequencer *clock.Sequencer
	cfg       *config.Config
}

type Option func(*announcementService)

func WithClock(c clock.Clock) Option {
	return func(s *announcementService) {
		s.sequencer = clock.NewSequencer(c)
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *announcementService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewAnnouncementService(
	repo repository.AnnouncementRepository,
	lk locker.Locker,
	validator *validator.AnnouncementValidator,
	cfg *config.Config,
	opts ...Option,
) AnnouncementService {
	s := &announcementService{
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

func (s *announcementService) PostAnnouncement(ctx context.Context, content, postedBy string) (*model.Announcement, error) {
	req := &model.AnnouncementCreate{
		Content:  sanitizer.NormalizeText(content),
		PostedBy: sanitizer.NormalizeName(postedBy),
	}
	if req.Content == "" {
		return nil, apperrors.InvalidInput("Announcement content cannot be empty")
	}
	if req.PostedBy == "" {
		req.PostedBy = model.DefaultPostedBy
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.Validation("Invalid announcement input", map[string]any{"errors": err})
	}

	release, err := s.locker.Lock(ctx, LockKey)
	if err != nil {
		if errors.Is(err, locker.ErrTimeout) {
			return nil, apperrors.Conflict("another announcement is being posted, try again")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("Request ended while waiting to post")
		}
		return nil, apperrors.Unavailable("Announcement lock")
	}

	now, seq := s.sequencer.Next()
	announcement := &model.Announcement{
		ID:        uuid.NewString(),
		Content:   req.Content,
		PostedBy:  req.PostedBy,
		CreatedAt: now,
		Sequence:  seq,
	}
	err = s.repo.Create(ctx, announcement)

	if releaseErr := release(context.WithoutCancel(ctx)); releaseErr != nil {
		s.cfg.Log.Warn("Failed to release announcements lock", "error", releaseErr)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to post announcement", "error", err)
		return nil, apperrors.Internal("Failed to post announcement", err)
	}

	s.cfg.Log.Info("Announcement posted", "id", announcement.ID, "posted_by", announcement.PostedBy)
	s.publisher.Publish(events.NewAnnouncementEvent(announcement, announcement.CreatedAt))

	return announcement.Clone(), nil
}

func (s *announcementService) ListAnnouncements(ctx context.Context, limit, offset int) ([]*model.Announcement, error) {
	if limit < 0 || offset < 0 {
		return nil, apperrors.InvalidInput("limit and offset cannot be negative")
	}

	announcements, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list announcements", "error", err)
		return nil, apperrors.Internal("Failed to retrieve announcements", err)
	}
	return announcements, nil
}
