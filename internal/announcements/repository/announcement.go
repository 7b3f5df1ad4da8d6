package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	announcementserrors "smartassist/internal/announcements/errors"
	"smartassist/pkg/config"
	mongotx "smartassist/pkg/db/mongo"
	httputil "smartassist/pkg/http"
	"smartassist/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Announcements"
)

// AnnouncementRepository is append-only: there is no update or delete.
type AnnouncementRepository interface {
	Create(ctx context.Context, announcement *model.Announcement) error
	// FindAll returns announcements most recent first. A zero limit means no limit.
	FindAll(ctx context.Context, limit, offset int) ([]*model.Announcement, error)
}

type mongoAnnouncementRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAnnouncementRepository(cfg *config.Config) AnnouncementRepository {
	return &mongoAnnouncementRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoAnnouncementRepository) Create(ctx context.Context, announcement *model.Announcement) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, announcement); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", announcementserrors.ErrDuplicateID, announcement.ID)
		}
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *mongoAnnouncementRepository) FindAll(ctx context.Context, limit, offset int) ([]*model.Announcement, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find announcements: %w", err)
	}
	defer cursor.Close(ctx)

	announcements := []*model.Announcement{}
	if err := cursor.All(ctx, &announcements); err != nil {
		return nil, fmt.Errorf("failed to decode announcements: %w", err)
	}
	return announcements, nil
}

type memoryAnnouncementRepository struct {
	mu            sync.RWMutex
	announcements []*model.Announcement
	ids           map[string]struct{}
}

func NewMemoryAnnouncementRepository() AnnouncementRepository {
	return &memoryAnnouncementRepository{
		ids: make(map[string]struct{}),
	}
}

func (r *memoryAnnouncementRepository) Create(ctx context.Context, announcement *model.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[announcement.ID]; exists {
		return fmt.Errorf("%w: %s", announcementserrors.ErrDuplicateID, announcement.ID)
	}
	r.ids[announcement.ID] = struct{}{}
	r.announcements = append(r.announcements, announcement.Clone())
	return nil
}

func (r *memoryAnnouncementRepository) FindAll(ctx context.Context, limit, offset int) ([]*model.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*model.Announcement, 0, len(r.announcements))
	for _, a := range r.announcements {
		out = append(out, a.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence > out[j].Sequence
	})
	return httputil.Page(out, limit, offset), nil
}
