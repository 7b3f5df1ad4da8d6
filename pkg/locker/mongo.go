package locker

import (
	"context"
	"fmt"
	"smartassist/pkg/model"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LocksCollection = "Locks"

// MongoLocker stores one advisory document per held key. The unique _id makes
// acquisition atomic; expires_at lets a crashed holder's lock be taken over and
// backs the TTL index created by the migrations.
type MongoLocker struct {
	collection *mongo.Collection
	ttl        time.Duration
	wait       time.Duration
}

func NewMongoLocker(db *mongo.Database, ttl, wait time.Duration) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(LocksCollection),
		ttl:        ttl,
		wait:       wait,
	}
}

func (l *MongoLocker) Lock(ctx context.Context, key string) (ReleaseFunc, error) {
	token := uuid.NewString()

	err := poll(ctx, l.wait, func(ctx context.Context) (bool, error) {
		return l.tryAcquire(ctx, key, token)
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			if _, delErr := l.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token}); delErr != nil {
				err = fmt.Errorf("failed to release lock %s: %w", key, delErr)
			}
		})
		return err
	}, nil
}

func (l *MongoLocker) tryAcquire(ctx context.Context, key, token string) (bool, error) {
	now := time.Now().UTC()
	lock := &model.LockDocument{
		ID:        key,
		Token:     token,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}

	_, err := l.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	// The TTL monitor only runs once a minute; clear an expired holder ourselves.
	result, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
	if err != nil {
		return false, fmt.Errorf("failed to clear expired lock %s: %w", key, err)
	}
	if result.DeletedCount > 0 {
		return l.tryAcquire(ctx, key, token)
	}
	return false, nil
}
