package repository

import (
	"context"
	"testing"

	announcementserrors "smartassist/internal/announcements/errors"
	"smartassist/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAnnouncementRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAnnouncementRepository()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &model.Announcement{ID: id, Content: "notice " + id, Sequence: int64(i + 1)}))
	}

	err := repo.Create(ctx, &model.Announcement{ID: "a", Content: "again"})
	assert.ErrorIs(t, err, announcementserrors.ErrDuplicateID)

	all, err := repo.FindAll(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	page, err := repo.FindAll(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	all[0].Content = "edited"
	again, err := repo.FindAll(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "notice c", again[0].Content)
}
