package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sharedish/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite cannot take concurrent writers
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Chat{}, &models.ChatParticipant{}, &models.Message{}))
	return db
}

func TestGetOrCreateIdempotent(t *testing.T) {
	store := NewGormStore(newTestDB(t))

	first, err := store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := store.GetOrCreate("post-1", "bob")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	parts, err := store.Participants("post-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, parts)

	// joining again does not duplicate the participant
	_, err = store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)
	parts, err = store.Participants("post-1")
	require.NoError(t, err)
	require.Len(t, parts, 2)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		user := fmt.Sprintf("user-%d", i)
		go func() {
			defer wg.Done()
			_, err := store.GetOrCreate("post-race", user)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Where("post_key = ?", "post-race").Count(&count).Error)
	require.EqualValues(t, 1, count)

	parts, err := store.Participants("post-race")
	require.NoError(t, err)
	require.Len(t, parts, 16)
}

func TestGetOrCreateRejectsEmptyKey(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	_, err := store.GetOrCreate("  ", "alice")
	require.ErrorIs(t, err, ErrInvalidPostKey)
}

func TestAppendValidation(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)
	_, err := store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)

	_, err = store.Append("post-1", "alice", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = store.Append("", "alice", "hi")
	require.ErrorIs(t, err, ErrInvalidPostKey)

	_, err = store.Append("post-1", "", "hi")
	require.ErrorIs(t, err, ErrInvalidSender)

	_, err = store.Append("no-such-post", "alice", "hi")
	require.ErrorIs(t, err, ErrNotFound)

	// none of the rejected appends left a row behind
	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestAppendAssignsMonotonicTimestamps(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	_, err := store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)

	var prev time.Time
	for i := 0; i < 20; i++ {
		msg, err := store.Append("post-1", "alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		require.False(t, msg.CreatedAt.Before(prev), "timestamps must never decrease")
		prev = msg.CreatedAt
	}
}

func TestMessagesPreserveAppendOrder(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	_, err := store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)

	want := []string{"first", "second", "third"}
	for _, text := range want {
		_, err := store.Append("post-1", "alice", text)
		require.NoError(t, err)
	}

	msgs, err := store.Messages("post-1")
	require.NoError(t, err)
	require.Len(t, msgs, len(want))
	for i, m := range msgs {
		require.Equal(t, want[i], m.Text)
		require.Equal(t, "alice", m.Sender)
	}
}

func TestMessagesSurviveStoreRestart(t *testing.T) {
	db := newTestDB(t)
	store := NewGormStore(db)
	_, err := store.GetOrCreate("post-1", "alice")
	require.NoError(t, err)
	_, err = store.Append("post-1", "alice", "still here")
	require.NoError(t, err)

	// a fresh store over the same database sees everything
	reopened := NewGormStore(db)
	msgs, err := reopened.Messages("post-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "still here", msgs[0].Text)
}

func TestMessagesUnknownConversation(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	_, err := store.Messages("never-created")
	require.True(t, errors.Is(err, ErrNotFound))
}
