package support

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"premium-bot/internal/database"
	"premium-bot/internal/models"
	"premium-bot/internal/repository"
)

type fakeChat struct {
	mu        sync.Mutex
	nextRelay int
	operator  []string
	user      map[string][]string
	closed    []uint
}

func newFakeChat() *fakeChat {
	return &fakeChat{nextRelay: 1000, user: map[string][]string{}}
}

func (f *fakeChat) RelayToOperator(_ context.Context, _ *models.Conversation, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRelay++
	f.operator = append(f.operator, text)
	return f.nextRelay, nil
}

func (f *fakeChat) DeliverToUser(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user[userID] = append(f.user[userID], text)
	return nil
}

func (f *fakeChat) NotifyClosed(_ context.Context, conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, conv.ID)
	return nil
}

func newTestRelay(t *testing.T) (*Relay, *fakeChat) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	chat := newFakeChat()
	return NewRelay(repository.NewConversationRepository(db), chat, nil), chat
}

func TestOpenReturnsExistingConversation(t *testing.T) {
	relay, _ := newTestRelay(t)
	ctx := context.Background()

	first, created, err := relay.Open(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := relay.Open(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestConcurrentOpenCreatesOne(t *testing.T) {
	relay, _ := newTestRelay(t)
	ctx := context.Background()

	ids := make(chan uint, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, _, err := relay.Open(ctx, "u1")
			if assert.NoError(t, err) {
				ids <- conv.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestMessageRoundTrip(t *testing.T) {
	relay, chat := newTestRelay(t)
	ctx := context.Background()

	_, err := relay.PostUserMessage(ctx, "u1", "hello?")
	require.ErrorIs(t, err, ErrNoActiveConversation)

	conv, _, err := relay.Open(ctx, "u1")
	require.NoError(t, err)
	other, _, err := relay.Open(ctx, "u2")
	require.NoError(t, err)

	msg, err := relay.PostUserMessage(ctx, "u1", "my payment is stuck")
	require.NoError(t, err)
	_, err = relay.PostUserMessage(ctx, "u2", "unrelated")
	require.NoError(t, err)

	routed, err := relay.PostOperatorReply(ctx, msg.RelayMessageID, "looking into it")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, routed.ID)
	assert.Equal(t, []string{"looking into it"}, chat.user["u1"])
	assert.Empty(t, chat.user["u2"])

	_, err = relay.PostOperatorReply(ctx, 1, "to nobody")
	assert.ErrorIs(t, err, ErrNoActiveConversation)

	log, err := relay.Transcript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.True(t, log[0].FromUser)
	assert.False(t, log[1].FromUser)

	_, err = relay.Close(ctx, other.ID)
	require.NoError(t, err)
}

func TestCloseConversation(t *testing.T) {
	relay, chat := newTestRelay(t)
	ctx := context.Background()

	_, err := relay.CloseForUser(ctx, "u1")
	require.ErrorIs(t, err, ErrNoActiveConversation)

	conv, _, err := relay.Open(ctx, "u1")
	require.NoError(t, err)
	msg, err := relay.PostUserMessage(ctx, "u1", "thanks, solved")
	require.NoError(t, err)

	closed, err := relay.CloseForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, closed.Status)
	assert.Equal(t, []uint{conv.ID}, chat.closed)

	_, err = relay.Close(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationClosed)

	_, err = relay.PostOperatorReply(ctx, msg.RelayMessageID, "late reply")
	assert.ErrorIs(t, err, ErrConversationClosed)

	reopened, created, err := relay.Open(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, conv.ID, reopened.ID)
}
