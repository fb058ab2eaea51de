package client

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"confsync/internal/app/client/config"
	"confsync/internal/backend"
	"confsync/internal/backend/memory"
	"confsync/internal/domain/userdata"
)

// recordingBackend оборачивает in-memory клиент и запоминает все
// открытые соединения, чтобы тесты видели их состояние.
type recordingBackend struct {
	*memory.Client

	mu    sync.Mutex
	conns []*memory.Conn
}

func (b *recordingBackend) Connect(ctx context.Context, shardURL string) (backend.Conn, error) {
	conn, err := b.Client.Connect(ctx, shardURL)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn.(*memory.Conn))
	b.mu.Unlock()
	return conn, nil
}

func (b *recordingBackend) conn(i int) *memory.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[i]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:       "local",
		LogLevel:  "debug",
		ConfigDir: dir,
		TokenPath: filepath.Join(dir, "token"),
		QueuePath: filepath.Join(dir, "queue.db"),
		ShardURLs: []string{
			"https://shard-0.example.com",
			"https://shard-1.example.com",
			"https://shard-2.example.com",
		},
	}
}

func newTestApp(t *testing.T, offsetMs int64, opts ...Option) (*App, *recordingBackend) {
	t.Helper()

	be := &recordingBackend{Client: memory.NewClient(memory.WithOffset(offsetMs))}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := New(testConfig(t), log, be, opts...)
	require.NoError(t, err, "Ошибка создания приложения")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	})

	return app, be
}

// shard возвращает хранилище шарда, на который попадает пользователь.
func shard(app *App, be *recordingBackend, userID string) *memory.Store {
	return be.Shard(app.SelectShard(userID))
}

func TestApp_AuthLifecycle(t *testing.T) {
	app, be := newTestApp(t, 0)
	ctx := context.Background()

	assert.False(t, app.IsAuthed())

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	assert.True(t, app.IsAuthed())
	assert.Equal(t, "user-1", app.UserID())

	// Отметка активности пишется сразу при входе
	var activity int64
	require.NoError(t, shard(app, be, "user-1").Get("users/user-1/last_activity_timestamp", &activity))
	assert.Greater(t, activity, int64(0))

	require.NoError(t, app.UnAuth(ctx))
	assert.False(t, app.IsAuthed())
	assert.Equal(t, "", app.UserID())

	t.Run("UnAuthWithoutAuthIsNoop", func(t *testing.T) {
		require.NoError(t, app.UnAuth(ctx))
	})
}

func TestApp_AuthFailure(t *testing.T) {
	app, be := newTestApp(t, 0)
	be.AcceptToken = func(userID, accessToken string) bool { return accessToken == "good" }

	err := app.Auth(context.Background(), "user-1", "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, userdata.ErrAuthFailed)
	assert.False(t, app.IsAuthed())
}

func TestApp_NoShardsConfigured(t *testing.T) {
	be := &recordingBackend{Client: memory.NewClient()}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig(t)
	cfg.ShardURLs = nil

	app, err := New(cfg, log, be)
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	err = app.Auth(context.Background(), "user-1", "token")
	assert.ErrorIs(t, err, userdata.ErrNoShards)
}

func TestApp_ReauthReplacesConnection(t *testing.T) {
	app, be := newTestApp(t, 0)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	require.NoError(t, app.Auth(ctx, "user-1", "token"))

	// Старое соединение закрыто, новое активно
	assert.False(t, be.conn(0).IsAuthed(), "Первое соединение должно закрыться")
	assert.True(t, be.conn(1).IsAuthed())
	assert.True(t, app.IsAuthed())
}

func TestApp_MutationsRequireAuth(t *testing.T) {
	app, _ := newTestApp(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, app.ToggleSession(ctx, "s1", true, 0), userdata.ErrNotAuthenticated)
	assert.ErrorIs(t, app.MarkSessionRated(ctx, "s1", 0), userdata.ErrNotAuthenticated)
	assert.ErrorIs(t, app.MarkVideoAsViewed(ctx, "v1", 0), userdata.ErrNotAuthenticated)
	assert.ErrorIs(t, app.AddNotificationID(ctx, "d1"), userdata.ErrNotAuthenticated)

	noop := func(string, json.RawMessage) {}
	assert.ErrorIs(t, app.SubscribeToSessionUpdates(noop), userdata.ErrNotAuthenticated)
	assert.ErrorIs(t, app.SubscribeToFeedbackUpdates(noop), userdata.ErrNotAuthenticated)
}

func TestApp_ToggleSessionTimestamps(t *testing.T) {
	app, be := newTestApp(t, 50)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	app.SetClockOffset(50)

	store := shard(app, be, "user-1")

	// Существующая закладка не должна пострадать от merge-записи
	require.NoError(t, store.Update("users/user-1/my_sessions", map[string]any{
		"other": map[string]any{"timestamp": 1, "bookmarked": true},
	}))

	require.NoError(t, app.ToggleSession(ctx, "abc", true, 1000))

	var sessions map[string]userdata.BookmarkedSession
	require.NoError(t, store.Get("users/user-1/my_sessions", &sessions))

	assert.Equal(t, int64(1050), sessions["abc"].Timestamp, "Локальное время пересчитывается через смещение часов")
	assert.True(t, sessions["abc"].Bookmarked)
	assert.Contains(t, sessions, "other", "Соседние записи не затрагиваются")

	t.Run("ZeroTimestampMeansServerTime", func(t *testing.T) {
		require.NoError(t, app.ToggleSession(ctx, "def", false, 0))

		var sessions map[string]userdata.BookmarkedSession
		require.NoError(t, store.Get("users/user-1/my_sessions", &sessions))
		assert.Greater(t, sessions["def"].Timestamp, int64(0), "Время должен назначить бэкенд")
		assert.False(t, sessions["def"].Bookmarked)
	})
}

func TestApp_MarkSessionRated(t *testing.T) {
	app, be := newTestApp(t, 100)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	app.SetClockOffset(100)

	require.NoError(t, app.MarkSessionRated(ctx, "talk-1", 500))

	var feedback map[string]userdata.FeedbackEntry
	require.NoError(t, shard(app, be, "user-1").Get("users/user-1/feedback", &feedback))
	assert.Equal(t, int64(600), feedback["talk-1"].Timestamp)
}

func TestApp_MarkVideoAsViewed(t *testing.T) {
	app, be := newTestApp(t, 100)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	app.SetClockOffset(100)

	require.NoError(t, app.MarkVideoAsViewed(ctx, "vid-1", 2000))

	var videos map[string]int64
	require.NoError(t, shard(app, be, "user-1").Get("users/user-1/viewed_videos", &videos))
	assert.Equal(t, int64(2100), videos["vid-1"], "Значением ключа служит время просмотра")
}

func TestApp_AddNotificationID(t *testing.T) {
	app, be := newTestApp(t, 0)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))

	require.NoError(t, app.AddNotificationID(ctx, "device-a"))
	require.NoError(t, app.AddNotificationID(ctx, "device-b"))
	require.NoError(t, app.AddNotificationID(ctx, "device-a")) // повтор безвреден

	var ids map[string]bool
	require.NoError(t, shard(app, be, "user-1").Get("users/user-1/gcm_ids", &ids))
	assert.Len(t, ids, 2)
	assert.True(t, ids["device-a"])
	assert.True(t, ids["device-b"])
}

func TestApp_ClockOffsetRefresh(t *testing.T) {
	app, _ := newTestApp(t, 250)

	require.NoError(t, app.Auth(context.Background(), "user-1", "token"))

	// Смещение читается асинхронно после аутентификации
	require.Eventually(t, func() bool {
		return app.ClockOffset() == 250
	}, 2*time.Second, 10*time.Millisecond, "Смещение должно подтянуться с бэкенда")
}

func TestApp_Subscriptions(t *testing.T) {
	app, be := newTestApp(t, 0)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))
	store := shard(app, be, "user-1")

	// Запись, существующая до подписки, приходит первым событием
	require.NoError(t, store.Update("users/user-1/my_sessions", map[string]any{
		"pre": map[string]any{"timestamp": 1, "bookmarked": true},
	}))

	type update struct {
		key   string
		value json.RawMessage
	}
	got := make(chan update, 16)
	require.NoError(t, app.SubscribeToSessionUpdates(func(key string, value json.RawMessage) {
		got <- update{key: key, value: value}
	}))

	first := recvUpdate(t, got)
	assert.Equal(t, "pre", first.key)
	assert.NotNil(t, first.value)

	// Изменение с "другого устройства" доставляется подписчику
	require.NoError(t, app.ToggleSession(ctx, "live", true, 100))
	ev := recvUpdate(t, got)
	assert.Equal(t, "live", ev.key)

	t.Run("TwoSubscribersBothReceive", func(t *testing.T) {
		second := make(chan update, 16)
		require.NoError(t, app.SubscribeToSessionUpdates(func(key string, value json.RawMessage) {
			second <- update{key: key, value: value}
		}))
		// Снимок для нового подписчика: pre и live
		recvUpdate(t, second)
		recvUpdate(t, second)

		require.NoError(t, store.Update("users/user-1/my_sessions", map[string]any{"pre": nil}))

		removedA := recvUpdate(t, got)
		removedB := recvUpdate(t, second)
		assert.Equal(t, "pre", removedA.key)
		assert.Nil(t, removedA.value, "Удаление приходит без значения")
		assert.Equal(t, "pre", removedB.key)
		assert.Nil(t, removedB.value)
	})

	t.Run("UnAuthDetaches", func(t *testing.T) {
		require.NoError(t, app.UnAuth(ctx))
		require.Eventually(t, func() bool {
			return store.WatcherCount("users/user-1/my_sessions") == 0
		}, 2*time.Second, 10*time.Millisecond, "Подписки должны сняться при выходе")
	})
}

func TestApp_FeedbackSubscription(t *testing.T) {
	app, _ := newTestApp(t, 0)
	ctx := context.Background()

	require.NoError(t, app.Auth(ctx, "user-1", "token"))

	got := make(chan string, 16)
	require.NoError(t, app.SubscribeToFeedbackUpdates(func(key string, _ json.RawMessage) {
		got <- key
	}))

	require.NoError(t, app.MarkSessionRated(ctx, "talk-9", 0))

	select {
	case key := <-got:
		assert.Equal(t, "talk-9", key)
	case <-time.After(time.Second):
		t.Fatal("Не дождались события отзыва")
	}
}

func TestApp_PresenceToggling(t *testing.T) {
	sig := make(ChanVisibility, 1)
	app, be := newTestApp(t, 0, WithVisibilitySignal(sig))

	require.NoError(t, app.Auth(context.Background(), "user-1", "token"))
	conn := be.conn(0)
	require.True(t, conn.IsOnline())

	sig <- false
	require.Eventually(t, func() bool { return !conn.IsOnline() },
		2*time.Second, 10*time.Millisecond, "Скрытие страницы должно уводить соединение в офлайн")

	sig <- true
	require.Eventually(t, func() bool { return conn.IsOnline() },
		2*time.Second, 10*time.Millisecond, "Возврат видимости должен возвращать соединение в онлайн")
}

func TestApp_SaveLoadCredentials(t *testing.T) {
	app, _ := newTestApp(t, 0)

	creds, err := app.LoadCredentials()
	require.NoError(t, err)
	assert.Nil(t, creds, "До сохранения учетных данных нет")

	require.NoError(t, app.SaveCredentials("user-1", "token-1"))

	creds, err = app.LoadCredentials()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "user-1", creds.UserID)
	assert.Equal(t, "token-1", creds.AccessToken)

	require.NoError(t, app.ClearCredentials())
	creds, err = app.LoadCredentials()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func recvUpdate[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("Не дождались события подписки")
	}
	var zero T
	return zero
}
