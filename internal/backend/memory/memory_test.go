package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsync/internal/backend"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()

	err := s.Set("users/u1/viewed_videos", map[string]any{"vid1": 100})
	require.NoError(t, err, "Ошибка записи значения")

	var got map[string]any
	err = s.Get("users/u1/viewed_videos", &got)
	require.NoError(t, err, "Ошибка чтения значения")
	assert.Equal(t, float64(100), got["vid1"])

	t.Run("MissingPathIsNil", func(t *testing.T) {
		var got any
		err := s.Get("users/nobody/feedback", &got)
		require.NoError(t, err)
		assert.Nil(t, got, "Отсутствующий путь должен читаться как nil")
	})

	t.Run("ServerTimeOffset", func(t *testing.T) {
		s := NewStore(WithOffset(75))
		var offset float64
		err := s.Get(".info/serverTimeOffset", &offset)
		require.NoError(t, err)
		assert.Equal(t, float64(75), offset)
	})
}

func TestStore_UpdateMerge(t *testing.T) {
	s := NewStore()

	err := s.Update("users/u1/my_sessions", map[string]any{
		"s1": map[string]any{"timestamp": 100, "bookmarked": true},
	})
	require.NoError(t, err)

	// Merge-запись второй сессии не должна трогать первую
	err = s.Update("users/u1/my_sessions", map[string]any{
		"s2": map[string]any{"timestamp": 200, "bookmarked": false},
	})
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, s.Get("users/u1/my_sessions", &got))
	assert.Len(t, got, 2, "Обе сессии должны сохраниться")
	assert.Equal(t, true, got["s1"]["bookmarked"])
	assert.Equal(t, false, got["s2"]["bookmarked"])

	t.Run("NilDeletesKey", func(t *testing.T) {
		err := s.Update("users/u1/my_sessions", map[string]any{"s1": nil})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, s.Get("users/u1/my_sessions", &got))
		assert.NotContains(t, got, "s1")
		assert.Contains(t, got, "s2")
	})
}

func TestStore_ServerTimestamp(t *testing.T) {
	fixed := time.UnixMilli(1_000_000)
	s := NewStore(WithOffset(50), WithClock(func() time.Time { return fixed }))

	err := s.Set("users/u1/last_activity_timestamp", backend.ServerTimestamp)
	require.NoError(t, err)

	var ts int64
	require.NoError(t, s.Get("users/u1/last_activity_timestamp", &ts))
	assert.Equal(t, int64(1_000_050), ts, "Серверное время должно включать смещение часов")
}

func TestStore_WatchInitialSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Update("users/u1/feedback", map[string]any{
		"b": map[string]any{"timestamp": 2},
		"a": map[string]any{"timestamp": 1},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx, "users/u1/feedback")
	require.NoError(t, err)

	// Существующие записи приходят как child_added в порядке ключей
	first := recvEvent(t, events)
	assert.Equal(t, backend.ChildAdded, first.Type)
	assert.Equal(t, "a", first.Key)

	second := recvEvent(t, events)
	assert.Equal(t, backend.ChildAdded, second.Type)
	assert.Equal(t, "b", second.Key)
}

func TestStore_WatchChildEvents(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx, "users/u1/my_sessions")
	require.NoError(t, err)

	require.NoError(t, s.Update("users/u1/my_sessions", map[string]any{
		"s1": map[string]any{"bookmarked": true},
	}))
	ev := recvEvent(t, events)
	assert.Equal(t, backend.ChildAdded, ev.Type)
	assert.Equal(t, "s1", ev.Key)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Value, &payload))
	assert.Equal(t, true, payload["bookmarked"])

	require.NoError(t, s.Update("users/u1/my_sessions", map[string]any{
		"s1": map[string]any{"bookmarked": false},
	}))
	ev = recvEvent(t, events)
	assert.Equal(t, backend.ChildChanged, ev.Type)

	require.NoError(t, s.Update("users/u1/my_sessions", map[string]any{"s1": nil}))
	ev = recvEvent(t, events)
	assert.Equal(t, backend.ChildRemoved, ev.Type)
	assert.Nil(t, ev.Value, "Удаление приходит без значения")
}

func TestStore_WatchLargeSnapshot(t *testing.T) {
	s := NewStore()

	existing := make(map[string]any, 100)
	for i := 0; i < 100; i++ {
		existing[fmt.Sprintf("s%03d", i)] = map[string]any{"bookmarked": true}
	}
	require.NoError(t, s.Update("users/u1/my_sessions", existing))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подписка обязана вернуться сразу, даже когда записей больше
	// емкости канала: никто не вычитывает события до возврата Watch
	type watchResult struct {
		events <-chan backend.Event
		err    error
	}
	done := make(chan watchResult, 1)
	go func() {
		events, err := s.Watch(ctx, "users/u1/my_sessions")
		done <- watchResult{events: events, err: err}
	}()

	var events <-chan backend.Event
	select {
	case res := <-done:
		require.NoError(t, res.err)
		events = res.events
	case <-time.After(time.Second):
		t.Fatal("Watch не вернулся на большой коллекции")
	}

	// Хранилище не должно остаться заблокированным после подписки
	require.NoError(t, s.Set("users/u2/last_activity_timestamp", 1))

	for i := 0; i < 100; i++ {
		ev := recvEvent(t, events)
		assert.Equal(t, backend.ChildAdded, ev.Type)
		assert.Equal(t, fmt.Sprintf("s%03d", i), ev.Key, "Снимок приходит в порядке ключей без потерь")
	}

	// Последующие события доставляются той же подпиской
	require.NoError(t, s.Update("users/u1/my_sessions", map[string]any{
		"tail": map[string]any{"bookmarked": false},
	}))
	ev := recvEvent(t, events)
	assert.Equal(t, "tail", ev.Key)
}

func TestStore_WatchDropsWhenSaturated(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx, "users/u1/feedback")
	require.NoError(t, err)

	// Подписчик ничего не вычитывает: записи не должны блокироваться,
	// лишние события отбрасываются
	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		for i := 0; i < 100; i++ {
			_ = s.Update("users/u1/feedback", map[string]any{
				fmt.Sprintf("t%03d", i): map[string]any{"timestamp": i},
			})
		}
	}()

	select {
	case <-wrote:
	case <-time.After(time.Second):
		t.Fatal("Запись заблокировалась на переполненном подписчике")
	}

	delivered := 0
	for {
		select {
		case <-events:
			delivered++
			continue
		default:
		}
		break
	}
	assert.Equal(t, watchBuffer, delivered, "Доставляется ровно емкость канала, остальное отброшено")
}

func TestStore_WatchDetach(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.Watch(ctx, "users/u1/feedback")
	require.NoError(t, err)
	require.Equal(t, 1, s.WatcherCount("users/u1/feedback"))

	cancel()

	require.Eventually(t, func() bool {
		return s.WatcherCount("users/u1/feedback") == 0
	}, time.Second, 10*time.Millisecond, "Подписчик должен отцепиться после отмены контекста")

	_, open := <-events
	assert.False(t, open, "Канал должен закрыться")
}

func TestConn_Lifecycle(t *testing.T) {
	client := NewClient(WithOffset(10))
	ctx := context.Background()

	conn, err := client.Connect(ctx, "https://shard-0")
	require.NoError(t, err)

	t.Run("EmptyTokenRejected", func(t *testing.T) {
		err := conn.Authenticate(ctx, "u1", "")
		assert.Error(t, err, "Пустой токен должен отклоняться")
	})

	require.NoError(t, conn.Authenticate(ctx, "u1", "token"))
	mc := conn.(*Conn)
	assert.True(t, mc.IsAuthed())
	assert.True(t, mc.IsOnline())

	t.Run("OnDisconnectRunsOnClose", func(t *testing.T) {
		require.NoError(t, conn.OnDisconnectSet(ctx, "users/u1/last_activity_timestamp", backend.ServerTimestamp))
		require.NoError(t, conn.Close())

		var ts int64
		require.NoError(t, client.Shard("https://shard-0").Get("users/u1/last_activity_timestamp", &ts))
		assert.Greater(t, ts, int64(0), "Отложенная запись должна выполниться при закрытии")
		assert.False(t, mc.IsAuthed())
	})
}

func TestClient_SharedShardState(t *testing.T) {
	client := NewClient()
	ctx := context.Background()

	conn1, err := client.Connect(ctx, "https://shard-0")
	require.NoError(t, err)
	require.NoError(t, conn1.Authenticate(ctx, "u1", "token"))
	require.NoError(t, conn1.Set(ctx, "users/u1/gcm_ids", map[string]any{"dev1": true}))
	require.NoError(t, conn1.Close())

	// Новое соединение с тем же шардом видит те же данные
	conn2, err := client.Connect(ctx, "https://shard-0")
	require.NoError(t, err)

	var got map[string]bool
	require.NoError(t, conn2.Get(ctx, "users/u1/gcm_ids", &got))
	assert.True(t, got["dev1"])
}

func recvEvent(t *testing.T, events <-chan backend.Event) backend.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("Канал событий закрыт раньше времени")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("Не дождались события")
	}
	return backend.Event{}
}
