// Package backend описывает контракт клиента realtime-базы, в которую
// зеркалируются пользовательские данные. Продакшен-реализация живет в
// backend/firedb, in-memory реализация для тестов и эмулятора - в
// backend/memory.
package backend

import (
	"context"
	"encoding/json"
)

// Client открывает соединения с шардами бэкенда.
type Client interface {
	// Connect открывает соединение с шардом по его URL.
	// Соединение не аутентифицировано до вызова Conn.Authenticate.
	Connect(ctx context.Context, shardURL string) (Conn, error)
}

// Conn - одно соединение с шардом. Все операции асинхронно выполняются
// бэкендом; Conn лишь передает запросы и не добавляет ретраев.
type Conn interface {
	// Authenticate обменивает OAuth-токен на учетные данные бэкенда.
	Authenticate(ctx context.Context, userID, accessToken string) error
	// Unauthenticate отзывает учетные данные соединения.
	Unauthenticate(ctx context.Context) error

	// Get читает значение по пути один раз.
	Get(ctx context.Context, path string, dest any) error
	// Set полностью заменяет значение по пути.
	Set(ctx context.Context, path string, value any) error
	// Update выполняет merge-запись: меняются только перечисленные ключи,
	// соседние ключи по тому же пути не затрагиваются.
	Update(ctx context.Context, path string, values map[string]any) error
	// OnDisconnectSet регистрирует запись значения, выполняемую бэкендом
	// при потере соединения (семантика at-least-once).
	OnDisconnectSet(ctx context.Context, path string, value any) error

	// Watch подписывается на дочерние события по пути. Канал закрывается
	// при отмене ctx или закрытии соединения.
	Watch(ctx context.Context, path string) (<-chan Event, error)

	// GoOffline приостанавливает соединение, GoOnline восстанавливает его.
	GoOffline()
	GoOnline()

	// Close закрывает соединение и все его подписки.
	Close() error
}

// EventType - вид дочернего события подписки.
type EventType int

const (
	ChildAdded EventType = iota
	ChildChanged
	ChildRemoved
)

func (t EventType) String() string {
	switch t {
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	case ChildRemoved:
		return "child_removed"
	}
	return "unknown"
}

// Event - дочернее событие по отслеживаемому пути.
// Value равен nil для ChildRemoved.
type Event struct {
	Type  EventType
	Key   string
	Value json.RawMessage
}

// serverValue - маркер значения, назначаемого сервером при записи.
type serverValue struct{}

// ServerTimestamp подставляет каноническое "сейчас" бэкенда в момент записи.
// Используется, когда вызывающая сторона не передала локальное время.
var ServerTimestamp any = serverValue{}

// IsServerTimestamp сообщает, является ли значение маркером серверного времени.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverValue)
	return ok
}
