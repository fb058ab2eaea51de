package memory

import (
	"context"
	"fmt"
	"sync"

	"confsync/internal/backend"
)

// Client - in-memory реализация backend.Client. Один Store на каждый
// URL шарда, так что повторные соединения видят одни и те же данные.
type Client struct {
	mu     sync.Mutex
	stores map[string]*Store
	opts   []Option

	// AcceptToken, если задан, решает, какие токены проходят обмен.
	AcceptToken func(userID, accessToken string) bool
}

// NewClient создает клиент с общим набором шардов.
func NewClient(opts ...Option) *Client {
	return &Client{
		stores: make(map[string]*Store),
		opts:   opts,
	}
}

// Shard возвращает Store шарда, создавая его при первом обращении.
func (c *Client) Shard(shardURL string) *Store {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stores[shardURL]
	if !ok {
		st = NewStore(c.opts...)
		c.stores[shardURL] = st
	}
	return st
}

// Connect открывает соединение с шардом.
func (c *Client) Connect(_ context.Context, shardURL string) (backend.Conn, error) {
	return &Conn{client: c, store: c.Shard(shardURL)}, nil
}

// Conn - соединение с in-memory шардом.
type Conn struct {
	client *Client
	store  *Store

	mu           sync.Mutex
	authed       bool
	online       bool
	closed       bool
	onDisconnect []pendingWrite
	watchCancels []context.CancelFunc
}

type pendingWrite struct {
	path  string
	value any
}

func (c *Conn) Authenticate(_ context.Context, userID, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if accessToken == "" {
		return fmt.Errorf("пустой access token")
	}
	if c.client.AcceptToken != nil && !c.client.AcceptToken(userID, accessToken) {
		return fmt.Errorf("токен отклонен бэкендом")
	}

	c.authed = true
	c.online = true
	return nil
}

func (c *Conn) Unauthenticate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed = false
	return nil
}

// IsAuthed сообщает, держит ли соединение действующие учетные данные.
func (c *Conn) IsAuthed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed && !c.closed
}

// IsOnline сообщает текущее состояние присутствия соединения.
func (c *Conn) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *Conn) Get(_ context.Context, path string, dest any) error {
	return c.store.Get(path, dest)
}

func (c *Conn) Set(_ context.Context, path string, value any) error {
	return c.store.Set(path, value)
}

func (c *Conn) Update(_ context.Context, path string, values map[string]any) error {
	return c.store.Update(path, values)
}

func (c *Conn) OnDisconnectSet(_ context.Context, path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, pendingWrite{path: path, value: value})
	return nil
}

func (c *Conn) Watch(ctx context.Context, path string) (<-chan backend.Event, error) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.watchCancels = append(c.watchCancels, cancel)
	c.mu.Unlock()

	return c.store.Watch(ctx, path)
}

func (c *Conn) GoOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = false
}

func (c *Conn) GoOnline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.online = true
	}
}

// Close закрывает соединение: снимает подписки и выполняет отложенные
// on-disconnect записи.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.authed = false
	c.online = false
	cancels := c.watchCancels
	writes := c.onDisconnect
	c.watchCancels = nil
	c.onDisconnect = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, w := range writes {
		if err := c.store.Set(w.path, w.value); err != nil {
			return fmt.Errorf("ошибка on-disconnect записи %s: %w", w.path, err)
		}
	}
	return nil
}
