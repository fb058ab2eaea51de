// Package firedb - продакшен-реализация backend.Client поверх Firebase
// Realtime Database. Чтения и записи идут через официальный SDK,
// подписки - через потоковый REST-протокол базы (SSE), который SDK для
// Go не покрывает.
package firedb

import (
	"context"
	"fmt"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"golang.org/x/exp/slog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"confsync/internal/backend"
)

// Client открывает соединения с шардами Realtime Database.
type Client struct {
	log  *slog.Logger
	opts []option.ClientOption
}

// NewClient создает клиент. Дополнительные опции firebase-приложения
// (например, эндпоинт эмулятора) передаются через opts.
func NewClient(log *slog.Logger, opts ...option.ClientOption) *Client {
	return &Client{log: log, opts: opts}
}

// Connect возвращает соединение с шардом. Сетевой обмен начинается
// только после Authenticate.
func (c *Client) Connect(_ context.Context, shardURL string) (backend.Conn, error) {
	if shardURL == "" {
		return nil, fmt.Errorf("пустой URL шарда")
	}
	return &Conn{
		shardURL: shardURL,
		log:      c.log,
		opts:     c.opts,
	}, nil
}

// Conn - соединение с одним шардом Realtime Database.
type Conn struct {
	shardURL string
	log      *slog.Logger
	opts     []option.ClientOption

	mu           sync.Mutex
	db           *db.Client
	token        string
	onDisconnect []pendingWrite
	watches      []*watchStream
	offline      bool
	closed       bool
}

type pendingWrite struct {
	path  string
	value any
}

// Authenticate обменивает OAuth-токен на учетные данные базы: SDK
// подписывает все запросы переданным токеном.
func (c *Conn) Authenticate(ctx context.Context, _, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if accessToken == "" {
		return fmt.Errorf("пустой access token")
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(source)}, c.opts...)

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: c.shardURL}, opts...)
	if err != nil {
		return fmt.Errorf("ошибка инициализации firebase-приложения: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента базы: %w", err)
	}

	c.db = client
	c.token = accessToken
	return nil
}

// Unauthenticate отзывает учетные данные соединения.
func (c *Conn) Unauthenticate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = nil
	c.token = ""
	return nil
}

func (c *Conn) ref(path string) (*db.Ref, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, fmt.Errorf("соединение не аутентифицировано")
	}
	return c.db.NewRef(path), nil
}

func (c *Conn) Get(ctx context.Context, path string, dest any) error {
	ref, err := c.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Get(ctx, dest); err != nil {
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return nil
}

func (c *Conn) Set(ctx context.Context, path string, value any) error {
	ref, err := c.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Set(ctx, translateServerValues(value)); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	return nil
}

func (c *Conn) Update(ctx context.Context, path string, values map[string]any) error {
	ref, err := c.ref(path)
	if err != nil {
		return err
	}

	translated := make(map[string]any, len(values))
	for k, v := range values {
		translated[k] = translateServerValues(v)
	}

	if err := ref.Update(ctx, translated); err != nil {
		return fmt.Errorf("ошибка merge-записи %s: %w", path, err)
	}
	return nil
}

// OnDisconnectSet регистрирует запись, выполняемую при закрытии
// соединения. REST-транспорт не знает о разрыве со стороны сервера,
// поэтому гарантия сужается до "при штатном закрытии".
func (c *Conn) OnDisconnectSet(_ context.Context, path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, pendingWrite{path: path, value: value})
	return nil
}

func (c *Conn) GoOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline {
		return
	}
	c.offline = true
	for _, w := range c.watches {
		w.suspend()
	}
}

func (c *Conn) GoOnline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.offline || c.closed {
		return
	}
	c.offline = false
	for _, w := range c.watches {
		w.resume()
	}
}

// Close закрывает соединение: останавливает потоки подписок и
// выполняет отложенные on-disconnect записи.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	watches := c.watches
	writes := c.onDisconnect
	client := c.db
	c.watches = nil
	c.onDisconnect = nil
	c.db = nil
	c.token = ""
	c.mu.Unlock()

	for _, w := range watches {
		w.stop()
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, w := range writes {
			if err := client.NewRef(w.path).Set(ctx, translateServerValues(w.value)); err != nil {
				return fmt.Errorf("ошибка on-disconnect записи %s: %w", w.path, err)
			}
		}
	}
	return nil
}

// translateServerValues заменяет маркеры серверного времени на
// плейсхолдер протокола базы.
func translateServerValues(v any) any {
	if backend.IsServerTimestamp(v) {
		return map[string]any{".sv": "timestamp"}
	}
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = translateServerValues(mv)
		}
		return out
	}
	return v
}
