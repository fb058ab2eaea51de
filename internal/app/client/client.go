package client

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"confsync/internal/analytics"
	"confsync/internal/app/client/config"
	"confsync/internal/backend"
	"confsync/internal/domain/userdata"
)

// App - клиентский адаптер синхронизации пользовательских данных
// конференции. Владеет единственным соединением с шардом бэкенда и
// опосредует все чтения и записи атрибутов users/{userID}/{attribute}.
type App struct {
	config     *config.Config
	log        *slog.Logger
	backend    backend.Client
	tracker    analytics.Tracker
	queue      QueueStorage
	offline    *OfflineService
	visibility VisibilitySignal

	mu     gosync.RWMutex
	conn   backend.Conn
	userID string
	authed bool
	subs   map[userdata.Attribute][]context.CancelFunc

	// offset - оценка смещения серверных часов в миллисекундах,
	// обновляется один раз на каждую аутентификацию.
	offset atomic.Int64

	wg     gosync.WaitGroup
	cancel context.CancelFunc
}

// Option настраивает App при создании.
type Option func(*App)

// WithTracker подключает сток аналитики для отчетов об ошибках.
func WithTracker(t analytics.Tracker) Option {
	return func(a *App) { a.tracker = t }
}

// WithVisibilitySignal подключает внешний сигнал видимости страницы:
// false переводит соединение в офлайн, true возвращает его в онлайн.
func WithVisibilitySignal(sig VisibilitySignal) Option {
	return func(a *App) { a.visibility = sig }
}

// New создает адаптер без открытого соединения. Соединение устанавливает
// Auth, разрывает UnAuth.
func New(cfg *config.Config, log *slog.Logger, be backend.Client, opts ...Option) (*App, error) {
	app := &App{
		config:  cfg,
		log:     log,
		backend: be,
		tracker: analytics.Noop{},
		subs:    make(map[userdata.Attribute][]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(app)
	}

	// Инициализируем локальную очередь отложенных действий (SQLite)
	queue, err := NewSQLiteQueue(cfg.QueuePath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		app.queue = NewMemoryQueue()
	} else {
		app.queue = queue
	}

	app.offline = NewOfflineService(app)

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	if app.visibility != nil {
		app.wg.Add(1)
		go app.watchVisibility(ctx)
	}

	return app, nil
}

// SelectShard детерминированно выбирает URL шарда для пользователя.
// Один и тот же userID всегда попадает на один и тот же шард при
// неизменном списке шардов.
func (a *App) SelectShard(userID string) string {
	return SelectShardURL(userID, a.config.ShardURLs)
}

// Auth выбирает шард пользователя, открывает соединение и обменивает
// OAuth-токен на учетные данные бэкенда. Повторный вызов при живом
// соединении сперва снимает старые подписки и закрывает его.
//
// После успешной аутентификации записывается отметка последней
// активности, регистрируется ее on-disconnect запись и асинхронно
// обновляется смещение серверных часов.
func (a *App) Auth(ctx context.Context, userID, accessToken string) error {
	shardURL := a.SelectShard(userID)
	if shardURL == "" {
		return userdata.ErrNoShards
	}

	a.mu.Lock()
	if a.conn != nil {
		// Старое соединение не должно пережить новую аутентификацию
		a.teardownLocked(ctx)
	}
	a.mu.Unlock()

	conn, err := a.backend.Connect(ctx, shardURL)
	if err != nil {
		a.reportAuthError(ctx, shardURL, err)
		return fmt.Errorf("ошибка соединения с шардом %s: %w", shardURL, err)
	}

	if err := conn.Authenticate(ctx, userID, accessToken); err != nil {
		_ = conn.Close()
		a.reportAuthError(ctx, shardURL, err)
		return fmt.Errorf("%w: %v", userdata.ErrAuthFailed, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.userID = userID
	a.authed = true
	a.mu.Unlock()

	a.log.Info("Аутентификация выполнена", "shard", shardURL)

	// Отметка "я здесь был": сразу при входе и при неожиданном разрыве
	activityPath := userdata.Path(userID, userdata.AttrLastActivity)
	if err := conn.Set(ctx, activityPath, backend.ServerTimestamp); err != nil {
		a.log.Warn("Не удалось записать отметку активности", "error", err)
	}
	if err := conn.OnDisconnectSet(ctx, activityPath, backend.ServerTimestamp); err != nil {
		a.log.Warn("Не удалось зарегистрировать on-disconnect запись", "error", err)
	}

	a.wg.Add(1)
	go a.refreshClockOffset(conn)

	// Действия, накопленные офлайн, уходят на бэкенд с их локальным
	// временем, пересчитанным через смещение часов
	if n, err := a.queue.CountPending(); err == nil && n > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			replayCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := a.offline.Replay(replayCtx); err != nil {
				a.log.Warn("Ошибка повторной отправки очереди", "error", err)
			}
		}()
	}

	return nil
}

func (a *App) reportAuthError(ctx context.Context, shardURL string, err error) {
	a.log.Error("Ошибка аутентификации", "shard", shardURL, "error", err)
	a.tracker.TrackError(ctx, "auth", err)
}

// refreshClockOffset один раз читает серверное смещение часов и сохраняет
// его локально. Ошибка чтения оставляет прежнюю оценку.
func (a *App) refreshClockOffset(conn backend.Conn) {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var offsetMs float64
	if err := conn.Get(ctx, userdata.ServerTimeOffsetPath, &offsetMs); err != nil {
		a.log.Warn("Не удалось прочитать смещение серверных часов", "error", err)
		return
	}

	a.offset.Store(int64(offsetMs))
	a.log.Debug("Смещение серверных часов обновлено", "offset_ms", int64(offsetMs))
}

// ClockOffset возвращает текущую оценку смещения серверных часов (мс).
func (a *App) ClockOffset() int64 {
	return a.offset.Load()
}

// SetClockOffset задает смещение напрямую (для тестов и отладки).
func (a *App) SetClockOffset(ms int64) {
	a.offset.Store(ms)
}

// resolveTimestamp преобразует локальное время вызывающей стороны в
// оценку серверного. Нулевое значение означает "пусть время назначит
// бэкенд при записи".
func (a *App) resolveTimestamp(ts int64) any {
	if ts > 0 {
		return ts + a.offset.Load()
	}
	return backend.ServerTimestamp
}

// UnAuth снимает подписки, отзывает учетные данные и закрывает
// соединение. Без аутентификации - ничего не делает.
//
// Порядок существенен: подписки снимаются до отзыва учетных данных,
// иначе при разборе соединения успевают прилететь ложные
// permission-denied события.
func (a *App) UnAuth(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	a.teardownLocked(ctx)
	return nil
}

// teardownLocked разбирает текущее соединение. Вызывать под a.mu.
func (a *App) teardownLocked(ctx context.Context) {
	a.detachSubscriptionsLocked()

	if err := a.conn.Unauthenticate(ctx); err != nil {
		a.log.Warn("Не удалось отозвать учетные данные", "error", err)
	}
	if err := a.conn.Close(); err != nil {
		a.log.Warn("Не удалось закрыть соединение", "error", err)
	}

	a.conn = nil
	a.userID = ""
	a.authed = false
}

// IsAuthed сообщает, держит ли адаптер действующие учетные данные.
func (a *App) IsAuthed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn != nil && a.authed
}

// UserID возвращает идентификатор аутентифицированного пользователя.
func (a *App) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// Offline возвращает сервис очереди отложенных действий.
func (a *App) Offline() *OfflineService {
	return a.offline
}

// Shutdown останавливает фоновые горутины и освобождает ресурсы.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.UnAuth(ctx); err != nil {
		a.log.Warn("Ошибка при завершении сессии", "error", err)
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.queue.Close(); err != nil {
		a.log.Warn("Не удалось закрыть локальную очередь", "error", err)
	}
}

// connSnapshot возвращает текущее соединение и пользователя либо
// ErrNotAuthenticated. Отказ сопровождается отладочной записью в лог.
func (a *App) connSnapshot(op string) (backend.Conn, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.conn == nil || !a.authed {
		a.log.Debug("Операция без аутентификации пропущена", "op", op)
		return nil, "", userdata.ErrNotAuthenticated
	}
	return a.conn, a.userID, nil
}
