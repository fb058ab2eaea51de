// internal/app/client/offline.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"confsync/internal/domain/userdata"
)

// OfflineService управляет очередью действий, записанных без соединения
// с бэкендом, и их повторной отправкой после аутентификации. Действие
// хранит локальное время фиксации; при отправке оно пересчитывается в
// серверное через смещение часов, а не штампуется временем отправки.
type OfflineService struct {
	app         *App
	log         *slog.Logger
	mu          sync.Mutex
	isReplaying bool
	stats       ReplayStats
}

// ReplayStats - накопленная статистика повторных отправок.
type ReplayStats struct {
	TotalReplays   int       `json:"total_replays"`
	TotalApplied   int       `json:"total_applied"`
	TotalFailed    int       `json:"total_failed"`
	LastSuccessful time.Time `json:"last_successful"`
}

// ReplayError - ошибка отправки одного действия.
type ReplayError struct {
	ActionID  int64     `json:"action_id"`
	Attribute string    `json:"attribute"`
	Key       string    `json:"key"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplayResult - итог одной повторной отправки очереди.
type ReplayResult struct {
	Applied   int           `json:"applied"`
	Failed    int           `json:"failed"`
	Errors    []ReplayError `json:"errors"`
	Duration  time.Duration `json:"duration"`
	StartTime time.Time     `json:"start_time"`
}

// bookmarkPayload - полезная нагрузка отложенной закладки.
type bookmarkPayload struct {
	Bookmarked bool `json:"bookmarked"`
}

// NewOfflineService создает сервис поверх очереди приложения.
func NewOfflineService(app *App) *OfflineService {
	return &OfflineService{
		app: app,
		log: app.log,
	}
}

// QueueBookmark откладывает установку или снятие закладки.
func (s *OfflineService) QueueBookmark(sessionUUID string, bookmarked bool, localTS int64) error {
	payload, err := json.Marshal(bookmarkPayload{Bookmarked: bookmarked})
	if err != nil {
		return fmt.Errorf("ошибка сериализации действия: %w", err)
	}
	return s.queue(userdata.AttrSessions, sessionUUID, payload, localTS)
}

// QueueFeedback откладывает отметку об отправленном отзыве.
func (s *OfflineService) QueueFeedback(sessionUUID string, localTS int64) error {
	return s.queue(userdata.AttrFeedback, sessionUUID, nil, localTS)
}

// QueueVideo откладывает отметку о просмотренном видео.
func (s *OfflineService) QueueVideo(videoID string, localTS int64) error {
	return s.queue(userdata.AttrViewedVideos, videoID, nil, localTS)
}

// QueueNotificationID откладывает регистрацию идентификатора
// push-уведомлений.
func (s *OfflineService) QueueNotificationID(id string) error {
	return s.queue(userdata.AttrNotificationIDs, id, nil, 0)
}

func (s *OfflineService) queue(attr userdata.Attribute, key string, payload []byte, localTS int64) error {
	action := &userdata.PendingAction{
		Attribute:      attr,
		Key:            key,
		Payload:        payload,
		LocalTimestamp: localTS,
	}
	if err := s.app.queue.SavePending(action); err != nil {
		return fmt.Errorf("ошибка записи в очередь: %w", err)
	}

	s.log.Debug("Действие добавлено в очередь",
		"attribute", attr,
		"key", key,
		"local_ts", localTS,
	)
	return nil
}

// Pending возвращает содержимое очереди.
func (s *OfflineService) Pending() ([]*userdata.PendingAction, error) {
	return s.app.queue.ListPending()
}

// Stats возвращает копию накопленной статистики.
func (s *OfflineService) Stats() ReplayStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Replay отправляет накопленные действия на бэкенд. Успешно
// отправленные удаляются из очереди, неудачные остаются до следующей
// попытки.
func (s *OfflineService) Replay(ctx context.Context) (*ReplayResult, error) {
	s.mu.Lock()
	if s.isReplaying {
		s.mu.Unlock()
		return nil, fmt.Errorf("повторная отправка уже выполняется")
	}
	s.isReplaying = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isReplaying = false
		s.mu.Unlock()
	}()

	if !s.app.IsAuthed() {
		return nil, userdata.ErrNotAuthenticated
	}

	actions, err := s.app.queue.ListPending()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	result := &ReplayResult{StartTime: time.Now()}

	for _, action := range actions {
		if ctx.Err() != nil {
			break
		}

		if err := s.apply(ctx, action); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ReplayError{
				ActionID:  action.ID,
				Attribute: string(action.Attribute),
				Key:       action.Key,
				Error:     err.Error(),
				Timestamp: time.Now(),
			})
			s.log.Warn("Не удалось отправить действие",
				"action_id", action.ID,
				"attribute", action.Attribute,
				"error", err,
			)
			continue
		}

		if err := s.app.queue.DeletePending(action.ID); err != nil {
			s.log.Warn("Не удалось удалить действие из очереди",
				"action_id", action.ID,
				"error", err,
			)
		}
		result.Applied++
	}

	result.Duration = time.Since(result.StartTime)

	s.mu.Lock()
	s.stats.TotalReplays++
	s.stats.TotalApplied += result.Applied
	s.stats.TotalFailed += result.Failed
	if result.Failed == 0 {
		s.stats.LastSuccessful = time.Now()
	}
	s.mu.Unlock()

	s.log.Info("Повторная отправка завершена",
		"applied", result.Applied,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *OfflineService) apply(ctx context.Context, action *userdata.PendingAction) error {
	switch action.Attribute {
	case userdata.AttrSessions:
		var payload bookmarkPayload
		if err := json.Unmarshal(action.Payload, &payload); err != nil {
			return fmt.Errorf("ошибка разбора действия: %w", err)
		}
		return s.app.ToggleSession(ctx, action.Key, payload.Bookmarked, action.LocalTimestamp)
	case userdata.AttrFeedback:
		return s.app.MarkSessionRated(ctx, action.Key, action.LocalTimestamp)
	case userdata.AttrViewedVideos:
		return s.app.MarkVideoAsViewed(ctx, action.Key, action.LocalTimestamp)
	case userdata.AttrNotificationIDs:
		return s.app.AddNotificationID(ctx, action.Key)
	}
	return fmt.Errorf("неизвестный атрибут очереди: %s", action.Attribute)
}
