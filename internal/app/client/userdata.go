package client

import (
	"context"

	"confsync/internal/domain/userdata"
)

// Все мутации ниже - merge-записи под users/{userID}/{attribute}:
// меняется только ключ действия, соседние записи коллекции не
// затрагиваются. Локальное время ts преобразуется в серверное через
// смещение часов; ts == 0 означает серверное время в момент записи.
// Без аутентификации мутации возвращают userdata.ErrNotAuthenticated.

// ToggleSession ставит или снимает закладку на сессию конференции.
func (a *App) ToggleSession(ctx context.Context, sessionUUID string, bookmarked bool, ts int64) error {
	conn, userID, err := a.connSnapshot("toggle_session")
	if err != nil {
		return err
	}

	err = conn.Update(ctx, userdata.Path(userID, userdata.AttrSessions), map[string]any{
		sessionUUID: map[string]any{
			"timestamp":  a.resolveTimestamp(ts),
			"bookmarked": bookmarked,
		},
	})
	a.logWrite("toggle_session", sessionUUID, err)
	return err
}

// MarkSessionRated фиксирует отправленный отзыв по сессии.
func (a *App) MarkSessionRated(ctx context.Context, sessionUUID string, ts int64) error {
	conn, userID, err := a.connSnapshot("mark_session_rated")
	if err != nil {
		return err
	}

	err = conn.Update(ctx, userdata.Path(userID, userdata.AttrFeedback), map[string]any{
		sessionUUID: map[string]any{
			"timestamp": a.resolveTimestamp(ts),
		},
	})
	a.logWrite("mark_session_rated", sessionUUID, err)
	return err
}

// MarkVideoAsViewed отмечает видео просмотренным. Значением ключа
// служит само время просмотра.
func (a *App) MarkVideoAsViewed(ctx context.Context, videoID string, ts int64) error {
	conn, userID, err := a.connSnapshot("mark_video_viewed")
	if err != nil {
		return err
	}

	err = conn.Update(ctx, userdata.Path(userID, userdata.AttrViewedVideos), map[string]any{
		videoID: a.resolveTimestamp(ts),
	})
	a.logWrite("mark_video_viewed", videoID, err)
	return err
}

// AddNotificationID регистрирует идентификатор push-уведомлений
// устройства.
func (a *App) AddNotificationID(ctx context.Context, id string) error {
	conn, userID, err := a.connSnapshot("add_notification_id")
	if err != nil {
		return err
	}

	err = conn.Update(ctx, userdata.Path(userID, userdata.AttrNotificationIDs), map[string]any{
		id: true,
	})
	a.logWrite("add_notification_id", id, err)
	return err
}

// logWrite пишет исход записи в лог. Адаптер не превращает ошибки
// бэкенда во что-то большее: вызывающая сторона сама решает, что
// делать с возвращенной ошибкой.
func (a *App) logWrite(op, key string, err error) {
	if err != nil {
		a.log.Error("Ошибка записи", "op", op, "key", key, "error", err)
		return
	}
	a.log.Debug("Запись выполнена", "op", op, "key", key)
}
