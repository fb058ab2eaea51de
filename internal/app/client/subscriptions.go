package client

import (
	"context"
	"encoding/json"

	"confsync/internal/domain/userdata"
)

// UpdateFunc вызывается на каждое дочернее событие отслеживаемого
// атрибута. value == nil означает удаление записи.
type UpdateFunc func(key string, value json.RawMessage)

// SubscribeToSessionUpdates подписывает callback на изменения закладок
// текущего пользователя.
func (a *App) SubscribeToSessionUpdates(cb UpdateFunc) error {
	return a.subscribeToAttribute(userdata.AttrSessions, cb)
}

// SubscribeToFeedbackUpdates подписывает callback на изменения отзывов
// текущего пользователя.
func (a *App) SubscribeToFeedbackUpdates(cb UpdateFunc) error {
	return a.subscribeToAttribute(userdata.AttrFeedback, cb)
}

// subscribeToAttribute привязывает callback к дочерним событиям
// коллекции: добавление, изменение и удаление записи доставляются в
// порядке, который определяет сам бэкенд. Каждый вызов регистрирует
// независимую подписку; дедупликации callback-ов нет.
func (a *App) subscribeToAttribute(attr userdata.Attribute, cb UpdateFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil || !a.authed {
		a.log.Debug("Подписка без аутентификации пропущена", "attribute", attr)
		return userdata.ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := a.conn.Watch(ctx, userdata.Path(a.userID, attr))
	if err != nil {
		cancel()
		return err
	}

	a.subs[attr] = append(a.subs[attr], cancel)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for ev := range events {
			cb(ev.Key, ev.Value)
		}
	}()

	a.log.Debug("Подписка оформлена", "attribute", attr)
	return nil
}

// detachSubscriptionsLocked снимает подписки на отслеживаемые атрибуты
// (закладки и отзывы). Вызывать под a.mu.
func (a *App) detachSubscriptionsLocked() {
	for _, attr := range []userdata.Attribute{userdata.AttrSessions, userdata.AttrFeedback} {
		for _, cancel := range a.subs[attr] {
			cancel()
		}
		delete(a.subs, attr)
	}
}
