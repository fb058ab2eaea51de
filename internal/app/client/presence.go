package client

import "context"

// VisibilitySignal - внешний источник событий видимости окружения.
// true означает "пользователь видит приложение", false - нет.
type VisibilitySignal interface {
	Events() <-chan bool
}

// ChanVisibility - простейшая реализация VisibilitySignal поверх канала.
type ChanVisibility chan bool

func (c ChanVisibility) Events() <-chan bool { return c }

// watchVisibility переводит соединение в офлайн при скрытии приложения
// и обратно в онлайн при возвращении видимости. Без живого соединения
// события просто игнорируются.
func (a *App) watchVisibility(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case visible, ok := <-a.visibility.Events():
			if !ok {
				return
			}

			a.mu.RLock()
			conn := a.conn
			a.mu.RUnlock()
			if conn == nil {
				continue
			}

			if visible {
				conn.GoOnline()
				a.log.Debug("Соединение возвращено в онлайн")
			} else {
				conn.GoOffline()
				a.log.Debug("Соединение переведено в офлайн")
			}
		}
	}
}
