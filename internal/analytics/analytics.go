// Package analytics - клиент стока аналитики. Адаптер пользовательских
// данных отчитывается сюда об ошибках аутентификации; сам сток -
// внешний сервис, здесь только отправка событий.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"
)

// Tracker принимает события об ошибках адаптера.
type Tracker interface {
	TrackError(ctx context.Context, action string, err error)
}

// Noop - заглушка, используется когда сток не настроен.
type Noop struct{}

func (Noop) TrackError(context.Context, string, error) {}

// HTTPTracker отправляет события в сток аналитики по HTTP. Ошибки
// отправки только логируются: аналитика не должна ломать основной поток.
type HTTPTracker struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string
}

// NewHTTPTracker создает клиент стока аналитики.
func NewHTTPTracker(baseURL string, log *slog.Logger) *HTTPTracker {
	return &HTTPTracker{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:       log,
		baseURL:   baseURL,
		userAgent: "ConfSync-Client/1.0",
	}
}

type errorEvent struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// TrackError отправляет событие об ошибке.
func (t *HTTPTracker) TrackError(ctx context.Context, action string, trackedErr error) {
	event := errorEvent{
		Action:    action,
		Message:   trackedErr.Error(),
		Timestamp: time.Now().UnixMilli(),
	}

	if err := t.doRequest(ctx, "/events/error", event); err != nil {
		t.log.Warn("Не удалось отправить событие аналитики",
			"action", action,
			"error", err,
		)
	}
}

func (t *HTTPTracker) doRequest(ctx context.Context, path string, body any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("сток вернул статус: %d", resp.StatusCode)
	}

	return nil
}
