package data

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"confsync/internal/app/emulator/api/http/middleware/auth"
	"confsync/internal/backend"
	"confsync/internal/backend/memory"
	"confsync/internal/domain/userdata"
)

// Handler обслуживает REST-подмножество протокола базы: чтение и запись
// по пути /{path}.json и потоковую подписку через text/event-stream.
type Handler struct {
	store *memory.Store
	log   *slog.Logger
}

func NewHandler(store *memory.Store, log *slog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log,
	}
}

func (h *Handler) SetupRoutes(r chi.Router) {
	r.Get("/*", h.get)
	r.Put("/*", h.put)
	r.Patch("/*", h.patch)
}

// dataPath извлекает путь узла из URL запроса: суффикс .json
// отбрасывается, ведущие и замыкающие слэши обрезаются.
func dataPath(r *http.Request) (string, error) {
	p := chi.URLParam(r, "*")
	if !strings.HasSuffix(p, ".json") {
		return "", fmt.Errorf("путь должен оканчиваться на .json")
	}
	return strings.Trim(strings.TrimSuffix(p, ".json"), "/"), nil
}

// authorize проверяет, что путь доступен владельцу токена: служебный
// узел смещения часов читается любым аутентифицированным пользователем,
// все остальное лежит под users/{userID} владельца.
func authorize(r *http.Request, p string, write bool) error {
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		return fmt.Errorf("нет пользователя в контексте")
	}

	if p == userdata.ServerTimeOffsetPath {
		if write {
			return fmt.Errorf("служебный путь доступен только для чтения")
		}
		return nil
	}

	segs := strings.Split(p, "/")
	if len(segs) < 2 || segs[0] != "users" || segs[1] != userID {
		return fmt.Errorf("путь %s не принадлежит пользователю %s", p, userID)
	}
	return nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := dataPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := authorize(r, p, false); err != nil {
		h.writeError(w, http.StatusForbidden, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.stream(w, r, p)
		return
	}

	var value any
	if err := h.store.Get(p, &value); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	p, err := dataPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := authorize(r, p, true); err != nil {
		h.writeError(w, http.StatusForbidden, err)
		return
	}

	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("ошибка чтения тела запроса: %w", err))
		return
	}

	value = translateServerValues(value)
	if err := h.store.Set(p, value); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.log.Debug("Запись значения", "path", p)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	p, err := dataPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := authorize(r, p, true); err != nil {
		h.writeError(w, http.StatusForbidden, err)
		return
	}

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("ошибка чтения тела запроса: %w", err))
		return
	}

	translated := make(map[string]any, len(values))
	for k, v := range values {
		translated[k] = translateServerValues(v)
	}

	if err := h.store.Update(p, translated); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.log.Debug("Merge-запись", "path", p, "keys", len(translated))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(translated)
}

// stream отдает события узла как text/event-stream: каждое дочернее
// изменение приходит событием put с путем /{key}.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, p string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("поток не поддерживается"))
		return
	}

	events, err := h.store.Watch(r.Context(), p)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("Открыт поток подписки", "path", p)

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, "event: keep-alive\ndata: null\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeStreamEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func writeStreamEvent(w http.ResponseWriter, ev backend.Event) error {
	payload := streamPayload{Path: "/" + ev.Key}
	if ev.Type == backend.ChildRemoved || ev.Value == nil {
		payload.Data = json.RawMessage("null")
	} else {
		payload.Data = ev.Value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: put\ndata: %s\n\n", raw)
	return err
}

// translateServerValues заменяет метку {".sv":"timestamp"} протокола на
// внутреннее серверное значение времени.
func translateServerValues(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if sv, ok := m[".sv"].(string); ok && sv == "timestamp" && len(m) == 1 {
		return backend.ServerTimestamp
	}
	out := make(map[string]any, len(m))
	for k, mv := range m {
		out[k] = translateServerValues(mv)
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.log.Debug("Ошибка обработки запроса", "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
