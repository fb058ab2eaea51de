package firedb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"confsync/internal/backend"
)

// Watch подписывается на дочерние события по пути через потоковый
// REST-протокол базы. Существующие дочерние ключи приходят первым
// событием потока и доставляются как child_added.
func (c *Conn) Watch(ctx context.Context, path string) (<-chan backend.Event, error) {
	c.mu.Lock()
	if c.db == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("соединение не аутентифицировано")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	w := &watchStream{
		shardURL: c.shardURL,
		token:    c.token,
		path:     strings.Trim(path, "/"),
		out:      make(chan backend.Event, 64),
		children: make(map[string]any),
		ctx:      streamCtx,
		cancel:   cancel,
		resumeCh: make(chan struct{}, 1),
	}
	c.watches = append(c.watches, w)
	suspended := c.offline
	c.mu.Unlock()

	if suspended {
		w.suspend()
	}

	go w.run()
	return w.out, nil
}

// watchStream - один поток подписки. Переустанавливает соединение при
// обрыве; пока соединение в офлайне, поток приостановлен.
type watchStream struct {
	shardURL string
	token    string
	path     string
	out      chan backend.Event

	mu        sync.Mutex
	children  map[string]any
	suspended bool
	streamCxl context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	resumeCh chan struct{}
}

func (w *watchStream) stop() {
	w.cancel()
}

func (w *watchStream) suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = true
	if w.streamCxl != nil {
		w.streamCxl()
	}
}

func (w *watchStream) resume() {
	w.mu.Lock()
	w.suspended = false
	w.mu.Unlock()

	select {
	case w.resumeCh <- struct{}{}:
	default:
	}
}

func (w *watchStream) isSuspended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suspended
}

func (w *watchStream) run() {
	defer close(w.out)

	for {
		if w.ctx.Err() != nil {
			return
		}

		if w.isSuspended() {
			select {
			case <-w.ctx.Done():
				return
			case <-w.resumeCh:
			}
			continue
		}

		streamCtx, cancel := context.WithCancel(w.ctx)
		w.mu.Lock()
		w.streamCxl = cancel
		w.mu.Unlock()

		_ = w.stream(streamCtx)
		cancel()

		if w.ctx.Err() != nil {
			return
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// stream держит одно SSE-соединение и транслирует его события.
func (w *watchStream) stream(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s.json?access_token=%s", strings.TrimRight(w.shardURL, "/"), w.path, w.token)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if event != "" {
				w.dispatch(event, data)
			}
			event, data = "", ""
		}
	}
	return scanner.Err()
}

type streamPayload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// dispatch превращает события протокола (put/patch по пути) в дочерние
// события наблюдаемой коллекции.
func (w *watchStream) dispatch(event, data string) {
	switch event {
	case "put", "patch":
	case "auth_revoked":
		w.cancel()
		return
	default:
		// keep-alive и служебные события потока
		return
	}

	var payload streamPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return
	}

	segs := splitStreamPath(payload.Path)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case len(segs) == 0 && event == "put":
		// Полный снимок коллекции
		var snapshot map[string]any
		_ = json.Unmarshal(payload.Data, &snapshot)
		for key := range w.children {
			if _, kept := snapshot[key]; !kept {
				w.emit(backend.ChildRemoved, key, nil)
			}
		}
		for key, value := range snapshot {
			w.setChild(key, value)
		}
	case len(segs) == 0 && event == "patch":
		var patch map[string]any
		if err := json.Unmarshal(payload.Data, &patch); err != nil {
			return
		}
		for key, value := range patch {
			w.setChild(key, value)
		}
	case len(segs) == 1:
		var value any
		_ = json.Unmarshal(payload.Data, &value)
		w.setChild(segs[0], value)
	default:
		// Изменение в глубине дочернего узла
		w.applyDeep(segs, event, payload.Data)
	}
}

func (w *watchStream) setChild(key string, value any) {
	_, existed := w.children[key]
	if value == nil {
		if existed {
			delete(w.children, key)
			w.emit(backend.ChildRemoved, key, nil)
		}
		return
	}

	w.children[key] = value
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if existed {
		w.emit(backend.ChildChanged, key, raw)
	} else {
		w.emit(backend.ChildAdded, key, raw)
	}
}

// applyDeep вносит изменение внутри дочернего узла и доставляет его
// как child_changed по корневому ключу.
func (w *watchStream) applyDeep(segs []string, event string, data json.RawMessage) {
	key := segs[0]
	child, ok := w.children[key].(map[string]any)
	if !ok {
		child = make(map[string]any)
	}

	node := child
	for _, seg := range segs[1 : len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[seg] = next
		}
		node = next
	}

	leaf := segs[len(segs)-1]
	var value any
	_ = json.Unmarshal(data, &value)

	if event == "patch" {
		target, ok := node[leaf].(map[string]any)
		if !ok {
			target = make(map[string]any)
		}
		if patch, isMap := value.(map[string]any); isMap {
			for k, v := range patch {
				if v == nil {
					delete(target, k)
				} else {
					target[k] = v
				}
			}
		}
		node[leaf] = target
	} else if value == nil {
		delete(node, leaf)
	} else {
		node[leaf] = value
	}

	w.children[key] = child
	raw, err := json.Marshal(child)
	if err != nil {
		return
	}
	w.emit(backend.ChildChanged, key, raw)
}

func (w *watchStream) emit(typ backend.EventType, key string, value json.RawMessage) {
	select {
	case w.out <- backend.Event{Type: typ, Key: key, Value: value}:
	default:
		// Подписчик не успевает вычитывать, событие отбрасывается.
	}
}

func splitStreamPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
