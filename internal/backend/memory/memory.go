// Package memory - in-memory реализация backend.Client. Используется
// тестами вместо настоящего бэкенда и хранилищем эмулятора шарда.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"confsync/internal/backend"
)

// Store - дерево значений одного шарда с merge-семантикой записи и
// рассылкой дочерних событий подписчикам.
type Store struct {
	mu       sync.RWMutex
	root     map[string]any
	watchers map[string][]*watcher
	offset   int64
	now      func() time.Time
	nextID   int
}

// watchBuffer - запас емкости канала подписчика сверх начального
// снимка. Отправка событий неблокирующая: что не влезло, отбрасывается.
const watchBuffer = 64

type watcher struct {
	id   int
	path string
	ch   chan backend.Event
}

// Option настраивает Store.
type Option func(*Store)

// WithOffset задает смещение серверных часов в миллисекундах.
func WithOffset(ms int64) Option {
	return func(s *Store) { s.offset = ms }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore создает пустое дерево.
func NewStore(opts ...Option) *Store {
	s := &Store{
		root:     make(map[string]any),
		watchers: make(map[string][]*watcher),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Offset возвращает смещение серверных часов в миллисекундах.
func (s *Store) Offset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// ServerNow возвращает серверное "сейчас" в миллисекундах.
func (s *Store) ServerNow() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().UnixMilli() + s.offset
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// node возвращает значение по пути без блокировки (вызывать под mu).
func (s *Store) node(p string) (any, bool) {
	cur := any(s.root)
	for _, seg := range splitPath(p) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ensureParent возвращает map родителя пути, создавая недостающие узлы.
func (s *Store) ensureParent(p string) (map[string]any, string) {
	segs := splitPath(p)
	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			cur[seg] = child
		}
		cur = child
	}
	return cur, segs[len(segs)-1]
}

// normalize приводит значение к JSON-представлению и подставляет серверное
// время вместо маркеров ServerTimestamp.
func (s *Store) normalize(v any) (any, error) {
	v = s.resolveServerValues(v)
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации значения: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ошибка нормализации значения: %w", err)
	}
	return out, nil
}

func (s *Store) resolveServerValues(v any) any {
	if backend.IsServerTimestamp(v) {
		return s.now().UnixMilli() + s.offset
	}
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = s.resolveServerValues(mv)
		}
		return out
	}
	return v
}

// Get читает значение по пути. Зарезервированный путь serverTimeOffset
// отдает смещение часов.
func (s *Store) Get(p string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v any
	if strings.Trim(p, "/") == ".info/serverTimeOffset" {
		v = s.offset
	} else {
		v, _ = s.node(p)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации значения: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("ошибка чтения значения по пути %s: %w", p, err)
	}
	return nil
}

// Set полностью заменяет значение по пути.
func (s *Store) Set(p string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(splitPath(p)) == 0 {
		return fmt.Errorf("пустой путь записи")
	}

	norm, err := s.normalize(value)
	if err != nil {
		return err
	}

	old, existed := s.node(p)
	parent, key := s.ensureParent(p)
	if norm == nil {
		delete(parent, key)
	} else {
		parent[key] = norm
	}

	// Подписчики самого пути видят разницу дочерних ключей,
	// подписчики родителя - событие по одному ключу.
	s.emitChildDiff(p, old, norm)
	s.emitKeyEvent(parentPath(p), key, existed, norm)
	return nil
}

// Update выполняет merge-запись: меняются только перечисленные ключи.
// Значение nil удаляет ключ.
func (s *Store) Update(p string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(values) == 0 {
		return nil
	}

	target, ok := s.node(p)
	node, isMap := target.(map[string]any)
	if !ok || !isMap {
		parent, key := s.ensureParent(p)
		node = make(map[string]any)
		parent[key] = node
	}

	for k, v := range values {
		norm, err := s.normalize(v)
		if err != nil {
			return err
		}
		_, existed := node[k]
		if norm == nil {
			if existed {
				delete(node, k)
				s.notify(p, backend.Event{Type: backend.ChildRemoved, Key: k})
			}
			continue
		}
		node[k] = norm
		s.emitKeyEventLocked(p, k, existed, norm)
	}
	return nil
}

func parentPath(p string) string {
	segs := splitPath(p)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], "/")
}

func (s *Store) emitKeyEvent(path, key string, existed bool, value any) {
	if path == "" {
		return
	}
	if value == nil {
		if existed {
			s.notify(path, backend.Event{Type: backend.ChildRemoved, Key: key})
		}
		return
	}
	s.emitKeyEventLocked(path, key, existed, value)
}

func (s *Store) emitKeyEventLocked(path, key string, existed bool, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	typ := backend.ChildAdded
	if existed {
		typ = backend.ChildChanged
	}
	s.notify(path, backend.Event{Type: typ, Key: key, Value: raw})
}

// emitChildDiff сравнивает дочерние ключи старого и нового значения пути
// и рассылает подписчикам пути add/change/remove по каждому ключу.
func (s *Store) emitChildDiff(path string, oldVal, newVal any) {
	if len(s.watchers[strings.Trim(path, "/")]) == 0 {
		return
	}
	oldMap, _ := oldVal.(map[string]any)
	newMap, _ := newVal.(map[string]any)

	for _, k := range sortedKeys(oldMap) {
		if _, kept := newMap[k]; !kept {
			s.notify(path, backend.Event{Type: backend.ChildRemoved, Key: k})
		}
	}
	for _, k := range sortedKeys(newMap) {
		_, existed := oldMap[k]
		s.emitKeyEventLocked(path, k, existed, newMap[k])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) notify(path string, ev backend.Event) {
	for _, w := range s.watchers[strings.Trim(path, "/")] {
		select {
		case w.ch <- ev:
		default:
			// Подписчик не успевает вычитывать, событие отбрасывается.
		}
	}
}

// Watch подписывается на дочерние события по пути. Существующие дочерние
// ключи доставляются как child_added сразу после подписки, как это делает
// сам бэкенд.
func (s *Store) Watch(ctx context.Context, p string) (<-chan backend.Event, error) {
	s.mu.Lock()

	// Начальный снимок заполняется под мьютексом, поэтому емкость канала
	// обязана вмещать его целиком: блокировка на отправке здесь повесила
	// бы все хранилище.
	var snapshot map[string]any
	if node, ok := s.node(p); ok {
		snapshot, _ = node.(map[string]any)
	}

	capacity := watchBuffer
	if len(snapshot) > capacity {
		capacity = len(snapshot) + watchBuffer
	}

	w := &watcher{
		id:   s.nextID,
		path: strings.Trim(p, "/"),
		ch:   make(chan backend.Event, capacity),
	}
	s.nextID++
	s.watchers[w.path] = append(s.watchers[w.path], w)

	for _, k := range sortedKeys(snapshot) {
		raw, err := json.Marshal(snapshot[k])
		if err != nil {
			continue
		}
		w.ch <- backend.Event{Type: backend.ChildAdded, Key: k, Value: raw}
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.detach(w)
	}()

	return w.ch, nil
}

func (s *Store) detach(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.watchers[w.path]
	for i, cur := range list {
		if cur.id == w.id {
			s.watchers[w.path] = append(list[:i], list[i+1:]...)
			close(w.ch)
			return
		}
	}
}

// WatcherCount возвращает число подписчиков пути (для тестов и эмулятора).
func (s *Store) WatcherCount(p string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[strings.Trim(p, "/")])
}
