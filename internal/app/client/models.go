package client

import (
	"fmt"
	"sort"
	"sync"

	"confsync/internal/domain/userdata"
)

// QueueStorage - локальное хранилище действий, записанных без
// соединения с бэкендом.
type QueueStorage interface {
	SavePending(action *userdata.PendingAction) error
	ListPending() ([]*userdata.PendingAction, error)
	DeletePending(id int64) error
	CountPending() (int, error)
	Close() error
}

// MemoryQueue - временная in-memory очередь на случай недоступности
// SQLite.
type MemoryQueue struct {
	mu      sync.Mutex
	actions map[int64]*userdata.PendingAction
	nextID  int64
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		actions: make(map[int64]*userdata.PendingAction),
		nextID:  1,
	}
}

func (m *MemoryQueue) SavePending(action *userdata.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	action.ID = m.nextID
	m.nextID++
	m.actions[action.ID] = action
	return nil
}

func (m *MemoryQueue) ListPending() ([]*userdata.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	actions := make([]*userdata.PendingAction, 0, len(m.actions))
	for _, action := range m.actions {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

func (m *MemoryQueue) DeletePending(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.actions[id]; !exists {
		return fmt.Errorf("действие не найдено: %d", id)
	}
	delete(m.actions, id)
	return nil
}

func (m *MemoryQueue) CountPending() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions), nil
}

func (m *MemoryQueue) Close() error {
	return nil
}
