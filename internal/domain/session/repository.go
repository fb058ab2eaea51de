package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Repository interface {
	Create(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string) (string, error)
}

// NewRepo создает in-memory репозиторий сессий. Эмулятор не переживает
// перезапуск, поэтому ничего долговечнее и не нужно.
func NewRepo() Repository {
	return &repository{
		sessions: make(map[string]entry),
	}
}

type entry struct {
	userID    string
	expiresAt time.Time
}

type repository struct {
	mu       sync.RWMutex
	sessions map[string]entry
}

func (r *repository) Create(_ context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[tokenHash] = entry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *repository) Validate(_ context.Context, tokenHash string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[tokenHash]
	if !ok || time.Now().After(e.expiresAt) {
		return "", fmt.Errorf("invalid session")
	}
	return e.userID, nil
}
