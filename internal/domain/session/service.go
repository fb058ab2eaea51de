package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Create(ctx context.Context, userID string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	ttl  time.Duration
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		ttl:  24 * time.Hour,
	}
}

// Create выпускает токен сессии для пользователя. Хранится только хэш.
func (s *Service) Create(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	tokenHash := sha256.Sum256([]byte(token))

	expiresAt := time.Now().Add(s.ttl)
	if err := s.repo.Create(ctx, userID, hex.EncodeToString(tokenHash[:]), expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return token, nil
}

// Validate возвращает пользователя действующего токена.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	tokenHash := sha256.Sum256([]byte(token))

	return s.repo.Validate(ctx, hex.EncodeToString(tokenHash[:]))
}
