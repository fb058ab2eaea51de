package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Credentials - сохраненные учетные данные пользователя для повторной
// аутентификации между запусками клиента.
type Credentials struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// SaveCredentials сохраняет учетные данные в файл токена с правами
// доступа только для владельца.
func (a *App) SaveCredentials(userID, accessToken string) error {
	raw, err := json.Marshal(Credentials{UserID: userID, AccessToken: accessToken})
	if err != nil {
		return fmt.Errorf("ошибка сериализации учетных данных: %w", err)
	}

	if dir := filepath.Dir(a.config.TokenPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("ошибка создания директории токена: %w", err)
		}
	}

	if err := os.WriteFile(a.config.TokenPath, raw, 0o600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	return nil
}

// LoadCredentials читает сохраненные учетные данные. Отсутствие файла
// не является ошибкой - возвращается nil.
func (a *App) LoadCredentials() (*Credentials, error) {
	raw, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения токена: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("ошибка разбора токена: %w", err)
	}
	if creds.UserID == "" || creds.AccessToken == "" {
		return nil, nil
	}
	return &creds, nil
}

// ClearCredentials удаляет сохраненные учетные данные.
func (a *App) ClearCredentials() error {
	if err := os.Remove(a.config.TokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	return nil
}
