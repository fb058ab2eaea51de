package token

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"confsync/internal/domain/session"
)

type Handler struct {
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.exchangeOp(), h.exchange)
}

// exchange выдает сессионный токен для пользователя. Эмулятор не
// проверяет подлинность access_token - любой непустой токен считается
// валидным, как это делает эмулятор Firebase.
func (h *Handler) exchange(ctx context.Context, input *exchangeInput) (*exchangeOutput, error) {
	if input.Body.UserID == "" || input.Body.AccessToken == "" {
		return &exchangeOutput{
			Body: ExchangeResponse{Status: "Error", Error: "user_id and access_token are required"},
		}, nil
	}

	sessionToken, err := h.session.Create(ctx, input.Body.UserID)
	if err != nil {
		h.log.Error("Ошибка создания сессии", "error", err)
		return &exchangeOutput{
			Body: ExchangeResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	h.log.Debug("Выдан сессионный токен", "user_id", input.Body.UserID)

	return &exchangeOutput{
		Body: ExchangeResponse{Token: sessionToken, Status: "Ok"},
	}, nil
}
