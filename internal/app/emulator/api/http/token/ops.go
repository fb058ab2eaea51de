package token

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) exchangeOp() huma.Operation {
	return huma.Operation{
		OperationID: "token-exchange",
		Method:      http.MethodPost,
		Path:        "/auth/exchange",
		Summary:     "Обмен access-токена на сессионный токен",
		Tags:        []string{"auth"},
		Middlewares: h.middleware,
	}
}
