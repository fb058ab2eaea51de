//эмулятор одного шарда базы данных реального времени;
//выдача сессионных токенов клиентам;
//чтение и запись пользовательских данных по пути;
//потоковая доставка дочерних событий подписчикам.

//POST  /auth/exchange        # Обмен access-токена на сессию (публичный)
//GET   /api/v1/health        # Проверка состояния (публичный)
//GET   /{path}.json          # Чтение узла или SSE-подписка (auth)
//PUT   /{path}.json          # Полная запись узла (auth)
//PATCH /{path}.json          # Merge-запись узла (auth)

package api

import (
	dataAPI "confsync/internal/app/emulator/api/http/data"
	healthAPI "confsync/internal/app/emulator/api/http/health"
	"confsync/internal/app/emulator/api/http/middleware"
	"confsync/internal/app/emulator/api/http/middleware/auth"
	"confsync/internal/app/emulator/api/http/middleware/logger"
	tokenAPI "confsync/internal/app/emulator/api/http/token"
	"confsync/internal/backend/memory"
	"confsync/internal/domain/session"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health *healthAPI.Handler
	Token  *tokenAPI.Handler
	Data   *dataAPI.Handler
}

// New создает *chi.Mux: служебные операции регистрируются через
// huma.Register, маршруты данных - напрямую в chi, потому что протокол
// базы использует произвольные пути и SSE.
func New(store *memory.Store, sessionService session.Servicer, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("ConfSync Shard Emulator", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(store, sessionService, log)
	h.Health.SetupRoutes(API)
	h.Token.SetupRoutes(API)

	authMW := auth.New(sessionService, log)
	mux.Group(func(r chi.Router) {
		r.Use(authMW.Middleware)
		h.Data.SetupRoutes(r)
	})

	return mux
}

func handlers(store *memory.Store, sessionService session.Servicer, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	tokenHandler := tokenAPI.NewHandler(sessionService, log, middlewares.GetAllAndClear())

	dataHandler := dataAPI.NewHandler(store, log)

	return &Handlers{
		Health: healthHandler,
		Token:  tokenHandler,
		Data:   dataHandler,
	}
}
