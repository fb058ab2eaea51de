package main

import (
	"net/http"
	"os"

	"confsync/internal/app/emulator/api"
	"confsync/internal/app/emulator/config"
	"confsync/internal/backend/memory"
	"confsync/internal/domain/session"
	"confsync/internal/utils/logger"
)

func main() {
	conf := config.MustLoad()
	log := logger.New(conf.Env)

	store := memory.NewStore(memory.WithOffset(conf.Shard.ClockOffset))

	sessionRepo := session.NewRepo()
	sessionService := session.NewService(sessionRepo, log)

	router := api.New(store, sessionService, log)

	log.Info("Запуск эмулятора шарда", "address", conf.Server.RunAddress, "clock_offset_ms", conf.Shard.ClockOffset)

	if err := http.ListenAndServe(conf.Server.RunAddress, router); err != nil {
		log.Error("Ошибка запуска сервера", "error", err)
		os.Exit(1)
	}
}
