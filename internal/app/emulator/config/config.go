package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	Server server
	Shard  shard
	Logger logger
}

type defaultConfig struct {
	RunAddress  string
	ClockOffset int64
	LogLevel    string
	Env         string
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type shard struct {
	// ClockOffset - смещение "серверных" часов эмулятора в миллисекундах;
	// ненулевое значение удобно для проверки пересчета локального времени.
	ClockOffset int64 `env:"CLOCK_OFFSET_MS"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	viper.AutomaticEnv()
	viper.SetDefault("RUN_ADDRESS", "localhost:9000")

	d := defaultConfig{
		RunAddress:  viper.GetString("run_address"),
		ClockOffset: viper.GetInt64("clock_offset_ms"),
		LogLevel:    viper.GetString("log_level"),
		Env:         viper.GetString("app_env"),
	}

	config := Config{
		Env:    d.Env,
		Server: server{RunAddress: d.RunAddress},
		Shard:  shard{ClockOffset: d.ClockOffset},
		Logger: logger{LogLevel: d.LogLevel},
	}

	return &config
}
