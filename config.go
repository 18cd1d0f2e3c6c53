package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type config struct {
	StorageConnStr string        `env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	TasksTable     string        `env:"TASKS_TABLE" env-default:"tarefas"`
	CommentsTable  string        `env:"COMMENTS_TABLE" env-default:"comments"`
	RedisConnStr   string        `env:"REDIS_CONNECTION_STRING" env-required:"true"`
	ChangesChannel string        `env:"TASK_CHANGES_CHANNEL" env-default:"task-changes"`
	TasksCacheTTL  time.Duration `env:"TASKS_CACHE_TTL" env-default:"5m"`
	DeduperTTL     time.Duration `env:"DEDUPER_TTL" env-default:"24h"`
	AuthAudience   string        `env:"AUTH_AUDIENCE"`
	AuthDomain     string        `env:"AUTH_DOMAIN"`
	Port           string        `env:"PORT" env-default:"8080"`
	Debug          bool          `env:"DEBUG" env-default:"false"`
}

func mustLoadConfig() config {
	// A .env file is optional; the environment always wins.
	_ = godotenv.Load()

	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
