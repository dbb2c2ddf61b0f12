package config

import (
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig

	databaseOnce   sync.Once
	databaseConfig *DatabaseConfig

	redisOnce   sync.Once
	redisConfig *RedisConfig

	storageOnce   sync.Once
	storageConfig *StorageConfig

	phraseOnce   sync.Once
	phraseConfig *PhraseScorerConfig

	natsOnce   sync.Once
	natsConfig *NATSConfig

	ollamaOnce   sync.Once
	ollamaConfig *OllamaConfig
)

type ServerConfig struct {
	Addr        string
	Mode        string
	LogLevel    string
	LogEncoding string
	// MaxFileSize is the per-file upload limit in bytes.
	MaxFileSize int64
	MaxFiles    int
	// Dispatch is "queue" (asynq) or "local" (in-process goroutine).
	Dispatch string
	// WatchInterval is the progress subscription poll period.
	WatchInterval time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Concurrency int
	TaskTimeout time.Duration
	StatusTTL   time.Duration
}

type StorageConfig struct {
	Type string
	Root string
}

type PhraseScorerConfig struct {
	Executable       string
	ScriptPath       string
	PythonScriptPath string
	PythonExecutable string
	Timeout          time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

type OllamaConfig struct {
	Enabled  bool
	Endpoint string
	Model    string
	Timeout  time.Duration
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()
		serverConfig = &ServerConfig{
			Addr:          getEnv("SERVER_ADDR", ":8080"),
			Mode:          getEnv("GIN_MODE", "release"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			LogEncoding:   getEnv("LOG_ENCODING", "json"),
			MaxFileSize:   getEnvInt64("UPLOAD_MAX_FILE_SIZE", 50*1024*1024),
			MaxFiles:      getEnvInt("UPLOAD_MAX_FILES", 50),
			Dispatch:      getEnv("SCAN_DISPATCH", "queue"),
			WatchInterval: getEnvDuration("SCAN_WATCH_INTERVAL", 2*time.Second),
		}
	})
	return serverConfig
}

func GetDatabaseConfig() *DatabaseConfig {
	databaseOnce.Do(func() {
		loadEnv()
		databaseConfig = &DatabaseConfig{
			Driver:          getEnv("DATABASE_DRIVER", "postgres"),
			DSN:             getEnv("DATABASE_URL", "host=localhost user=sitbuilder password=sitbuilder dbname=sitbuilder port=5432 sslmode=disable"),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),
			AutoMigrate:     getEnvBool("DATABASE_AUTO_MIGRATE", true),
		}
	})
	return databaseConfig
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()
		redisConfig = &RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
			TaskTimeout: getEnvDuration("SCAN_TASK_TIMEOUT", 2*time.Hour),
			StatusTTL:   getEnvDuration("SCAN_STATUS_TTL", 24*time.Hour),
		}
	})
	return redisConfig
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()
		storageConfig = &StorageConfig{
			Type: getEnv("STORAGE_TYPE", "local"),
			Root: getEnv("STORAGE_ROOT", "data"),
		}
	})
	return storageConfig
}

func GetPhraseScorerConfig() *PhraseScorerConfig {
	phraseOnce.Do(func() {
		loadEnv()
		phraseConfig = &PhraseScorerConfig{
			Executable:       getEnv("PHRASE_SCORER_EXECUTABLE", "pwsh"),
			ScriptPath:       getEnv("PHRASE_SCORER_SCRIPT", "scripts/textExtraction.ps1"),
			PythonScriptPath: getEnv("PHRASE_SCORER_PYTHON_SCRIPT", "scripts/keyword_extraction.py"),
			PythonExecutable: getEnv("PHRASE_SCORER_PYTHON", "python3"),
			Timeout:          getEnvDuration("PHRASE_SCORER_TIMEOUT", 10*time.Minute),
		}
	})
	return phraseConfig
}

func GetNATSConfig() *NATSConfig {
	natsOnce.Do(func() {
		loadEnv()
		natsConfig = &NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "EVENTS"),
		}
	})
	return natsConfig
}

func GetOllamaConfig() *OllamaConfig {
	ollamaOnce.Do(func() {
		loadEnv()
		ollamaConfig = &OllamaConfig{
			Enabled:  getEnvBool("OLLAMA_ENABLED", false),
			Endpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			Model:    getEnv("OLLAMA_MODEL", "llama3.2"),
			Timeout:  getEnvDuration("OLLAMA_TIMEOUT", 60*time.Second),
		}
	})
	return ollamaConfig
}
