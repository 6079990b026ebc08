// config предоставляет структуру конфигурации клиента и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация клиента.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	AuthAPI AuthAPIConfig `yaml:"auth_api"`
	WS      WSConfig      `yaml:"ws"`
	Session SessionConfig `yaml:"session"`
	Channel ChannelConfig `yaml:"channel"`
	Chat    ChatConfig    `yaml:"chat"`
	Store   StoreConfig   `yaml:"store"`
}

// AuthAPIConfig — адрес и таймаут auth-коллаборатора.
type AuthAPIConfig struct {
	BaseURL string        `yaml:"base_url" env:"AUTH_API_BASE_URL" env-default:"http://localhost:8000"`
	Timeout time.Duration `yaml:"timeout" env:"AUTH_API_TIMEOUT" env-default:"10s"`
}

// WSConfig — адрес realtime-эндпоинта.
type WSConfig struct {
	URL string `yaml:"url" env:"WS_URL" env-default:"ws://localhost:8000"`
}

// SessionConfig содержит параметры жизненного цикла сессии.
//
// RefreshThreshold — за сколько до истечения access-токена сессия считается
// подлежащей обновлению (контрактное значение 300s). CheckInterval — период
// фоновой проверки shouldRefresh (контрактное значение 5m).
type SessionConfig struct {
	RefreshThreshold time.Duration `yaml:"refresh_threshold" env:"REFRESH_THRESHOLD" env-default:"300s"`
	CheckInterval    time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL" env-default:"5m"`
	ProtectedRoutes  []string      `yaml:"protected_routes" env:"PROTECTED_ROUTES" env-default:"/dashboard,/profile,/settings,/messages,/notifications,/sessions,/booking,/learning,/stats,/achievements,/billing,/payment"`
	LoginPath        string        `yaml:"login_path" env:"LOGIN_PATH" env-default:"/auth/login"`
	HomePath         string        `yaml:"home_path" env:"HOME_PATH" env-default:"/dashboard"`
	LandingPath      string        `yaml:"landing_path" env:"LANDING_PATH" env-default:"/"`
}

// ChannelConfig — бюджет переподключений канала.
// Задержка перед попыткой N равна BaseDelay*N (линейный backoff).
type ChannelConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"CHANNEL_MAX_ATTEMPTS" env-default:"5"`
	BaseDelay   time.Duration `yaml:"base_delay" env:"CHANNEL_BASE_DELAY" env-default:"1s"`
}

// ChatConfig — параметры поведения диалога.
type ChatConfig struct {
	TypingWindow   time.Duration `yaml:"typing_window" env:"TYPING_WINDOW" env-default:"3s"`
	TypingThrottle time.Duration `yaml:"typing_throttle" env:"TYPING_THROTTLE" env-default:"1s"`
}

// StoreConfig — путь к локальному файлу хранилища сессии.
type StoreConfig struct {
	Path string `yaml:"path" env:"STORE_PATH" env-default:"mentorhub.db"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}

	return &cfg, nil
}
