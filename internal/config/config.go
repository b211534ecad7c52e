package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	LogLevel string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env:"HTTP_PORT" env-default:"5000"`
	FlagPath string  `yaml:"flag-path" env:"FLAG_PATH" env-default:"/flag"`
	DHKE     DHKE    `yaml:"dhke"`
	Players  Players `yaml:"players"`
	Bot      Bot     `yaml:"bot"`
	Storage  Storage `yaml:"storage"`
	Redis    Redis   `yaml:"redis"`
}

type DHKE struct {
	PrimeBits int `yaml:"prime-bits" env:"DHKE_PRIME_BITS" env-default:"128"`
}

type Players struct {
	PlayerUsername string `yaml:"player-username" env:"PLAYER_USERNAME" env-default:"player"`
	PlayerPassword string `yaml:"player-password" env:"PLAYER_PASSWORD" env-default:"i_luv_t0_win"`
	BotUsername    string `yaml:"bot-username" env:"BOT_USERNAME" env-default:"mahaloz"`
}

type Bot struct {
	Disabled     bool          `yaml:"disabled" env:"BOT_DISABLED"`
	StartupDelay time.Duration `yaml:"startup-delay" env:"BOT_STARTUP_DELAY" env-default:"5s"`
	PollInterval time.Duration `yaml:"poll-interval" env:"BOT_POLL_INTERVAL" env-default:"1s"`
	ThinkDelay   time.Duration `yaml:"think-delay" env:"BOT_THINK_DELAY" env-default:"3s"`
	HandicapMove int           `yaml:"handicap-move" env:"BOT_HANDICAP_MOVE" env-default:"2"`
	ServerURL    string        `yaml:"server-url" env:"BOT_SERVER_URL" env-default:"http://127.0.0.1:5000"`
}

type Storage struct {
	Driver    string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	SecretTTL time.Duration `yaml:"secret-ttl" env:"STORAGE_SECRET_TTL" env-default:"0s"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// MustLoad reads an optional .env next to the process, then the YAML file at
// path. Environment variables override the file.
func MustLoad(path string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("unable to load .env file: %w", err))
	}

	config := &Config{}
	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if config.Storage.Driver != StorageMemory && config.Storage.Driver != StorageRedis {
		panic(fmt.Errorf("unknown storage driver %q", config.Storage.Driver))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
