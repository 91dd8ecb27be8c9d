package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	Addr             string
	DatabaseURL      string // empty keeps scores in memory
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	OutboxSize       int
	LogLevel         string
	LogDev           bool

	// client side
	ServerURL      string
	Codec          string
	ConnectTimeout time.Duration
}

func Defaults() Config {
	return Config{
		Addr:             ":5555",
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     3 * time.Second,
		PingInterval:     15 * time.Second,
		OutboxSize:       64,
		LogLevel:         "info",
		ServerURL:        "ws://localhost:5555/ws",
		Codec:            "json",
		ConnectTimeout:   5 * time.Second,
	}
}

// Load reads an optional .env file, then the environment. Variables that are
// unset keep their defaults; variables that are set but unparsable are errors.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	c := Defaults()
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v := getenv(key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}

	str("RELAY_ADDR", &c.Addr)
	str("DATABASE_URL", &c.DatabaseURL)
	dur("RELAY_HANDSHAKE_TIMEOUT", &c.HandshakeTimeout)
	dur("RELAY_WRITE_TIMEOUT", &c.WriteTimeout)
	dur("RELAY_PING_INTERVAL", &c.PingInterval)
	str("LOG_LEVEL", &c.LogLevel)
	str("RELAY_SERVER_URL", &c.ServerURL)
	str("RELAY_CODEC", &c.Codec)
	dur("RELAY_CONNECT_TIMEOUT", &c.ConnectTimeout)

	if v := getenv("RELAY_OUTBOX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("RELAY_OUTBOX_SIZE: invalid size %q", v))
		} else {
			c.OutboxSize = n
		}
	}
	if v := getenv("LOG_DEV"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_DEV: invalid bool %q", v))
		} else {
			c.LogDev = b
		}
	}
	if c.Codec != "json" && c.Codec != "msgpack" {
		errs = append(errs, fmt.Errorf("RELAY_CODEC: want json or msgpack, got %q", c.Codec))
	}

	if err := multierr.Combine(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}
