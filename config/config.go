package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Configs struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`

	Database DatabaseConfigs `toml:"database"`
	Scylla   ScyllaConfigs   `toml:"scylla"`
	Server   ServerConfigs   `toml:"server"`
	Metrics  ServerConfigs   `toml:"metrics"`
	Auth     AuthConfigs     `toml:"auth"`
	Session  SessionConfigs  `toml:"session"`
	Redis    RedisConfigs    `toml:"redis"`
	Kafka    KafkaConfigs    `toml:"kafka"`
	Storage  StorageConfigs  `toml:"storage"`
	Chat     ChatConfigs     `toml:"chat"`
}

// Duration lets TOML files write durations as "30s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type DatabaseConfigs struct {
	// Driver is either "mysql" or "sqlite".
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	File     string `toml:"file"`
}

func (d DatabaseConfigs) ConnectionString() string {
	if d.Driver == "sqlite" {
		return d.File
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type ScyllaConfigs struct {
	Addrs    []string `toml:"addrs"`
	KeySpace string   `toml:"keyspace"`
}

type ServerConfigs struct {
	Host        string   `toml:"host"`
	Port        string   `toml:"port"`
	Cert        string   `toml:"cert"`
	Key         string   `toml:"key"`
	AllowOrigin []string `toml:"allow_origin"`
}

func (c ServerConfigs) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type AuthConfigs struct {
	TokenSecret string       `toml:"token_secret"`
	AccessToken TokenConfigs `toml:"access_token"`
}

type TokenConfigs struct {
	Name       string   `toml:"name"`
	Expiration Duration `toml:"expiration"`
}

type SessionConfigs struct {
	Name   string `toml:"name"`
	Secret string `toml:"secret"`
}

type RedisConfigs struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type KafkaConfigs struct {
	Addr  string `toml:"addr"`
	Topic string `toml:"topic"`
}

func (c KafkaConfigs) Brokers() []string {
	return strings.Split(c.Addr, ",")
}

type StorageConfigs struct {
	Endpoint    string `toml:"endpoint"`
	Region      string `toml:"region"`
	AccessKey   string `toml:"access_key"`
	SecretKey   string `toml:"secret_key"`
	Bucket      string `toml:"bucket"`
	SSLDisabled bool   `toml:"ssl_disabled"`
}

func (c StorageConfigs) Enabled() bool {
	return c.Bucket != ""
}

type ChatConfigs struct {
	// NodeID identifies this process in snowflake ids and in presence
	// bookkeeping. It must be unique per running node.
	NodeID int64 `toml:"node_id"`

	// Presence is "memory" or "redis".
	Presence string `toml:"presence"`

	// Broadcaster is "local", "redis" or "kafka".
	Broadcaster string `toml:"broadcaster"`

	// MessageStore is "sql" or "scylla".
	MessageStore string `toml:"message_store"`

	CompressBus bool `toml:"compress_bus"`

	MaxContentLength    int `toml:"max_content_length"`
	DefaultHistoryLimit int `toml:"default_history_limit"`
	MaxHistoryLimit     int `toml:"max_history_limit"`

	SessionBufferSize  int      `toml:"session_buffer_size"`
	HubBufferSize      int      `toml:"hub_buffer_size"`
	HubCleanupInterval Duration `toml:"hub_cleanup_interval"`

	PresenceHeartbeat Duration `toml:"presence_heartbeat"`

	PingInterval Duration `toml:"ping_interval"`
	WriteTimeout Duration `toml:"write_timeout"`
}

func Default() Configs {
	return Configs{
		Env:      "local",
		LogLevel: "info",
		Database: DatabaseConfigs{
			Driver: "sqlite",
			File:   "coursechat.db",
		},
		Server: ServerConfigs{
			Host: "",
			Port: "8080",
		},
		// An empty port disables the metrics server.
		Metrics: ServerConfigs{
			Port: "",
		},
		Auth: AuthConfigs{
			AccessToken: TokenConfigs{
				Name:       "access_token",
				Expiration: Duration{5 * time.Minute},
			},
		},
		Session: SessionConfigs{
			Name: "coursechat_session",
		},
		Redis: RedisConfigs{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfigs{
			Addr:  "localhost:9092",
			Topic: "chat.room.events",
		},
		Chat: ChatConfigs{
			NodeID:              1,
			Presence:            "memory",
			Broadcaster:         "local",
			MessageStore:        "sql",
			MaxContentLength:    4000,
			DefaultHistoryLimit: 50,
			MaxHistoryLimit:     200,
			SessionBufferSize:   256,
			HubBufferSize:       1024,
			HubCleanupInterval:  Duration{time.Minute},
			PresenceHeartbeat:   Duration{30 * time.Second},
			PingInterval:        Duration{30 * time.Second},
			WriteTimeout:        Duration{10 * time.Second},
		},
	}
}

// Load reads the TOML file at path on top of the default configuration. An
// empty path returns the defaults.
func Load(path string) (Configs, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Configs{}, fmt.Errorf("cannot decode config file %s: %w", path, err)
	}

	return cfg, nil
}
