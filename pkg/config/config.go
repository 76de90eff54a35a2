package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Server struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"3000"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[settlement]"`
}

type DB struct {
	// Driver is memory or postgres.
	Driver          string        `envconfig:"DRIVER" default:"memory"`
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	Migrate         bool          `envconfig:"MIGRATE" default:"true"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"settlement:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Hub struct {
	// Transport is memory, http, redis or kafka.
	Transport   string        `envconfig:"TRANSPORT" default:"memory"`
	Source      string        `envconfig:"SOURCE" default:"settlement-service"`
	URL         string        `envconfig:"URL"`
	PublishPath string        `envconfig:"PUBLISH_PATH" default:"/hub/publish"`
	ApiKey      string        `envconfig:"API_KEY"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`

	InboundStream  string `envconfig:"INBOUND_STREAM" default:"hub.settlement.in"`
	OutboundStream string `envconfig:"OUTBOUND_STREAM" default:"hub.settlement.out"`
	Group          string `envconfig:"GROUP" default:"settlement"`

	Brokers       string `envconfig:"BROKERS" default:"localhost:9092"`
	InboundTopic  string `envconfig:"INBOUND_TOPIC" default:"hub.settlement.in"`
	OutboundTopic string `envconfig:"OUTBOUND_TOPIC" default:"hub.settlement.out"`
}

type Settlement struct {
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"20s"`
	Deadline          time.Duration `envconfig:"DEADLINE" default:"60s"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReconcileGrace    time.Duration `envconfig:"RECONCILE_GRACE" default:"10m"`
	ReconcileBatch    int           `envconfig:"RECONCILE_BATCH" default:"100"`

	// CryptoRate is the fiat price of one crypto unit when RateURL is unset.
	CryptoRate  decimal.Decimal `envconfig:"CRYPTO_RATE" default:"1"`
	RateURL     string          `envconfig:"RATE_URL"`
	RateApiKey  string          `envconfig:"RATE_API_KEY"`
	RateTTL     time.Duration   `envconfig:"RATE_TTL" default:"1m"`
	RateTimeout time.Duration   `envconfig:"RATE_TIMEOUT" default:"5s"`
	// RateCache is memory or redis.
	RateCache string `envconfig:"RATE_CACHE" default:"memory"`
}

type Chain struct {
	// Driver is simulated or ethereum.
	Driver         string        `envconfig:"DRIVER" default:"simulated"`
	RPCURL         string        `envconfig:"RPC_URL"`
	ChainID        int64         `envconfig:"CHAIN_ID" default:"1337"`
	Contract       string        `envconfig:"CONTRACT"`
	PrivateKey     string        `envconfig:"PRIVATE_KEY"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	SimulatedDelay time.Duration `envconfig:"SIMULATED_DELAY" default:"2s"`
	SimulatedMode  string        `envconfig:"SIMULATED_MODE" default:"success"`
}

type Lock struct {
	// Driver is memory or redis.
	Driver string        `envconfig:"DRIVER" default:"memory"`
	TTL    time.Duration `envconfig:"TTL" default:"30s"`
	Prefix string        `envconfig:"PREFIX" default:"settlement:lock:"`
}

type Idempotency struct {
	Enabled       bool          `envconfig:"ENABLED" default:"true"`
	TTL           time.Duration `envconfig:"TTL" default:"24h"`
	PruneInterval time.Duration `envconfig:"PRUNE_INTERVAL" default:"10m"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	Server      *Server      `envconfig:"SERVER"`
	Log         *Log         `envconfig:"LOG"`
	DB          *DB          `envconfig:"DATABASE"`
	Redis       *Redis       `envconfig:"REDIS"`
	RateLimit   *RateLimit   `envconfig:"RATE_LIMIT"`
	Hub         *Hub         `envconfig:"HUB"`
	Settlement  *Settlement  `envconfig:"SETTLEMENT"`
	Chain       *Chain       `envconfig:"CHAIN"`
	Lock        *Lock        `envconfig:"LOCK"`
	Idempotency *Idempotency `envconfig:"IDEMPOTENCY"`
}
