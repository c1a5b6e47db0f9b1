// Package config reads the command line client settings from flags,
// environment variables (RPCCLIENT_*) and .env files, in that order of
// precedence, and turns them into client options.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rpcclient/client"
	"rpcclient/codec"
	"rpcclient/middleware"
	"rpcclient/rpcerr"
	"rpcclient/transport"
)

// EnvPrefix prefixes every environment variable read by the client.
const EnvPrefix = "rpcclient"

const (
	KeyEndpoint  = "endpoint"
	KeyProtocol  = "protocol"
	KeyEncoding  = "encoding"
	KeyKey       = "key"
	KeyTimeout   = "timeout"
	KeyLogLevel  = "log-level"
	KeyHeader    = "header"
	KeyProxy     = "proxy"
	KeyRateLimit = "rate-limit"
	KeyRateBurst = "rate-burst"
	KeyMetrics   = "metrics"
)

// Config is the resolved client configuration.
type Config struct {
	Endpoint  string
	Protocol  codec.Protocol
	Encoding  string
	Key       string
	Timeout   time.Duration
	LogLevel  zapcore.Level
	Headers   map[string]string
	Proxy     string
	RateLimit float64 // exchanges per second, 0 disables
	RateBurst int
	Metrics   bool
}

// SetupFlags adds the connection flags to cmd.
func SetupFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String(KeyEndpoint, "", "URL of the RPC server")
	f.String(KeyProtocol, "xml", "RPC protocol (xml, json)")
	f.String(KeyEncoding, codec.DefaultEncoding, "character encoding of XML-RPC payloads")
	f.String(KeyKey, "", "shared key enabling the encrypted envelope")
	f.Duration(KeyTimeout, 30*time.Second, "timeout of one exchange")
	f.String(KeyLogLevel, "warn", "log level (debug, info, warn, error)")
	f.StringToString(KeyHeader, nil, "extra HTTP header, as name=value (repeatable)")
	f.String(KeyProxy, "", "HTTP proxy URL")
	f.Float64(KeyRateLimit, 0, "maximum exchanges per second, 0 for no limit")
	f.Int(KeyRateBurst, 1, "burst size of the rate limit")
	f.Bool(KeyMetrics, false, "print exchange metrics to stderr on exit")
}

// LoadEnvFiles loads .env and .env.local when present. Variables already set
// in the environment win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// New returns a viper instance reading RPCCLIENT_* variables and bound to the
// flags of cmd.
func New(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

// Load resolves and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	const op = "config.Load"

	endpoint := v.GetString(KeyEndpoint)
	if endpoint == "" {
		return nil, rpcerr.New(op, rpcerr.InvalidArgument, "no endpoint configured, use --endpoint or RPCCLIENT_ENDPOINT")
	}
	proto, err := codec.ParseProtocol(v.GetString(KeyProtocol))
	if err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.InvalidArgument, err, "invalid log level")
	}
	timeout := v.GetDuration(KeyTimeout)
	if timeout < 0 {
		return nil, rpcerr.Errorf(op, rpcerr.InvalidArgument, "negative timeout %s", timeout)
	}

	return &Config{
		Endpoint:  endpoint,
		Protocol:  proto,
		Encoding:  v.GetString(KeyEncoding),
		Key:       v.GetString(KeyKey),
		Timeout:   timeout,
		LogLevel:  level,
		Headers:   v.GetStringMapString(KeyHeader),
		Proxy:     v.GetString(KeyProxy),
		RateLimit: v.GetFloat64(KeyRateLimit),
		RateBurst: v.GetInt(KeyRateBurst),
		Metrics:   v.GetBool(KeyMetrics),
	}, nil
}

// NewLogger builds a console logger writing to stderr at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	zc.DisableStacktrace = true
	return zc.Build()
}

// ClientOptions translates the configuration into client options.
func (c *Config) ClientOptions(logger *zap.Logger) []client.Option {
	var (
		httpOpts []transport.Option
		mws      = []middleware.Middleware{middleware.LoggingMiddleware(logger)}
	)
	if c.Timeout > 0 {
		httpOpts = append(httpOpts, transport.WithTimeout(c.Timeout))
	}
	for name, value := range c.Headers {
		httpOpts = append(httpOpts, transport.WithHeader(name, value))
	}
	if c.Proxy != "" {
		httpOpts = append(httpOpts, transport.WithProxy(c.Proxy))
	}
	if c.Metrics {
		mws = append(mws, middleware.MetricsMiddleware(nil, "rpcclient"))
	}
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst < 1 {
			burst = 1
		}
		mws = append(mws, middleware.RateLimitMiddleware(c.RateLimit, burst))
	}
	httpOpts = append(httpOpts, transport.WithMiddleware(mws...))

	opts := []client.Option{
		client.WithProtocol(c.Protocol),
		client.WithEncoding(c.Encoding),
		client.WithLogger(logger.Sugar()),
		client.WithHTTPOptions(httpOpts...),
	}
	if c.Key != "" {
		opts = append(opts, client.WithEncryption(c.Key))
	}
	return opts
}
