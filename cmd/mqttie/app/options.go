package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/alfrunes/mqttie/v5/client"
	"github.com/alfrunes/mqttie/v5/transport"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MQTTIE"

// LogOptions configures the logrus output of the CLI.
type LogOptions struct {
	Level string `json:"level" mapstructure:"level" yaml:"level"`
	JSON  bool   `json:"json" mapstructure:"json" yaml:"json"`
}

// AddFlags adds flags for LogOptions to the specified FlagSet.
func (o *LogOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level,
		"Minimum log level (trace, debug, info, warn, error).")
	fs.BoolVar(&o.JSON, "log.json", o.JSON, "Log in JSON format.")
}

// Options holds the settings shared by all commands. Every field can be
// given as a flag, an MQTTIE_* environment variable or a config file key.
type Options struct {
	Broker   string `json:"broker" mapstructure:"broker" yaml:"broker"`
	ClientID string `json:"client-id" mapstructure:"client-id" yaml:"client-id"`
	Username string `json:"username" mapstructure:"username" yaml:"username"`
	Password string `json:"password" mapstructure:"password" yaml:"password"`

	KeepAlive      time.Duration `json:"keep-alive" mapstructure:"keep-alive" yaml:"keep-alive"`
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout" yaml:"connect-timeout"`
	MaxRate        float64       `json:"max-rate" mapstructure:"max-rate" yaml:"max-rate"`

	// InsecureSkipVerify disables verification of the server certificate.
	// This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify" yaml:"insecure-skip-verify"`

	// MetricsAddr serves prometheus metrics at /metrics when set.
	MetricsAddr string `json:"metrics-addr" mapstructure:"metrics-addr" yaml:"metrics-addr"`

	Log LogOptions `json:"log" mapstructure:"log" yaml:"log"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		Broker:         "mqtts://localhost:8883",
		KeepAlive:      client.DefaultKeepAlive,
		ConnectTimeout: 10 * time.Second,
		Log: LogOptions{
			Level: log.InfoLevel.String(),
		},
	}
}

// AddFlags adds flags for Options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Broker, "broker", o.Broker,
		"The URL of the MQTT server (mqtts://host:port or wss://host/path).")
	fs.StringVar(&o.ClientID, "client-id", o.ClientID,
		"Client identifier (default: random).")
	fs.StringVar(&o.Username, "username", o.Username,
		"The username for MQTT authentication.")
	fs.StringVar(&o.Password, "password", o.Password,
		"The password for MQTT authentication.")
	fs.DurationVar(&o.KeepAlive, "keep-alive", o.KeepAlive,
		"MQTT keep alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "connect-timeout", o.ConnectTimeout,
		"Timeout for establishing the MQTT session.")
	fs.Float64Var(&o.MaxRate, "max-rate", o.MaxRate,
		"Maximum number of packets sent per second (0 is unlimited).")
	fs.BoolVar(&o.InsecureSkipVerify, "insecure-skip-verify",
		o.InsecureSkipVerify,
		"If true, skips the TLS certificate verification.")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr,
		"Address to serve prometheus metrics on (disabled if empty).")
	o.Log.AddFlags(fs)
}

// Validate checks the options after they are loaded.
func (o *Options) Validate() []error {
	errs := []error{}
	if _, err := transport.ParseURL(o.Broker); err != nil {
		errs = append(errs, fmt.Errorf("invalid broker: %w", err))
	}
	if o.KeepAlive < 0 {
		errs = append(errs, fmt.Errorf("keep-alive must not be negative"))
	}
	if o.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect-timeout must be positive"))
	}
	if o.MaxRate < 0 {
		errs = append(errs, fmt.Errorf("max-rate must not be negative"))
	}
	if _, err := log.ParseLevel(o.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Load resolves the options from v, which must have the command's flags
// bound. Flags override environment variables, which override the config
// file.
func (o *Options) Load(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.Unmarshal(o); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if o.ClientID == "" {
		o.ClientID = "mqttie-" + uuid.NewV4().String()
	}
	if errs := o.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s",
			strings.Join(msgs, "; "))
	}
	return nil
}

// NewClient creates a client for the configured broker.
func (o *Options) NewClient(
	logger log.FieldLogger,
	metrics *client.Metrics,
	extra ...*client.ClientOptions,
) (*client.Client, error) {
	ep, err := transport.ParseURL(o.Broker)
	if err != nil {
		return nil, err
	}
	opts := client.NewClientOptions()
	opts.SetClientID(o.ClientID)
	opts.SetLogger(logger)
	opts.SetTransportConfig(&transport.Config{
		InsecureSkipVerify: o.InsecureSkipVerify,
		Path:               ep.Path,
		Logger:             logger,
	})
	if o.MaxRate > 0 {
		opts.SetMaxMessagesPerSecond(o.MaxRate)
	}
	if metrics != nil {
		opts.SetMetrics(metrics)
	}
	return client.NewClient(ep.Host, ep.Port, ep.Scheme,
		append([]*client.ClientOptions{opts}, extra...)...), nil
}

// ConnectOptions returns the connect request settings.
func (o *Options) ConnectOptions() *client.ConnectOptions {
	opts := client.NewConnectOptions()
	opts.SetClientID(o.ClientID)
	opts.SetKeepAlive(o.KeepAlive)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	opts.SetPassword(o.Password)
	return opts
}

// Redacted returns a copy safe for printing.
func (o *Options) Redacted() *Options {
	cpy := *o
	if cpy.Password != "" {
		cpy.Password = "******"
	}
	return &cpy
}
