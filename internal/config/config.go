// Package config loads and validates the broker's configuration surface,
// grounded on the defaults enumerated in the broker's external interfaces,
// using gopkg.in/yaml.v3 for the on-disk format as the teacher's go.mod
// already pulls in.
package config

import (
	"os"
	"time"

	"github.com/edgebroker/goqttd/internal/xerror"
	"gopkg.in/yaml.v3"
)

// Config is the full broker configuration surface.
type Config struct {
	BindAddr string `yaml:"bind_addr"`
	Port     int    `yaml:"port"`
	Backlog  int    `yaml:"backlog"`

	MaxClients                int `yaml:"max_clients"`
	MaxSubscriptionsPerClient int `yaml:"max_subscriptions_per_client"`
	MaxTopicLength            int `yaml:"max_topic_length"`
	MaxTopicLevels            int `yaml:"max_topic_levels"`
	MaxPayloadSize            int `yaml:"max_payload_size"`
	MaxPacketSize             int `yaml:"max_packet_size"`
	MaxQueuedMessages         int `yaml:"max_queued_messages"`
	MaxInflight               int `yaml:"max_inflight"`
	MaxRetainedMessages       int `yaml:"max_retained_messages"`

	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	KeepAliveFactor    float64       `yaml:"keep_alive_factor"`
	QoSRetryInterval   time.Duration `yaml:"qos_retry_interval"`
	QoSMaxRetries      int           `yaml:"qos_max_retries"`
	NoKeepaliveTimeout time.Duration `yaml:"no_keepalive_timeout"`
	SessionExpiry      time.Duration `yaml:"session_expiry"`

	AllowAnonymous         bool `yaml:"allow_anonymous"`
	AllowZeroLengthClientID bool `yaml:"allow_zero_length_clientid"`
	RetainEnabled          bool `yaml:"retain_enabled"`
	QoS2Enabled            bool `yaml:"qos2_enabled"`
	SysTopicsEnabled       bool `yaml:"sys_topics_enabled"`

	StatsInterval  time.Duration `yaml:"stats_interval"`
	RecvBufferSize int           `yaml:"recv_buffer_size"`
	LogLevel       string        `yaml:"log_level"`
}

// yamlShape mirrors Config but with duration fields as strings, since
// yaml.v3 decodes scalars into time.Duration as raw nanoseconds rather than
// parsing "10s"-style values.
type yamlShape struct {
	BindAddr string `yaml:"bind_addr"`
	Port     int    `yaml:"port"`
	Backlog  int    `yaml:"backlog"`

	MaxClients                int `yaml:"max_clients"`
	MaxSubscriptionsPerClient int `yaml:"max_subscriptions_per_client"`
	MaxTopicLength            int `yaml:"max_topic_length"`
	MaxTopicLevels            int `yaml:"max_topic_levels"`
	MaxPayloadSize            int `yaml:"max_payload_size"`
	MaxPacketSize             int `yaml:"max_packet_size"`
	MaxQueuedMessages         int `yaml:"max_queued_messages"`
	MaxInflight               int `yaml:"max_inflight"`
	MaxRetainedMessages       int `yaml:"max_retained_messages"`

	ConnectTimeout     string  `yaml:"connect_timeout"`
	KeepAliveFactor    float64 `yaml:"keep_alive_factor"`
	QoSRetryInterval   string  `yaml:"qos_retry_interval"`
	QoSMaxRetries      int     `yaml:"qos_max_retries"`
	NoKeepaliveTimeout string  `yaml:"no_keepalive_timeout"`
	SessionExpiry      string  `yaml:"session_expiry"`

	AllowAnonymous          bool `yaml:"allow_anonymous"`
	AllowZeroLengthClientID bool `yaml:"allow_zero_length_clientid"`
	RetainEnabled           bool `yaml:"retain_enabled"`
	QoS2Enabled             bool `yaml:"qos2_enabled"`
	SysTopicsEnabled        bool `yaml:"sys_topics_enabled"`

	StatsInterval  string `yaml:"stats_interval"`
	RecvBufferSize int    `yaml:"recv_buffer_size"`
	LogLevel       string `yaml:"log_level"`
}

// UnmarshalYAML decodes duration fields as "10s"-style strings, leaving
// fields absent from the document untouched so Load's Default() baseline
// survives partial config files.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	shape := yamlShape{
		BindAddr: c.BindAddr, Port: c.Port, Backlog: c.Backlog,
		MaxClients: c.MaxClients, MaxSubscriptionsPerClient: c.MaxSubscriptionsPerClient,
		MaxTopicLength: c.MaxTopicLength, MaxTopicLevels: c.MaxTopicLevels,
		MaxPayloadSize: c.MaxPayloadSize, MaxPacketSize: c.MaxPacketSize,
		MaxQueuedMessages: c.MaxQueuedMessages, MaxInflight: c.MaxInflight,
		MaxRetainedMessages: c.MaxRetainedMessages,
		ConnectTimeout:      c.ConnectTimeout.String(), KeepAliveFactor: c.KeepAliveFactor,
		QoSRetryInterval: c.QoSRetryInterval.String(), QoSMaxRetries: c.QoSMaxRetries,
		NoKeepaliveTimeout: c.NoKeepaliveTimeout.String(), SessionExpiry: c.SessionExpiry.String(),
		AllowAnonymous: c.AllowAnonymous, AllowZeroLengthClientID: c.AllowZeroLengthClientID,
		RetainEnabled: c.RetainEnabled, QoS2Enabled: c.QoS2Enabled, SysTopicsEnabled: c.SysTopicsEnabled,
		StatsInterval: c.StatsInterval.String(), RecvBufferSize: c.RecvBufferSize, LogLevel: c.LogLevel,
	}
	if err := unmarshal(&shape); err != nil {
		return err
	}

	connectTimeout, err := time.ParseDuration(shape.ConnectTimeout)
	if err != nil {
		return &xerror.Err{Context: "config connect_timeout", Message: xerror.ErrOutOfRange}
	}
	qosRetryInterval, err := time.ParseDuration(shape.QoSRetryInterval)
	if err != nil {
		return &xerror.Err{Context: "config qos_retry_interval", Message: xerror.ErrOutOfRange}
	}
	noKeepaliveTimeout, err := time.ParseDuration(shape.NoKeepaliveTimeout)
	if err != nil {
		return &xerror.Err{Context: "config no_keepalive_timeout", Message: xerror.ErrOutOfRange}
	}
	sessionExpiry, err := time.ParseDuration(shape.SessionExpiry)
	if err != nil {
		return &xerror.Err{Context: "config session_expiry", Message: xerror.ErrOutOfRange}
	}
	statsInterval, err := time.ParseDuration(shape.StatsInterval)
	if err != nil {
		return &xerror.Err{Context: "config stats_interval", Message: xerror.ErrOutOfRange}
	}

	*c = Config{
		BindAddr: shape.BindAddr, Port: shape.Port, Backlog: shape.Backlog,
		MaxClients: shape.MaxClients, MaxSubscriptionsPerClient: shape.MaxSubscriptionsPerClient,
		MaxTopicLength: shape.MaxTopicLength, MaxTopicLevels: shape.MaxTopicLevels,
		MaxPayloadSize: shape.MaxPayloadSize, MaxPacketSize: shape.MaxPacketSize,
		MaxQueuedMessages: shape.MaxQueuedMessages, MaxInflight: shape.MaxInflight,
		MaxRetainedMessages: shape.MaxRetainedMessages,
		ConnectTimeout:      connectTimeout, KeepAliveFactor: shape.KeepAliveFactor,
		QoSRetryInterval: qosRetryInterval, QoSMaxRetries: shape.QoSMaxRetries,
		NoKeepaliveTimeout: noKeepaliveTimeout, SessionExpiry: sessionExpiry,
		AllowAnonymous: shape.AllowAnonymous, AllowZeroLengthClientID: shape.AllowZeroLengthClientID,
		RetainEnabled: shape.RetainEnabled, QoS2Enabled: shape.QoS2Enabled, SysTopicsEnabled: shape.SysTopicsEnabled,
		StatsInterval: statsInterval, RecvBufferSize: shape.RecvBufferSize, LogLevel: shape.LogLevel,
	}
	return nil
}

// Default returns the configuration surface's documented defaults.
func Default() *Config {
	return &Config{
		BindAddr:                 "0.0.0.0",
		Port:                     1883,
		Backlog:                  4,
		MaxClients:               10,
		MaxSubscriptionsPerClient: 20,
		MaxTopicLength:           256,
		MaxTopicLevels:           8,
		MaxPayloadSize:           4096,
		MaxPacketSize:            8192,
		MaxQueuedMessages:        50,
		MaxInflight:              10,
		MaxRetainedMessages:      100,
		ConnectTimeout:           10 * time.Second,
		KeepAliveFactor:          1.5,
		QoSRetryInterval:         10 * time.Second,
		QoSMaxRetries:            3,
		NoKeepaliveTimeout:       3600 * time.Second,
		SessionExpiry:            3600 * time.Second,
		AllowAnonymous:           true,
		AllowZeroLengthClientID:  true,
		RetainEnabled:            true,
		QoS2Enabled:              true,
		SysTopicsEnabled:         true,
		StatsInterval:            60 * time.Second,
		RecvBufferSize:           1024,
		LogLevel:                 "INFO",
	}
}

// Load reads a YAML file at path, merging it over Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks every numeric field, per spec: "All numeric values
// validated on startup; out-of-range raises a configuration error."
func (c *Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
	}{
		{c.Port > 0 && c.Port <= 65535, "port"},
		{c.Backlog > 0, "backlog"},
		{c.MaxClients > 0, "max_clients"},
		{c.MaxSubscriptionsPerClient > 0, "max_subscriptions_per_client"},
		{c.MaxTopicLength > 0, "max_topic_length"},
		{c.MaxTopicLevels > 0, "max_topic_levels"},
		{c.MaxPayloadSize > 0, "max_payload_size"},
		{c.MaxPacketSize > 0 && c.MaxPacketSize >= c.MaxPayloadSize, "max_packet_size"},
		{c.MaxQueuedMessages > 0, "max_queued_messages"},
		{c.MaxInflight > 0 && c.MaxInflight <= 65535, "max_inflight"},
		{c.MaxRetainedMessages > 0, "max_retained_messages"},
		{c.ConnectTimeout > 0, "connect_timeout"},
		{c.KeepAliveFactor > 0, "keep_alive_factor"},
		{c.QoSRetryInterval > 0, "qos_retry_interval"},
		{c.QoSMaxRetries >= 0, "qos_max_retries"},
		{c.NoKeepaliveTimeout > 0, "no_keepalive_timeout"},
		{c.SessionExpiry >= 0, "session_expiry"},
		{c.StatsInterval > 0, "stats_interval"},
		{c.RecvBufferSize > 0, "recv_buffer_size"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &xerror.Err{Context: "config " + chk.name, Message: xerror.ErrOutOfRange}
		}
	}
	return nil
}
