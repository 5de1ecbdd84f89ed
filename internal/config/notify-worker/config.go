package notify_worker_config

import (
	"github.com/BiblioOps/Noticus/internal/obs"
	pginfra "github.com/BiblioOps/Noticus/internal/repository/postgres"
	"github.com/BiblioOps/Noticus/internal/services/deliverer"
)

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ServerCfg struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
	Ver    string `mapstructure:"ver"`
}

func (c LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: c.Level, Pretty: c.Pretty, App: "notify-worker", Env: c.Env, Ver: c.Ver}
}

type OTELCfg struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"otlp_endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func (c OTELCfg) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.Enable,
		Endpoint:    c.Endpoint,
		ServiceName: c.ServiceName,
		SampleRatio: c.SampleRatio,
	}
}

type Config struct {
	DB     pginfra.Config         `mapstructure:"db"`
	Kafka  KafkaCfg               `mapstructure:"kafka"`
	SMTP   deliverer.SMTPConfig   `mapstructure:"smtp"`
	Worker deliverer.RunnerConfig `mapstructure:"worker"`
	Server ServerCfg              `mapstructure:"server"`
	Log    LogCfg                 `mapstructure:"log"`
	OTEL   OTELCfg                `mapstructure:"otel"`
}
