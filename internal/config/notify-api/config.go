package notify_api_config

import (
	"time"

	"github.com/BiblioOps/Noticus/internal/obs"
	pginfra "github.com/BiblioOps/Noticus/internal/repository/postgres"
	"github.com/BiblioOps/Noticus/internal/services/deliverer"
	"github.com/BiblioOps/Noticus/internal/services/scheduler"
)

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type HTTPCfg struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type SchedCfg struct {
	Env            string        `mapstructure:"env"`
	CronSecretHash string        `mapstructure:"cron_secret_hash"`
	ReminderWindow time.Duration `mapstructure:"reminder_window"`
	Org            scheduler.Org `mapstructure:"org"`
}

type HandoffCfg struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type WorkerCfg struct {
	DrainLimit int `mapstructure:"drain_limit"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
	Ver    string `mapstructure:"ver"`
}

func (c LogCfg) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{Level: c.Level, Pretty: c.Pretty, App: "notify-api", Env: c.Env, Ver: c.Ver}
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
	DB      pginfra.Config       `mapstructure:"db"`
	Kafka   KafkaCfg             `mapstructure:"kafka"`
	SMTP    deliverer.SMTPConfig `mapstructure:"smtp"`
	HTTP    HTTPCfg              `mapstructure:"http"`
	Sched   SchedCfg             `mapstructure:"sched"`
	Handoff HandoffCfg           `mapstructure:"handoff"`
	Worker  WorkerCfg            `mapstructure:"worker"`
	Log     LogCfg               `mapstructure:"log"`
	OTEL    OTELCfg              `mapstructure:"otel"`
}
