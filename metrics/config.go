package metrics

import "github.com/ceyewan/ledger/xerrors"

// Config 指标配置
//
// 典型配置（YAML）：
//
//	metrics:
//	  enabled: true
//	  service_name: "ledger"
//	  version: "v0.3.0"
//	  port: 9090
//	  path: "/metrics"
//	  runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// ServiceName 作为 OTel Resource 的 service.name
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`

	// Version 作为 OTel Resource 的 service.version
	Version string `mapstructure:"version" json:"version" yaml:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务
	Port int `mapstructure:"port" json:"port" yaml:"port"`

	// Path Prometheus 抓取路径，默认 "/metrics"
	Path string `mapstructure:"path" json:"path" yaml:"path"`

	// Runtime 采集 Go 运行时指标（GC、内存、goroutine）
	Runtime bool `mapstructure:"runtime" json:"runtime" yaml:"runtime"`
}

// NewDevDefaultConfig 返回开发/测试环境配置：启用采集但不监听端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "ledger"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "metrics: invalid port %d", c.Port)
	}
	if c.Path[0] != '/' {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "metrics: path must start with '/': %s", c.Path)
	}
	return nil
}
