package trace

import "github.com/ceyewan/ledger/xerrors"

// Config 链路追踪配置
//
//	trace:
//	  enabled: true
//	  service_name: ledger
//	  endpoint: localhost:4317
//	  sampler: 0.1
//	  batcher: batch
//	  insecure: true
type Config struct {
	// Enabled 为 false 时 Init 不替换全局 TracerProvider
	Enabled     bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Sampler     float64 `mapstructure:"sampler" json:"sampler" yaml:"sampler"`
	// Batcher batch|simple
	Batcher  string `mapstructure:"batcher" json:"batcher" yaml:"batcher"`
	Insecure bool   `mapstructure:"insecure" json:"insecure" yaml:"insecure"`
}

// DefaultConfig 返回指向本地 OTLP collector 的配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) validate() error {
	if c.ServiceName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: service_name is required")
	}
	if c.Endpoint == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: endpoint is required")
	}
	if c.Sampler < 0 || c.Sampler > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: sampler must be between 0 and 1, got %v", c.Sampler)
	}
	if c.Batcher != "" && c.Batcher != "batch" && c.Batcher != "simple" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: batcher must be \"batch\" or \"simple\", got %q", c.Batcher)
	}
	return nil
}
