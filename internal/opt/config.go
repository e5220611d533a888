package opt

import (
	"github.com/spf13/viper"
)

const (
	ModuleName = "rxgo_demo"

	OptionDebug          = "debug"
	OptionCount          = "count"
	OptionStart          = "start"
	OptionWorkers        = "workers"
	OptionMetricsEnabled = "metrics_enabled"
	OptionMetricsAddress = "metrics_addr"

	DefaultOptionDebug          = false
	DefaultOptionCount          = 10
	DefaultOptionStart          = 0
	DefaultOptionWorkers        = 4
	DefaultOptionMetricsEnabled = false
	DefaultOptionMetricsAddress = "0.0.0.0:3050"
)

type Config struct {
	Debug bool

	// Start and Count describe the range of values the demo pushes through
	// the pipeline.
	Start int
	Count int

	// Workers is the size of the pool that produces the values.
	Workers int

	MetricsEnabled bool
	MetricsAddress string
}

func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix(ModuleName)
	v.AutomaticEnv()

	v.SetDefault(OptionDebug, DefaultOptionDebug)
	v.SetDefault(OptionCount, DefaultOptionCount)
	v.SetDefault(OptionStart, DefaultOptionStart)
	v.SetDefault(OptionWorkers, DefaultOptionWorkers)
	v.SetDefault(OptionMetricsEnabled, DefaultOptionMetricsEnabled)
	v.SetDefault(OptionMetricsAddress, DefaultOptionMetricsAddress)

	return &Config{
		Debug:          v.GetBool(OptionDebug),
		Start:          v.GetInt(OptionStart),
		Count:          v.GetInt(OptionCount),
		Workers:        v.GetInt(OptionWorkers),
		MetricsEnabled: v.GetBool(OptionMetricsEnabled),
		MetricsAddress: v.GetString(OptionMetricsAddress),
	}
}
