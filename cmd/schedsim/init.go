package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/determined-ai/schedsim/internal/config"
)

var v *viper.Viper

// viperKeyDelimiter separates the levels of nested keys. ".." leaves "." usable inside keys.
const viperKeyDelimiter = ".."

const envPrefix = "SCHEDSIM_"

//nolint:gochecknoinit
func init() {
	registerConfig()
	rootCmd.AddCommand(runCmd, checkCmd)
}

// configKey is the path of a configuration value. Each key is settable by flag
// (--log-level), environment variable (SCHEDSIM_LOG_LEVEL) and configuration file (log.level).
type configKey []string

func (c configKey) EnvName() string {
	return envPrefix + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func register(flags *pflag.FlagSet, name configKey, value interface{}, usage string) {
	switch typed := value.(type) {
	case string:
		flags.String(name.FlagName(), typed, usage)
	case bool:
		flags.Bool(name.FlagName(), typed, usage)
	case int:
		flags.Int(name.FlagName(), typed, usage)
	default:
		panic(fmt.Sprintf("unsupported flag type %T for %s", value, name.FlagName()))
	}
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig() {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	name := func(components ...string) configKey { return components }

	register(flags, name("config-file"), defaults.ConfigFile,
		"location of config file")
	register(flags, name("log", "level"), defaults.Log.Level,
		"choose logging level from [trace, debug, info, warn, error, fatal]")
	register(flags, name("log", "color"), defaults.Log.Color,
		"output logs in color")
	register(flags, name("log", "simulated-time"), defaults.Log.SimulatedTime,
		"omit wall clock timestamps from logs")
	register(flags, name("platform"), defaults.Platform,
		"location of the platform description")
	register(flags, name("workload"), defaults.Workload,
		"location of the workload to replay")
	register(flags, name("date-precision"), int(defaults.DatePrecision),
		"decimals of printed simulated dates")
}
