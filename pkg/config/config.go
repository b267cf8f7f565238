package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/connectome-metrics/pkg/connectivity"
	"github.com/gilchrisn/connectome-metrics/pkg/dataset"
	"github.com/gilchrisn/connectome-metrics/pkg/louvain"
	"github.com/gilchrisn/connectome-metrics/pkg/metrics"
	"github.com/gilchrisn/connectome-metrics/pkg/modularity"
	"github.com/gilchrisn/connectome-metrics/pkg/pipeline"
)

// EnvPrefix prefixes environment overrides, e.g. CONNECTOME_MODULARITY_GAMMA.
const EnvPrefix = "CONNECTOME"

// Config manages pipeline configuration using Viper
type Config struct {
	v *viper.Viper
}

// metricDefaults holds the preprocessing each metric runs with unless
// overridden.
var metricDefaults = map[string]pipeline.Options{
	metrics.GlobalEfficiencyName: {Connectivity: connectivity.All},
	metrics.CharPathLengthName:   {Connectivity: connectivity.All},
	metrics.ClusteringName:       {Normalize: true, Connectivity: connectivity.All},
	metrics.StrengthName:         {Normalize: true, Connectivity: connectivity.All},
	metrics.ModularityName: {
		Normalize:     true,
		TargetDensity: 0.08,
		KNNK:          3,
		Connectivity:  connectivity.Giant,
	},
}

// New creates a new configuration with defaults
func New() *Config {
	v := viper.New()

	// Paths
	v.SetDefault("paths.input_dir", ".")
	v.SetDefault("paths.output_dir", "")
	v.SetDefault("paths.raw_dir", ".")

	// Dataset
	v.SetDefault("dataset.file_pattern", dataset.DefaultPattern)
	v.SetDefault("dataset.subject_prefix", "INsIDER")
	v.SetDefault("dataset.methods", []string{"ACT", "TREKKER"})
	v.SetDefault("dataset.upper_triangle_only", true)
	v.SetDefault("dataset.include_diagonal", false)

	// Per-metric preprocessing
	for name, o := range metricDefaults {
		prefix := "metrics." + name + "."
		v.SetDefault(prefix+"proportional_threshold", o.ProportionalThreshold)
		v.SetDefault(prefix+"normalize", o.Normalize)
		v.SetDefault(prefix+"target_density", o.TargetDensity)
		v.SetDefault(prefix+"knn_k", o.KNNK)
		v.SetDefault(prefix+"connectivity", string(o.Connectivity))
	}

	// Community detection
	lo := louvain.DefaultOptions()
	v.SetDefault("modularity.gamma", lo.Resolution)
	v.SetDefault("modularity.algorithm", "louvain")
	v.SetDefault("modularity.seed", lo.RandomSeed)
	v.SetDefault("modularity.max_levels", lo.MaxLevels)
	v.SetDefault("modularity.max_iterations", lo.MaxIterations)
	v.SetDefault("modularity.min_gain", lo.MinModularityGain)

	v.SetDefault("path_length.include_infinite", true)

	// Analysis
	v.SetDefault("analysis.qc_fraction", 0.90)
	v.SetDefault("analysis.figures", true)
	v.SetDefault("analysis.dpi", 300)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"input-dir":  "paths.input_dir",
	"output-dir": "paths.output_dir",
	"raw-dir":    "paths.raw_dir",
	"pattern":    "dataset.file_pattern",
	"gamma":      "modularity.gamma",
	"algorithm":  "modularity.algorithm",
	"seed":       "modularity.seed",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"dpi":        "analysis.dpi",
}

// BindFlags makes the flags of fs that carry a configuration key take
// precedence over the environment, the config file and the defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := c.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	if f := fs.Lookup("no-figures"); f != nil && f.Changed {
		c.v.Set("analysis.figures", false)
	}
	return nil
}

// Getters for paths
func (c *Config) InputDir() string { return c.v.GetString("paths.input_dir") }
func (c *Config) RawDir() string   { return c.v.GetString("paths.raw_dir") }

// OutputDir defaults to <input_dir>/metrics.
func (c *Config) OutputDir() string {
	if dir := c.v.GetString("paths.output_dir"); dir != "" {
		return dir
	}
	return filepath.Join(c.InputDir(), "metrics")
}

// NodeDir holds per-node metric vectors.
func (c *Config) NodeDir() string   { return filepath.Join(c.OutputDir(), "node_metrics") }
func (c *Config) FigureDir() string { return filepath.Join(c.OutputDir(), "figures") }
func (c *Config) SummaryDir() string {
	return filepath.Join(c.OutputDir(), "summaries")
}

// Getters for dataset parameters
func (c *Config) FilePattern() string     { return c.v.GetString("dataset.file_pattern") }
func (c *Config) SubjectPrefix() string   { return c.v.GetString("dataset.subject_prefix") }
func (c *Config) Methods() []string       { return c.v.GetStringSlice("dataset.methods") }
func (c *Config) UpperTriangleOnly() bool { return c.v.GetBool("dataset.upper_triangle_only") }
func (c *Config) IncludeDiagonal() bool   { return c.v.GetBool("dataset.include_diagonal") }

// CollectOptions assembles the dataset collection settings.
func (c *Config) CollectOptions() dataset.CollectOptions {
	return dataset.CollectOptions{
		SubjectPrefix:   c.SubjectPrefix(),
		Methods:         c.Methods(),
		UpperOnly:       c.UpperTriangleOnly(),
		IncludeDiagonal: c.IncludeDiagonal(),
	}
}

// Preprocess returns the preprocessing options of metric.
func (c *Config) Preprocess(metric string) pipeline.Options {
	prefix := "metrics." + metric + "."
	return pipeline.Options{
		ProportionalThreshold: c.v.GetFloat64(prefix + "proportional_threshold"),
		Normalize:             c.v.GetBool(prefix + "normalize"),
		TargetDensity:         c.v.GetFloat64(prefix + "target_density"),
		KNNK:                  c.v.GetInt(prefix + "knn_k"),
		Connectivity:          connectivity.ParseMode(c.v.GetString(prefix + "connectivity")),
	}
}

// Getters for community detection
func (c *Config) Gamma() float64             { return c.v.GetFloat64("modularity.gamma") }
func (c *Config) Algorithm() string          { return c.v.GetString("modularity.algorithm") }
func (c *Config) Seed() int64                { return c.v.GetInt64("modularity.seed") }
func (c *Config) MaxLevels() int             { return c.v.GetInt("modularity.max_levels") }
func (c *Config) MaxIterations() int         { return c.v.GetInt("modularity.max_iterations") }
func (c *Config) MinModularityGain() float64 { return c.v.GetFloat64("modularity.min_gain") }
func (c *Config) IncludeInfinitePaths() bool { return c.v.GetBool("path_length.include_infinite") }
func (c *Config) QCFraction() float64        { return c.v.GetFloat64("analysis.qc_fraction") }
func (c *Config) Figures() bool              { return c.v.GetBool("analysis.figures") }
func (c *Config) DPI() int                   { return c.v.GetInt("analysis.dpi") }
func (c *Config) LogLevel() string           { return c.v.GetString("logging.level") }
func (c *Config) LogFormat() string          { return c.v.GetString("logging.format") }

// ModularityOptions assembles the community detection settings.
func (c *Config) ModularityOptions() modularity.Options {
	return modularity.Options{
		Gamma:     c.Gamma(),
		Algorithm: modularity.ParseAlgorithm(c.Algorithm()),
		Louvain: louvain.Options{
			Resolution:        c.Gamma(),
			MaxLevels:         c.MaxLevels(),
			MaxIterations:     c.MaxIterations(),
			MinModularityGain: c.MinModularityGain(),
			RandomSeed:        c.Seed(),
		},
	}
}

// Registry builds the metric registry from the configuration.
func (c *Config) Registry(logger zerolog.Logger) *metrics.Registry {
	return metrics.DefaultRegistry(metrics.Options{
		IncludeInfinite: c.IncludeInfinitePaths(),
		Modularity:      c.ModularityOptions(),
		Logger:          logger,
	})
}

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Snapshot returns every effective setting as a nested map.
func (c *Config) Snapshot() map[string]interface{} {
	return c.v.AllSettings()
}

// WriteYAML dumps the effective configuration.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// CreateLogger creates a zerolog logger based on config. Console output goes
// to stderr so stdout stays free for tables and YAML.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	if strings.EqualFold(c.LogFormat(), "json") {
		out = os.Stderr
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "connectome").Logger()
}
