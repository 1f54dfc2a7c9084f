package ops

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"tob/internal/core"
	"tob/internal/publish"
	"tob/internal/recorder"
	"tob/internal/risk"
	"tob/internal/schema"
	"tob/internal/symbol"
	"tob/pkg/conn"
	"tob/pkg/exception"
)

const (
	defaultUDSPath          = "/tmp/tobd.sock"
	defaultSnapshotInterval = 5 * time.Second
	defaultMetricsAddr      = ":9108"
	defaultReportInterval   = time.Minute
	defaultRiskProfile      = "default"
)

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Core      core.Config     `yaml:"core"`
	Symbols   string          `yaml:"symbols"`
	Prices    string          `yaml:"reference_prices"`
	Ingress   IngressConfig   `yaml:"ingress"`
	Risk      RiskConfig      `yaml:"risk"`
	Export    ExportConfig    `yaml:"export"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	NATS      NATSConfig      `yaml:"nats"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

type IngressConfig struct {
	UDSPath string `yaml:"uds_path"`
}

// RiskConfig selects a profile; Overrides replaces it entirely when set.
type RiskConfig struct {
	Profile   string       `yaml:"profile"`
	Overrides *risk.Config `yaml:"overrides"`
}

type ExportConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Dir                string        `yaml:"dir"`
	SegmentMaxBytes    int64         `yaml:"segment_max_bytes"`
	SegmentMaxDuration time.Duration `yaml:"segment_max_duration"`
	QueueSize          int           `yaml:"queue_size"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
	SyncInterval       time.Duration `yaml:"sync_interval"`
}

type SnapshotConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Restore  bool          `yaml:"restore"`
}

type NATSConfig struct {
	Enabled        bool `yaml:"enabled"`
	publish.Config `yaml:",inline"`
}

type PostgresConfig struct {
	Enabled     bool `yaml:"enabled"`
	conn.Option `yaml:",inline"`
}

type MetricsConfig struct {
	Addr           string        `yaml:"addr"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type PyroscopeConfig struct {
	Server  string `yaml:"server"`
	AppName string `yaml:"app_name"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Core      core.Config
	Symbols   []symbol.Entry
	Prices    map[schema.SymbolIndex]schema.Price
	UDSPath   string
	Risk      risk.Config
	Export    *recorder.Config
	Snapshot  SnapshotConfig
	NATS      *publish.Config
	Postgres  *conn.Option
	Metrics   MetricsConfig
	Pyroscope PyroscopeConfig
}

// Load reads a YAML config file. Relative file paths resolve against the
// directory of the config file.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes YAML and resolves it.
func Parse(data []byte, baseDir string) (Loaded, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return Resolve(cfg, baseDir)
}

// Resolve applies defaults, loads the referenced files and validates the result.
func Resolve(cfg FileConfig, baseDir string) (Loaded, error) {
	loaded := Loaded{
		Core:      cfg.Core.WithDefaults(),
		UDSPath:   cfg.Ingress.UDSPath,
		Snapshot:  cfg.Snapshot,
		Metrics:   cfg.Metrics,
		Pyroscope: cfg.Pyroscope,
	}
	if err := loaded.Core.Validate(); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
	}
	if loaded.UDSPath == "" {
		loaded.UDSPath = defaultUDSPath
	}
	if loaded.Snapshot.Interval == 0 {
		loaded.Snapshot.Interval = defaultSnapshotInterval
	}
	if loaded.Snapshot.Interval < 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "snapshot interval must be >= 0")
	}
	loaded.Snapshot.Path = resolvePath(baseDir, loaded.Snapshot.Path)
	if loaded.Metrics.ReportInterval == 0 {
		loaded.Metrics.ReportInterval = defaultReportInterval
	}
	if loaded.Metrics.Addr == "" {
		loaded.Metrics.Addr = defaultMetricsAddr
	}

	riskCfg, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}
	loaded.Risk = riskCfg

	if cfg.Symbols == "" {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, "symbols file is empty")
	}
	entries, err := symbol.LoadFile(resolvePath(baseDir, cfg.Symbols))
	if err != nil {
		return Loaded{}, err
	}
	for _, e := range entries {
		if int(e.Index) >= loaded.Core.Universe {
			return Loaded{}, errors.Wrapf(exception.ErrSymbolOutOfRange, "symbol %s index %d, universe %d", e.Stock, e.Index, loaded.Core.Universe)
		}
	}
	loaded.Symbols = entries

	if cfg.Prices != "" {
		prices, err := risk.LoadPricesFile(resolvePath(baseDir, cfg.Prices))
		if err != nil {
			return Loaded{}, err
		}
		loaded.Prices = prices
	}

	if cfg.Export.Enabled {
		rc := recorder.DefaultConfig(resolvePath(baseDir, cfg.Export.Dir))
		if cfg.Export.SegmentMaxBytes != 0 {
			rc.SegmentMaxBytes = cfg.Export.SegmentMaxBytes
		}
		if cfg.Export.SegmentMaxDuration != 0 {
			rc.SegmentMaxDuration = cfg.Export.SegmentMaxDuration
		}
		if cfg.Export.QueueSize != 0 {
			rc.QueueSize = cfg.Export.QueueSize
		}
		rc.FlushInterval = cfg.Export.FlushInterval
		rc.SyncInterval = cfg.Export.SyncInterval
		if err := rc.Validate(); err != nil {
			return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
		}
		loaded.Export = &rc
	}

	if cfg.NATS.Enabled {
		nc := cfg.NATS.Config
		loaded.NATS = &nc
	}
	if cfg.Postgres.Enabled {
		opt := cfg.Postgres.Option
		if _, err := opt.DSN(); err != nil {
			return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
		}
		loaded.Postgres = &opt
	}
	return loaded, nil
}

func resolveRisk(cfg RiskConfig) (risk.Config, error) {
	if cfg.Overrides != nil {
		return *cfg.Overrides, nil
	}
	name := cfg.Profile
	if name == "" {
		name = defaultRiskProfile
	}
	return risk.Profile(name)
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
