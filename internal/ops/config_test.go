package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tob/internal/core"
	"tob/internal/schema"
	"tob/pkg/exception"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "symbols.csv", "AAPL,0,101\nMSFT,1,102\n")
	writeFile(t, dir, "prices.csv", "0,195.50\n1,410.00\n")
	path := writeFile(t, dir, "tobd.yaml", `
core:
  universe: 256
  shards: 2
  unresolved: pass
symbols: symbols.csv
reference_prices: prices.csv
ingress:
  uds_path: /tmp/test.sock
risk:
  profile: aggressive
export:
  enabled: true
  dir: export
  flush_interval: 100ms
snapshot:
  path: state/tob.json
  interval: 2s
nats:
  enabled: true
  url: nats://nats:4222
  subject_prefix: md.tob
postgres:
  enabled: true
  host: db
  database: market
metrics:
  addr: ":9999"
`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, core.Config{Universe: 256, Shards: 2, QueueSize: 4096, Unresolved: core.UnresolvedPass}, loaded.Core)
	require.Len(t, loaded.Symbols, 2)
	assert.Equal(t, uint16(102), loaded.Symbols[1].Locate)
	assert.Equal(t, schema.Price(1955000), loaded.Prices[0])
	assert.Equal(t, "/tmp/test.sock", loaded.UDSPath)
	assert.Equal(t, uint32(200), loaded.Risk.PriceBandBps)

	require.NotNil(t, loaded.Export)
	assert.Equal(t, filepath.Join(dir, "export"), loaded.Export.Dir)
	assert.Equal(t, 100*time.Millisecond, loaded.Export.FlushInterval)

	assert.Equal(t, filepath.Join(dir, "state/tob.json"), loaded.Snapshot.Path)
	assert.Equal(t, 2*time.Second, loaded.Snapshot.Interval)

	require.NotNil(t, loaded.NATS)
	assert.Equal(t, "nats://nats:4222", loaded.NATS.URL)
	assert.Equal(t, "md.tob", loaded.NATS.SubjectPrefix)

	require.NotNil(t, loaded.Postgres)
	dsn, err := loaded.Postgres.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db:5432/market?sslmode=disable", dsn)

	assert.Equal(t, ":9999", loaded.Metrics.Addr)
	assert.Equal(t, time.Minute, loaded.Metrics.ReportInterval)
}

func TestParseDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.csv", "AAPL,0\n")

	loaded, err := Parse([]byte("symbols: s.csv\n"), dir)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultConfig(), loaded.Core)
	assert.Equal(t, defaultUDSPath, loaded.UDSPath)
	assert.Equal(t, uint32(100), loaded.Risk.PriceBandBps)
	assert.Nil(t, loaded.Export)
	assert.Nil(t, loaded.NATS)
	assert.Nil(t, loaded.Postgres)
	assert.Empty(t, loaded.Snapshot.Path)
}

func TestParseRejects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.csv", "AAPL,0\nMSFT,600\n")
	writeFile(t, dir, "ok.csv", "AAPL,0\n")

	cases := map[string]struct {
		yaml string
		want error
	}{
		"no symbols":      {"core: {universe: 8}\n", exception.ErrConfigInvalid},
		"bad policy":      {"symbols: ok.csv\ncore: {unresolved: keep}\n", exception.ErrConfigInvalid},
		"out of universe": {"symbols: s.csv\ncore: {universe: 512}\n", exception.ErrSymbolOutOfRange},
		"unknown profile": {"symbols: ok.csv\nrisk: {profile: yolo}\n", exception.ErrUnknownProfile},
		"export no dir":   {"symbols: ok.csv\nexport: {enabled: true}\n", exception.ErrConfigInvalid},
		"bad interval":    {"symbols: ok.csv\nsnapshot: {interval: -1s}\n", exception.ErrConfigInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), dir)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Parse([]byte("core: [\n"), dir)
	require.Error(t, err)
}

func TestRiskOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.csv", "AAPL,0\n")
	loaded, err := Parse([]byte("symbols: s.csv\nrisk:\n  profile: aggressive\n  overrides:\n    price_band_bps: 7\n    kill_switch: true\n"), dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), loaded.Risk.PriceBandBps)
	assert.True(t, loaded.Risk.KillSwitch)
}

func TestLoadShippedConfig(t *testing.T) {
	loaded, err := Load(filepath.Join("..", "..", "testdata", "tobd.yaml"))
	require.NoError(t, err)
	require.Len(t, loaded.Symbols, 6)
	require.Len(t, loaded.Prices, 6)
	require.NotNil(t, loaded.Export)
	require.Nil(t, loaded.NATS)
	require.Nil(t, loaded.Postgres)
	require.True(t, loaded.Snapshot.Restore)
	require.Equal(t, uint32(100), loaded.Risk.PriceBandBps)
}
