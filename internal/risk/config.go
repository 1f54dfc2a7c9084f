package risk

import (
	"slices"

	"github.com/yanun0323/errors"

	"tob/internal/csr"
	"tob/pkg/exception"
)

const DefaultTokenMax = 10000

// Config holds the gate limits. A zero limit disables its check.
type Config struct {
	PriceBandBps  uint32 `yaml:"price_band_bps"`
	TokenRate     uint16 `yaml:"token_rate"` // tokens per millisecond
	TokenMax      uint16 `yaml:"token_max"`
	PositionLimit uint32 `yaml:"position_limit"`
	KillSwitch    bool   `yaml:"kill_switch"`
}

var profiles = map[string]Config{
	"default": {
		PriceBandBps:  100,
		TokenRate:     1000,
		TokenMax:      DefaultTokenMax,
		PositionLimit: 50000,
	},
	"aggressive": {
		PriceBandBps:  200,
		TokenRate:     2000,
		TokenMax:      DefaultTokenMax,
		PositionLimit: 100000,
	},
	"conservative": {
		PriceBandBps:  50,
		TokenRate:     500,
		TokenMax:      DefaultTokenMax,
		PositionLimit: 25000,
	},
	"disabled": {
		KillSwitch: true,
	},
}

// DefaultConfig returns the default profile.
func DefaultConfig() Config {
	return profiles["default"]
}

// Profile returns a named profile.
func Profile(name string) (Config, error) {
	cfg, ok := profiles[name]
	if !ok {
		return Config{}, errors.Wrapf(exception.ErrUnknownProfile, "profile %q", name)
	}
	return cfg, nil
}

// Profiles lists the profile names in sorted order.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply writes the limits into the risk registers.
func Apply(h *csr.Handle, cfg Config) error {
	kill := uint32(0)
	if cfg.KillSwitch {
		kill = 1
	}
	writes := [...]struct {
		off uint32
		v   uint32
	}{
		{csr.PriceBandBps, cfg.PriceBandBps},
		{csr.TokenRate, uint32(cfg.TokenMax)<<16 | uint32(cfg.TokenRate)},
		{csr.PositionLimit, cfg.PositionLimit},
		{csr.Kill, kill},
	}
	for _, w := range writes {
		if err := h.Write(w.off, w.v); err != nil {
			return errors.Wrapf(err, "write risk register 0x%03x", w.off)
		}
	}
	return nil
}

// ReadConfig reads the limits back from the risk registers.
func ReadConfig(h *csr.Handle) (Config, error) {
	var regs [4]uint32
	for i, off := range [...]uint32{csr.PriceBandBps, csr.TokenRate, csr.PositionLimit, csr.Kill} {
		v, err := h.Read(off)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read risk register 0x%03x", off)
		}
		regs[i] = v
	}
	return Config{
		PriceBandBps:  regs[0] & 0xFFFF,
		TokenRate:     uint16(regs[1]),
		TokenMax:      uint16(regs[1] >> 16),
		PositionLimit: regs[2],
		KillSwitch:    regs[3]&1 != 0,
	}, nil
}
