package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/mantlenetworkio/feesweep/op-feesweep/sweep"
	"github.com/mantlenetworkio/feesweep/op-service/cliutil"
	"github.com/mantlenetworkio/feesweep/op-service/eth"
)

// Profile is a TOML file overriding the sweep and its bounds. Unset fields keep
// the values from flags.
type Profile struct {
	Mode  string   `toml:"mode"`
	Sweep []string `toml:"sweep"`

	ReadyTimeout    time.Duration `toml:"ready_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	TxTimeout       time.Duration `toml:"tx_timeout"`

	Boundary struct {
		Skip              *bool  `toml:"skip"`
		SuccessPayload    int    `toml:"success_payload"`
		FailurePayload    int    `toml:"failure_payload"`
		PubdataMultiplier uint64 `toml:"pubdata_multiplier"`
	} `toml:"boundary"`
}

func LoadProfile(fs afero.Fs, path string) (*Profile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var p Profile
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in profile %s: %v", path, undecoded)
	}
	return &p, nil
}

// Apply overrides the config with every field the profile sets.
func (p *Profile) Apply(c *Config) error {
	if p.Mode != "" {
		mode, err := sweep.ParseMode(p.Mode)
		if err != nil {
			return err
		}
		c.SweepMode = mode
	}
	if len(p.Sweep) > 0 {
		values := make([]eth.ETH, len(p.Sweep))
		for i, s := range p.Sweep {
			v, err := cliutil.ParseWei(s)
			if err != nil {
				return fmt.Errorf("sweep value %d: %w", i, err)
			}
			values[i] = v
		}
		c.SweepValues = values
	}
	if p.ReadyTimeout != 0 {
		c.ReadyTimeout = p.ReadyTimeout
	}
	if p.ShutdownTimeout != 0 {
		c.ShutdownTimeout = p.ShutdownTimeout
	}
	if p.TxTimeout != 0 {
		c.TxTimeout = p.TxTimeout
	}
	if p.Boundary.Skip != nil {
		c.SkipBoundary = *p.Boundary.Skip
	}
	if p.Boundary.SuccessPayload != 0 {
		c.Boundary.SuccessPayload = p.Boundary.SuccessPayload
	}
	if p.Boundary.FailurePayload != 0 {
		c.Boundary.FailurePayload = p.Boundary.FailurePayload
	}
	if p.Boundary.PubdataMultiplier != 0 {
		c.Boundary.PubdataMultiplier = p.Boundary.PubdataMultiplier
	}
	return nil
}
