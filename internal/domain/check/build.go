package check

import (
	"fmt"

	"github.com/okian/tempoguard/internal/config"
)

// Build constructs the built-in check named id.
func Build(id string, cfg config.CheckConfig) (Check, error) {
	switch id {
	case config.CheckInterval:
		return NewInterval(cfg), nil
	case config.CheckReaction:
		return NewReaction(cfg), nil
	case config.CheckDuplication:
		return NewDuplication(cfg), nil
	case config.CheckStability:
		return NewStability(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheck, id)
	}
}

// BuildRegistry registers every enabled check in configuration order and freezes the result.
func BuildRegistry(cfg config.ChecksConfig) (*Registry, error) {
	r := NewRegistry()
	all := cfg.All()
	for _, id := range cfg.Order() {
		cc := all[id]
		if !cc.Enabled {
			continue
		}
		c, err := Build(id, cc)
		if err != nil {
			return nil, err
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
