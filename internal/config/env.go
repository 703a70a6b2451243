package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Env holds the environment variables that override the repository section
// of the configuration file.
type Env struct {
	Repo      string `env:"DRIVERSYNC_REPO"`
	Reference string `env:"DRIVERSYNC_REFERENCE"`
	Commit    string `env:"DRIVERSYNC_COMMIT"`
}

// ApplyEnv overlays the repository settings found through lookuper on top of
// the parsed configuration. Unset variables leave the configuration as is.
func (r *Root) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	var env Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	if env.Repo != "" {
		r.Repository.Repo = env.Repo
	}
	if env.Reference != "" {
		r.Repository.Reference = &env.Reference
	}
	if env.Commit != "" {
		r.Repository.Commit = &env.Commit
	}

	return nil
}
