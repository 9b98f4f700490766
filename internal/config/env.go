package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvJobs          = "FENCECHECK_JOBS"
	EnvTimeout       = "FENCECHECK_TIMEOUT"
	EnvKeepOnFailure = "FENCECHECK_KEEP_ON_FAILURE"
	EnvFailOnSkip    = "FENCECHECK_FAIL_ON_SKIP"
	EnvScratchDir    = "FENCECHECK_SCRATCH_DIR"
	EnvCache         = "FENCECHECK_CACHE"
)

type lookupFunc func(string) (string, bool)

// envLookup consults the process environment first, then dir/.env.
func envLookup(dir string) lookupFunc {
	if dir == "" {
		dir = "."
	}
	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		// .env необязателен
		dotenv = nil
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvJobs); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvJobs, err)
		}
		c.Engine.Jobs = n
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Engine.Timeout = Duration(d)
	}
	if v, ok := lookup(EnvScratchDir); ok {
		c.Engine.ScratchDir = v
	}
	for key, dst := range map[string]*bool{
		EnvKeepOnFailure: &c.Engine.KeepOnFailure,
		EnvFailOnSkip:    &c.CI.FailOnSkip,
		EnvCache:         &c.Cache.Enabled,
	} {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}
