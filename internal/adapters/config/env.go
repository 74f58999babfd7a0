package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/zerr"
)

// Environment variables that override the workspace file.
const (
	EnvCacheEnabled      = "MONORUN_CACHE_ENABLED"
	EnvCacheWriteAllowed = "MONORUN_CACHE_WRITE_ALLOWED"
	EnvCloudAccessKey    = "MONORUN_CLOUD_ACCESS_KEY"
	EnvCloudSecretKey    = "MONORUN_CLOUD_SECRET_KEY"
	EnvCloudEndpoint     = "MONORUN_CLOUD_ENDPOINT"
)

// environment resolves variables from the process first and the workspace .env second.
type environment struct {
	dotenv map[string]string
}

func loadEnvironment(root string) (environment, error) {
	path := filepath.Join(root, domain.EnvFileName)
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return environment{}, nil
		}
		return environment{}, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}
	return environment{dotenv: values}, nil
}

func (e environment) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok
}

func (e environment) boolean(key string) (value, ok bool, err error) {
	raw, found := e.lookup(key)
	if !found || raw == "" {
		return false, false, nil
	}
	value, err = strconv.ParseBool(raw)
	if err != nil {
		err = zerr.With(zerr.With(domain.ErrInvalidEnvOverride, "variable", key), "value", raw)
		return false, false, err
	}
	return value, true, nil
}

// applyOverrides layers environment values over the cache settings read from the file.
func (e environment) applyOverrides(cache *domain.CacheSettings) error {
	enabled, ok, err := e.boolean(EnvCacheEnabled)
	if err != nil {
		return err
	}
	if ok {
		cache.Enabled = enabled
	}

	if cache.Cloud == nil {
		return nil
	}

	writeAllowed, ok, err := e.boolean(EnvCacheWriteAllowed)
	if err != nil {
		return err
	}
	if ok {
		cache.Cloud.WriteAllowed = writeAllowed
	}

	if v, ok := e.lookup(EnvCloudAccessKey); ok {
		cache.Cloud.AccessKey = v
	}
	if v, ok := e.lookup(EnvCloudSecretKey); ok {
		cache.Cloud.SecretKey = v
	}
	if v, ok := e.lookup(EnvCloudEndpoint); ok && v != "" {
		cache.Cloud.Endpoint = v
	}
	return nil
}
