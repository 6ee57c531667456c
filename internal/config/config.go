// Package config loads the apicheck environment: variables from the
// process, optionally preloaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAPIURL            = "APICHECK_API_URL"
	EnvSuperuser         = "APICHECK_SUPERUSER"
	EnvSuperuserPassword = "APICHECK_SUPERUSER_PASSWORD"
	EnvTimeout           = "APICHECK_TIMEOUT"
	EnvTestPrefix        = "APICHECK_TEST_PREFIX"
	EnvConfig            = "APICHECK_CONFIG"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultTestPrefix = "ac"
	defaultConfigPath = "apicheck.yaml"
)

// Env is the validated environment.
type Env struct {
	// APIURL overrides the manifest target's base_url when set.
	APIURL            string        `validate:"omitempty,url"`
	Superuser         string        `validate:"omitempty,min=3"`
	SuperuserPassword string        `validate:"required_with=Superuser"`
	Timeout           time.Duration `validate:"gt=0,lte=5m"`
	TestPrefix        string        `validate:"required,alphanum,max=8"`
	ConfigPath        string        `validate:"required"`
}

var validate = validator.New()

// LoadEnv loads the given .env files (".env" if none) into the process
// environment, then reads and validates Env. Missing .env files are not an
// error; variables already set in the process win over the files.
func LoadEnv(files ...string) (*Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds Env from a lookup function such as os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Env, error) {
	env := &Env{
		Timeout:    defaultTimeout,
		TestPrefix: defaultTestPrefix,
		ConfigPath: defaultConfigPath,
	}

	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAPIURL); ok {
		env.APIURL = strings.TrimRight(v, "/")
	}
	if v, ok := get(EnvSuperuser); ok {
		env.Superuser = v
	}
	if v, ok := get(EnvSuperuserPassword); ok {
		env.SuperuserPassword = v
	}
	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		env.Timeout = d
	}
	if v, ok := get(EnvTestPrefix); ok {
		env.TestPrefix = v
	}
	if v, ok := get(EnvConfig); ok {
		env.ConfigPath = v
	}

	if err := validate.Struct(env); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid environment: %s", strings.Join(msgs, ", "))
		}
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return env, nil
}

// HasSuperuser reports whether superuser credentials are configured.
func (e *Env) HasSuperuser() bool {
	return e.Superuser != ""
}
