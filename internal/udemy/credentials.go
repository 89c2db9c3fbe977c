package udemy

import (
	"errors"
	"fmt"
	"os"

	"lecturevault/lib/configutil"
)

// ConfigError means the run cannot start, it is the only error that aborts before any network call.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid credentials %s: %s", e.Path, e.Err.Error())
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type Credentials struct {
	AccessToken string `json:"access_token"`
	ClientId    string `json:"client_id"`
	Csrf        string `json:"csrf"`
	// older exports of the cookie jar name it csrftoken.
	CsrfToken string `json:"csrftoken"`
}

func (c Credentials) csrf() string {
	if c.Csrf != "" {
		return c.Csrf
	}
	return c.CsrfToken
}

// LoadCredentials reads a json (or json5) credential file, it must contain a non-empty access_token.
func LoadCredentials(path string) (Credentials, error) {
	creds, err := configutil.ReadFile[Credentials](path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, &ConfigError{Path: path, Err: fmt.Errorf("file does not exist")}
	}
	if err != nil {
		return Credentials{}, &ConfigError{Path: path, Err: err}
	}
	if creds.AccessToken == "" {
		return Credentials{}, &ConfigError{Path: path, Err: fmt.Errorf("missing 'access_token'")}
	}
	return creds, nil
}
