package config

import (
	"strings"
	"time"
)

// PublicPaths is the set of path suffixes that never carry a credential.
type PublicPaths []string

var defaultPublicPaths = PublicPaths{
	"/token/",
	"/token/refresh/",
	"/users/register/",
	"/users/register/provider/",
}

// DefaultPublicPaths returns a copy of the login, refresh and registration suffixes.
func DefaultPublicPaths() PublicPaths {
	return append(PublicPaths(nil), defaultPublicPaths...)
}

// IsPublic reports whether path ends with one of the exempt suffixes.
func (p PublicPaths) IsPublic(path string) bool {
	for _, suffix := range p {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

type API struct {
	URL            string        `env:"BLUECOLLAR_API_URL" envDefault:"http://127.0.0.1:8000/api"`
	LoginPath      string        `env:"BLUECOLLAR_LOGIN_PATH" envDefault:"/token/"`
	RefreshPath    string        `env:"BLUECOLLAR_REFRESH_PATH" envDefault:"/token/refresh/"`
	PublicPaths    []string      `env:"BLUECOLLAR_PUBLIC_PATHS" envSeparator:","`
	RequestTimeout time.Duration `env:"BLUECOLLAR_REQUEST_TIMEOUT" envDefault:"30s"`
}

var _ APIConfig = API{}

func (a API) GetAPIURL() string {
	return strings.TrimRight(a.URL, "/")
}

func (a API) GetLoginPath() string {
	return a.LoginPath
}

func (a API) GetRefreshPath() string {
	return a.RefreshPath
}

func (a API) GetPublicPaths() PublicPaths {
	if len(a.PublicPaths) == 0 {
		return DefaultPublicPaths()
	}
	return PublicPaths(a.PublicPaths)
}

func (a API) GetRequestTimeout() time.Duration {
	return a.RequestTimeout
}
