package config

import "time"

// DevServerConfig configures the local development backend.
type DevServerConfig interface {
	EnvConfig
	GetListenAddr() string
	GetSigningSecret() string
	GetSigningAlg() string
	GetAccessTTL() time.Duration
	GetRefreshTTL() time.Duration
	GetRotateRefresh() bool
	GetAllowedOrigins() AllowedOrigins
}

// AllowedOrigins lists the browser origins allowed to call the API. "*"
// allows any origin.
type AllowedOrigins []string

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	for _, allowed := range a {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

type DevServer struct {
	EnvVars
	ListenAddr    string        `env:"DEVSERVER_ADDR" envDefault:":8000"`
	SigningSecret string        `env:"DEVSERVER_SECRET" envDefault:"dev-secret-change-me"`
	SigningAlg    string        `env:"DEVSERVER_SIGNING_ALG" envDefault:"HS256"`
	AccessTTL     time.Duration `env:"DEVSERVER_ACCESS_TTL" envDefault:"5m"`
	RefreshTTL    time.Duration `env:"DEVSERVER_REFRESH_TTL" envDefault:"24h"`
	RotateRefresh bool          `env:"DEVSERVER_ROTATE_REFRESH" envDefault:"false"`
	Origins       []string      `env:"DEVSERVER_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

var _ DevServerConfig = DevServer{}

// NewDevServer loads the development backend configuration from the environment.
func NewDevServer() (DevServerConfig, error) {
	c := DevServer{}
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	return c, nil
}

func (d DevServer) GetListenAddr() string {
	return d.ListenAddr
}

func (d DevServer) GetSigningSecret() string {
	return d.SigningSecret
}

func (d DevServer) GetSigningAlg() string {
	return d.SigningAlg
}

func (d DevServer) GetAccessTTL() time.Duration {
	return d.AccessTTL
}

func (d DevServer) GetRefreshTTL() time.Duration {
	return d.RefreshTTL
}

func (d DevServer) GetRotateRefresh() bool {
	return d.RotateRefresh
}

func (d DevServer) GetAllowedOrigins() AllowedOrigins {
	return AllowedOrigins(d.Origins)
}
