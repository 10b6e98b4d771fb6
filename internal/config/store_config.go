package config

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Store struct {
	Driver        string `env:"BLUECOLLAR_STORE" envDefault:"sqlite"`
	Path          string `env:"BLUECOLLAR_STORE_PATH" envDefault:"./data/bluecollar.db"`
	RedisAddr     string `env:"BLUECOLLAR_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"BLUECOLLAR_REDIS_PASSWORD"`
	RedisDB       int    `env:"BLUECOLLAR_REDIS_DB" envDefault:"0"`
	Prefix        string `env:"BLUECOLLAR_STORE_PREFIX" envDefault:"bluecollar:"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreDriver() string {
	return s.Driver
}

func (s Store) GetStorePath() string {
	return s.Path
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetStorePrefix() string {
	return s.Prefix
}
