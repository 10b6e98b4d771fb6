package config

import (
	"strings"
	"time"
)

type Chat struct {
	URL         string        `env:"BLUECOLLAR_WS_URL" envDefault:"ws://127.0.0.1:8000/ws/chat"`
	Origin      string        `env:"BLUECOLLAR_ORIGIN" envDefault:"http://127.0.0.1:8000"`
	HistoryWait time.Duration `env:"BLUECOLLAR_HISTORY_WAIT" envDefault:"2s"`
}

var _ ChatConfig = Chat{}

func (c Chat) GetChatURL() string {
	return strings.TrimRight(c.URL, "/")
}

func (c Chat) GetChatOrigin() string {
	return c.Origin
}

func (c Chat) GetHistoryWait() time.Duration {
	return c.HistoryWait
}
