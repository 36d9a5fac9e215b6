package session

import (
	"os"
	"strconv"
)

// Config holds per-connection limits.
type Config struct {
	// HistoryLimit is the number of messages sent with a join acknowledgement.
	HistoryLimit int
	// SendRate is the sustained messages per second a connection may send.
	SendRate float64
	// SendBurst is the number of messages a connection may send at once.
	SendBurst int
	// OutboundBuffer is the number of payloads queued per connection before
	// further payloads are dropped.
	OutboundBuffer int
	// InboundBuffer is the number of events queued per connection before
	// the reader blocks.
	InboundBuffer int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:   50,
		SendRate:       10,
		SendBurst:      20,
		OutboundBuffer: 64,
		InboundBuffer:  16,
	}
}

// ConfigFromEnv reads CHAT_HISTORY_LIMIT, CHAT_SEND_RATE, CHAT_SEND_BURST
// and CHAT_OUTBOUND_BUFFER over the defaults. Invalid values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if n, ok := positiveInt("CHAT_HISTORY_LIMIT"); ok {
		cfg.HistoryLimit = n
	}
	if v := os.Getenv("CHAT_SEND_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.SendRate = f
		}
	}
	if n, ok := positiveInt("CHAT_SEND_BURST"); ok {
		cfg.SendBurst = n
	}
	if n, ok := positiveInt("CHAT_OUTBOUND_BUFFER"); ok {
		cfg.OutboundBuffer = n
	}
	return cfg
}

func positiveInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
