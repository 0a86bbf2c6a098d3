package proxy

import "time"

// Config is the HTTP server configuration.
type Config struct {
	// RelayTimeout is the relay's upstream bound. The server's write timeout
	// is derived from it so replies are never cut off mid-flight.
	RelayTimeout time.Duration
}

func (c Config) writeTimeout() time.Duration {
	if c.RelayTimeout <= 0 {
		return 0
	}
	return c.RelayTimeout + 10*time.Second
}
