package instance

import "os"

// ID identifies the running process in logs and lock values: DEZKO_INSTANCE_ID,
// then the Heroku DYNO name, then the hostname.
func ID() string {
	for _, key := range []string{"DEZKO_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
