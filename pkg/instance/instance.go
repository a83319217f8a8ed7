// Package instance names the running process in logs so sweeps from several
// workers can be told apart.
package instance

import (
	"os"

	"github.com/siva27neelam/story-telling/pkg/env"
)

const envInstanceID = "STORYTELLING_INSTANCE_ID"

// ID returns STORYTELLING_INSTANCE_ID, then the hostname, then "local".
func ID() string {
	if id := env.Get(envInstanceID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
