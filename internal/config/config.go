// Config controls the overall configuration of the shepherd process.
//
// It is generated by first attempting to read a configuration file and then overwriting those
// values with anything found in environment variables. Environment variables always come last and
// have the highest priority, per https://12factor.net/config.
//
// All environment variables are prefixed with "SHEPHERD". Ex: SHEPHERD_LOG_LEVEL=debug
package config

import (
	"errors"
	"log"
	"os"
	"time"
)

func mustParseDuration(duration string) time.Duration {
	parsedDuration, err := time.ParseDuration(duration)
	if err != nil {
		log.Fatalf("could not parse duration %q; %v", duration, err)
	}

	return parsedDuration
}

// searchFilePaths searches each path given in order for a file and returns the first path found.
func searchFilePaths(paths ...string) string {
	for _, path := range paths {
		if path == "" {
			continue
		}

		stat, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if stat.IsDir() {
			continue
		}

		return path
	}

	return ""
}
