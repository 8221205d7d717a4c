package logs

import (
	"os"

	"github.com/coldforge/shepherd/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// Capture reads logItems until the channel closes, writing stdout and stderr bytes as received to
// a single file at path. On Unknown it logs and continues; on a per-chunk write error it logs and
// continues. The GoferEOF marker is appended unconditionally once the stream ends, even if a write
// failed partway through, so downstream followers always see a terminated file.
func Capture(path string, logItems <-chan scheduler.LogItem) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for item := range logItems {
		switch item.Kind {
		case scheduler.LogItemStdout, scheduler.LogItemStderr:
			if _, err := file.Write(item.Data); err != nil {
				log.Error().Err(err).Str("path", path).Msg("logs: could not write chunk to log file")
			}
		default:
			log.Warn().Str("path", path).Msg("logs: received untagged log chunk")
		}
	}

	if _, err := file.WriteString(GoferEOF); err != nil {
		log.Error().Err(err).Str("path", path).Msg("logs: could not write GOFER_EOF marker")
	}

	return nil
}
