package logs

import (
	"strings"

	"github.com/nxadm/tail"
)

// Follow tails a task execution's log file, invoking onLine for each line of output, and stops
// (closing the underlying tail) once it observes the GOFER_EOF marker rather than following
// forever. It blocks until that marker is seen or stop is closed.
func Follow(path string, stop <-chan struct{}, onLine func(line string)) error {
	file, err := tail.TailFile(path, tail.Config{Follow: true, Logger: tail.DiscardingLogger})
	if err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return file.Stop()
		case line, ok := <-file.Lines:
			if !ok {
				return file.Stop()
			}

			if line.Err != nil {
				return line.Err
			}

			if strings.Contains(line.Text, GoferEOF) {
				return file.Stop()
			}

			onLine(line.Text)
		}
	}
}
