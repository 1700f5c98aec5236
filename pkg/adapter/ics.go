package adapter

import (
	"os"
	"path/filepath"

	ics "github.com/arran4/golang-ical"
	"github.com/m-mizutani/goerr/v2"
)

// CalendarWriter serializes a calendar document to a target path
type CalendarWriter interface {
	Write(cal *ics.Calendar, path string) error
}

// FileCalendarWriter writes calendar documents to the local filesystem,
// creating parent directories as needed.
type FileCalendarWriter struct{}

func NewFileCalendarWriter() *FileCalendarWriter {
	return &FileCalendarWriter{}
}

func (w *FileCalendarWriter) Write(cal *ics.Calendar, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create calendar directory", goerr.V("path", path))
	}

	if err := os.WriteFile(path, []byte(cal.Serialize()), 0o644); err != nil {
		return goerr.Wrap(err, "failed to write calendar file", goerr.V("path", path))
	}
	return nil
}
