package ical

import (
	"errors"
	"os"
	"path/filepath"

	ics "github.com/arran4/golang-ical"
)

// Write serializes cal to path, creating the parent directory. The write is
// atomic (temp file + rename) so a subscriber polling the file never sees a
// half-written calendar.
func Write(cal *ics.Calendar, path string) error {
	if path == "" {
		return errors.New("output path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".edt-*.ics")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := cal.SerializeTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
