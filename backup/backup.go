package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"
	"github.com/spf13/afero"

	"github.com/senpro-it/nr-chart-refresh-updater/models"
)

const timestampFormat = "20060102T150405Z"

// Sink persists a snapshot of a dashboard before it is written back.
type Sink interface {
	Write(guid string, dashboard models.Dashboard) error
}

// Nop is the Sink used when backups are disabled.
type Nop struct{}

func (Nop) Write(string, models.Dashboard) error {
	return nil
}

type FileSink struct {
	fs     afero.Fs
	dir    string
	now    func() time.Time
	logger *log.Logger
}

// New returns a FileSink writing to dir on the OS filesystem, or Nop when dir
// is empty.
func New(dir string, logger *log.Logger) Sink {
	if dir == "" {
		return Nop{}
	}
	return NewFileSink(afero.NewOsFs(), dir, logger)
}

func NewFileSink(fs afero.Fs, dir string, logger *log.Logger) *FileSink {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &FileSink{
		fs:     fs,
		dir:    dir,
		now:    time.Now,
		logger: logger.WithPrefix("backup"),
	}
}

// FileName returns `dashboard_<guid>_<UTC timestamp>.json`. Path separators
// in the GUID are replaced so the snapshot always lands inside the directory.
func FileName(guid string, at time.Time) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(guid)
	return fmt.Sprintf("dashboard_%s_%s.json", safe, at.UTC().Format(timestampFormat))
}

func (s *FileSink) Write(guid string, dashboard models.Dashboard) error {
	oopsBuilder := oops.In("backup.Write").With("guid", guid).With("dir", s.dir)

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return oopsBuilder.Wrap(err)
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return oopsBuilder.Wrap(err)
	}

	path := filepath.Join(s.dir, FileName(guid, s.now()))
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return oopsBuilder.With("path", path).Wrap(err)
	}

	s.logger.Info("Wrote dashboard backup", "guid", guid, "path", path)
	return nil
}
