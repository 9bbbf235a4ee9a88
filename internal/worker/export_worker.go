package worker

// export_worker.go
// Writes the archive of a freshly closed day to ARCHIVE_STORAGE_PATH so the
// operator keeps a copy even if the report is never downloaded.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"caixa/internal/apperror"
	"caixa/internal/report"

	"github.com/rs/zerolog/log"
)

// ArchiveBuilder is satisfied by *report.Builder.
type ArchiveBuilder interface {
	Build(ctx context.Context, day string) (*report.Archive, error)
}

type ExportWorker struct {
	builder ArchiveBuilder
	dir     string
}

func NewExportWorker(builder ArchiveBuilder, dir string) *ExportWorker {
	return &ExportWorker{builder: builder, dir: dir}
}

// ArchivePath is where the archive of day lives on disk.
func (w *ExportWorker) ArchivePath(day string) string {
	return filepath.Join(w.dir, report.ArchiveName(day))
}

// Process builds and stores one archive. Days with nothing to export are
// skipped without error; only I/O failures are retried.
func (w *ExportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ExportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("export_worker: invalid payload")
		return nil
	}

	archive, err := w.builder.Build(ctx, payload.Day)
	if err != nil {
		var empty *apperror.EmptyReportError
		var open *apperror.DayOpenError
		var invalid *apperror.ValidationError
		switch {
		case errors.As(err, &empty):
			log.Info().Str("day", payload.Day).Msg("export_worker: day has no payments, nothing to export")
			return nil
		case errors.As(err, &open), errors.As(err, &invalid):
			log.Warn().Err(err).Str("day", payload.Day).Msg("export_worker: day cannot be exported")
			return nil
		}
		return fmt.Errorf("build archive for %s: %w", payload.Day, err)
	}

	path, err := w.write(archive)
	if err != nil {
		return err
	}
	log.Info().Str("day", payload.Day).Str("path", path).Str("format", string(archive.TableFormat)).Msg("export_worker: archive stored")
	return nil
}

// write goes through a temp file so readers never see a partial zip.
func (w *ExportWorker) write(a *report.Archive) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	tmp, err := os.CreateTemp(w.dir, ".export-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	path := filepath.Join(w.dir, a.FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move archive into place: %w", err)
	}
	return path, nil
}
