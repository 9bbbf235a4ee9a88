package worker

// export_sweeper.go
// Periodically re-enqueues exports for recently closed days whose archive is
// missing on disk, e.g. because Redis was down when the day was closed.

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"caixa/internal/dto"
	"caixa/internal/model"

	"github.com/rs/zerolog/log"
)

const (
	sweepTickInterval = 10 * time.Minute
	sweepBatchSize    = 30
)

// DayLister is satisfied by service.LedgerService.
type DayLister interface {
	History(ctx context.Context, page, limit int) (*dto.HistoryResponse, error)
}

// ExportEnqueuer is satisfied by *Dispatcher.
type ExportEnqueuer interface {
	EnqueueExport(ctx context.Context, day string) error
}

// SweeperConfig holds all dependencies for the sweep goroutine.
type SweeperConfig struct {
	Days       DayLister
	Dispatcher ExportEnqueuer
	Exports    *ExportWorker
	Interval   time.Duration
}

// StartExportSweeper ticks until ctx is cancelled.
func StartExportSweeper(ctx context.Context, cfg SweeperConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = sweepTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Msg("export_sweeper: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("export_sweeper: shutting down")
				return
			case <-ticker.C:
				sweep(ctx, cfg)
			}
		}
	}()
}

// sweep returns how many exports it enqueued.
func sweep(ctx context.Context, cfg SweeperConfig) int {
	history, err := cfg.Days.History(ctx, 1, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("export_sweeper: failed to list days")
		return 0
	}

	enqueued := 0
	for _, d := range history.Data {
		if d.Status != model.DayClosed {
			continue
		}
		_, err := os.Stat(cfg.Exports.ArchivePath(d.Day))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("day", d.Day).Msg("export_sweeper: cannot stat archive")
			continue
		}
		if err := cfg.Dispatcher.EnqueueExport(ctx, d.Day); err != nil {
			log.Warn().Err(err).Str("day", d.Day).Msg("export_sweeper: enqueue failed")
			return enqueued
		}
		enqueued++
	}
	if enqueued > 0 {
		log.Info().Int("count", enqueued).Msg("export_sweeper: missing archives re-enqueued")
	}
	return enqueued
}
