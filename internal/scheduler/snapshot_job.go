package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wayss/quantdesk/internal/modules/ledger"
	"github.com/wayss/quantdesk/internal/modules/snapshots"
)

// SnapshotJob marks every known portfolio at the latest closes after the
// trading day ends.
type SnapshotJob struct {
	snapshots  *snapshots.Service
	portfolios *ledger.Repository
	log        zerolog.Logger
}

// NewSnapshotJob creates the nightly snapshot job
func NewSnapshotJob(snaps *snapshots.Service, portfolios *ledger.Repository, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshots:  snaps,
		portfolios: portfolios,
		log:        log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string { return "snapshot" }

// Run records a snapshot for each portfolio. A failure on one portfolio does
// not stop the others.
func (j *SnapshotJob) Run() error {
	names, err := j.portfolios.Portfolios()
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}

	var failed int
	for _, name := range names {
		snap, err := j.snapshots.Record(name, "")
		if err != nil {
			failed++
			j.log.Error().Err(err).Str("portfolio", name).Msg("Snapshot failed")
			continue
		}
		j.log.Info().
			Str("portfolio", name).
			Str("date", snap.Date).
			Float64("total_value", snap.TotalValue).
			Msg("Snapshot recorded")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d portfolio snapshots failed", failed, len(names))
	}
	return nil
}
