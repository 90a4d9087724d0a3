package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"vivienda_backend/internals/features/intake/store"
	"vivienda_backend/internals/metrics"
)

// OrphanGrace is how old an applicant without assessments must be before
// the sweeper removes it. In-flight submissions are far younger.
const OrphanGrace = time.Hour

// OrphanSweeper deletes applicants left behind by a compensation that
// failed halfway.
type OrphanSweeper struct {
	Store   store.Store
	Log     *logrus.Logger
	Metrics *metrics.Metrics
	Grace   time.Duration
	Now     func() time.Time
}

func NewOrphanSweeper(st store.Store, log *logrus.Logger, m *metrics.Metrics) *OrphanSweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OrphanSweeper{Store: st, Log: log, Metrics: m, Grace: OrphanGrace, Now: time.Now}
}

// Sweep runs once and returns how many applicants it removed. An applicant
// that gained an assessment in the meantime is skipped.
func (w *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := w.Now().Add(-w.Grace)
	ids, err := w.Store.ListOrphanApplicantIDs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		w.Log.Debugf("[ORPHAN-SWEEPER] nothing to delete (cutoff=%s)", cutoff.Format(time.RFC3339))
		return 0, nil
	}

	deleted := 0
	for _, id := range ids {
		err := w.Store.DeleteApplicant(ctx, id)
		switch {
		case err == nil:
			deleted++
		case store.IsNotFound(err), store.IsConflict(err, store.ConflictForeignKey):
		default:
			w.Log.WithError(err).WithField("applicant_id", id).Warn("[ORPHAN-SWEEPER] delete failed")
		}
	}
	w.Metrics.Swept(deleted)
	w.Log.Infof("[ORPHAN-SWEEPER] deleted %d/%d orphan applicants", deleted, len(ids))
	return deleted, nil
}

// Start schedules Sweep. Overlapping runs are skipped. Stop the returned
// cron on shutdown.
func (w *OrphanSweeper) Start(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(w.Log))))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if _, err := w.Sweep(ctx); err != nil {
			w.Log.WithError(err).Error("[ORPHAN-SWEEPER] run failed")
		}
	})
	if err != nil {
		return nil, err
	}
	w.Log.Infof("[ORPHAN-SWEEPER] started schedule=%q grace=%s", schedule, w.Grace)
	c.Start()
	return c, nil
}
