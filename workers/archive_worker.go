package workers

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"game-records-api/storage"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	unarchivedDocumentsSQL = `
		SELECT kind, game_id, document::text AS document
		FROM game_documents
		WHERE archived_at IS NULL
		ORDER BY kind, played_at, game_id
		LIMIT ?`

	markArchivedSQL = `
		UPDATE game_documents
		SET archived_at = ?
		WHERE kind = ? AND game_id IN ? AND archived_at IS NULL`
)

// ObjectStore receives archive objects. utils.R2Client implements it.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

type archivedDocument struct {
	Kind     string `gorm:"column:kind"`
	GameID   string `gorm:"column:game_id"`
	Document string `gorm:"column:document"`
}

// ArchiveWorker copies game documents that have not been exported yet to
// object storage, one JSON array per kind per run. Upload happens before
// the rows are marked, so a document may be exported twice but never lost.
type ArchiveWorker struct {
	gw        storage.Gateway
	store     ObjectStore
	batchSize int
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
}

func NewArchiveWorker(gw storage.Gateway, store ObjectStore, batchSize int, logger *log.Logger) *ArchiveWorker {
	return &ArchiveWorker{
		gw:        gw,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start schedules RunOnce every interval. A run still in progress when the
// next one is due makes that one skip.
func (w *ArchiveWorker) Start(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("archive run failed", "archived", n, "err", err)
				return
			}
			if n > 0 {
				w.logger.Info("archive run finished", "archived", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("archive-game-documents"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule archive job: %w", err)
	}
	sched.Start()
	w.logger.Info("archive worker started", "interval", interval, "batch", w.batchSize)
	return sched, nil
}

// RunOnce exports up to one batch of documents and returns how many were
// marked archived.
func (w *ArchiveWorker) RunOnce(ctx context.Context) (int, error) {
	var docs []archivedDocument
	if err := w.gw.Select(ctx, &docs, unarchivedDocumentsSQL, w.batchSize); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var kinds []string
	byKind := make(map[string][]archivedDocument)
	for _, d := range docs {
		if _, ok := byKind[d.Kind]; !ok {
			kinds = append(kinds, d.Kind)
		}
		byKind[d.Kind] = append(byKind[d.Kind], d)
	}

	archived := 0
	for _, kind := range kinds {
		n, err := w.archiveKind(ctx, kind, byKind[kind])
		archived += n
		if err != nil {
			return archived, fmt.Errorf("archive %s: %w", kind, err)
		}
	}
	return archived, nil
}

func (w *ArchiveWorker) archiveKind(ctx context.Context, kind string, docs []archivedDocument) (int, error) {
	now := w.now().UTC()
	key := fmt.Sprintf("archive/%s/%s/%s.json", slug.Make(kind), now.Format("2006/01/02"), w.newID())

	var body bytes.Buffer
	body.WriteByte('[')
	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		if i > 0 {
			body.WriteByte(',')
		}
		body.WriteString(d.Document)
		ids = append(ids, d.GameID)
	}
	body.WriteByte(']')

	if err := w.store.PutJSON(ctx, key, body.Bytes()); err != nil {
		return 0, err
	}

	var marked int64
	err := w.gw.WithTransaction(ctx, func(tx storage.Handle) error {
		n, err := tx.Exec(ctx, markArchivedSQL, now, kind, ids)
		marked = n
		return err
	})
	if err != nil {
		return 0, err
	}
	w.logger.Debug("archived documents", "kind", kind, "key", key, "count", marked)
	return int(marked), nil
}
