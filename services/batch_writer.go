// services/batch_writer.go
package services

import (
	"context"
	"fmt"
	"time"

	"game-records-api/models"
	"game-records-api/storage"
	"game-records-api/validation"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// BatchWriter persists validated records. It never retries a write:
// game and turn numbers are assigned by the caller, so a blind retry
// could store the same game twice.
type BatchWriter struct {
	gw     storage.Gateway
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewBatchWriter(gw storage.Gateway, logger *log.Logger) *BatchWriter {
	return &BatchWriter{
		gw:     gw,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SubmitGame stores one finished game in a single statement. A second
// result for the same player and game number is a conflict.
func (w *BatchWriter) SubmitGame(ctx context.Context, res *models.GameResult) error {
	_, err := w.gw.Exec(ctx, insertGameResultSQL,
		res.GameNumber, res.GamePlayer,
		res.Ones, res.Twos, res.Threes, res.Fours, res.Fives, res.Sixes,
		res.Evens, res.Odds, res.OnePair, res.TwoPair, res.ThreeOfAKind, res.FourOfAKind,
		res.FullHouse, res.SmallStraight, res.LargeStraight, res.Yahtzee, res.Chance,
		res.UpperTotal, res.UpperBonus, res.LowerTotal, res.GrandTotal,
	)
	if err != nil {
		w.logger.Error("saving game result failed", "game", res.GameNumber, "player", res.GamePlayer, "err", err)
		return err
	}
	w.logger.Info("game result saved", "game", res.GameNumber, "player", res.GamePlayer, "total", res.GrandTotal)
	return nil
}

// SubmitTurns stores a batch of turns in the order given, all or nothing.
// Readers never see a prefix of the batch. A turn sent without a player
// belongs to whoever has a stored result for its game number; when no one
// or several players do, the batch is rejected as invalid.
func (w *BatchWriter) SubmitTurns(ctx context.Context, turns []models.TurnRecord) error {
	if len(turns) == 0 {
		return nil
	}
	var invalid *validation.Error
	err := w.gw.WithTransaction(ctx, func(tx storage.Handle) error {
		owners := make(map[int64][]string)
		for i := range turns {
			t := &turns[i]
			if t.GamePlayer != "" {
				continue
			}
			names, ok := owners[t.GameNumber]
			if !ok {
				if err := tx.Select(ctx, &names, ownersOfGameSQL, t.GameNumber); err != nil {
					return err
				}
				owners[t.GameNumber] = names
			}
			if invalid = unresolvedOwner(i, t.GameNumber, names); invalid != nil {
				return invalid
			}
			t.GamePlayer = names[0]
		}

		for i := range turns {
			t := &turns[i]
			if _, err := tx.Exec(ctx, insertTurnSQL,
				t.GameNumber, t.GamePlayer, t.TurnNumber, t.RollCount,
				t.Category, t.Score, t.Bonus, payloadArg(t.Payload),
			); err != nil {
				return fmt.Errorf("turn %d of game %d: %w", t.TurnNumber, t.GameNumber, err)
			}
		}
		return nil
	})
	if invalid != nil {
		w.logger.Warn("turn batch rejected", "turns", len(turns), "err", invalid)
		return invalid
	}
	if err != nil {
		w.logger.Error("saving turns failed, batch rolled back", "turns", len(turns), "err", err)
		return err
	}
	w.logger.Info("turns saved", "turns", len(turns), "game", turns[0].GameNumber)
	return nil
}

func unresolvedOwner(i int, game int64, names []string) *validation.Error {
	var reason string
	switch len(names) {
	case 1:
		return nil
	case 0:
		reason = fmt.Sprintf("is required: no game result is stored for game %d", game)
	default:
		reason = fmt.Sprintf("is required: game %d belongs to %d players", game, len(names))
	}
	return &validation.Error{Field: fmt.Sprintf("[%d].playerName", i), Index: i, Reason: reason}
}

// SubmitGameBatch stores whole-game documents in one transaction.
// Re-sending a document that is already stored unchanged is a no-op;
// the same id with different content is a conflict and nothing from the
// batch is kept. It returns how many documents were newly stored.
func (w *BatchWriter) SubmitGameBatch(ctx context.Context, docs []models.GameDocument) (int, error) {
	stored := 0
	err := w.gw.WithTransaction(ctx, func(tx storage.Handle) error {
		stored = 0
		for i := range docs {
			d := &docs[i]
			if d.GameID == "" {
				d.GameID = w.newID()
			}
			if d.PlayedAt.IsZero() {
				d.PlayedAt = w.now().UTC()
			}
			n, err := tx.Exec(ctx, insertDocumentSQL,
				d.Kind, d.GameID, d.PlayerName, d.Winner, d.PlayedAt, string(d.Document))
			if err != nil {
				return err
			}
			if n == 1 {
				stored++
				continue
			}

			var same []bool
			if err := tx.Select(ctx, &same, sameDocumentSQL, string(d.Document), d.Kind, d.GameID); err != nil {
				return err
			}
			if len(same) == 0 || !same[0] {
				return &storage.PersistenceError{
					Kind: storage.Conflict,
					Op:   "submit game batch",
					Err:  fmt.Errorf("%s game %q is already stored with different content", d.Kind, d.GameID),
				}
			}
			w.logger.Debug("document already stored, skipping", "kind", d.Kind, "game_id", d.GameID)
		}
		return nil
	})
	if err != nil {
		w.logger.Error("saving game documents failed, batch rolled back", "documents", len(docs), "err", err)
		return 0, err
	}
	w.logger.Info("game documents saved", "documents", len(docs), "new", stored)
	return stored, nil
}

func payloadArg(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}
