// services/aggregation_reader.go
package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"game-records-api/models"
	"game-records-api/storage"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
)

// TicTacToeListLimit is how many of the latest tic-tac-toe games are listed.
// Card and blackjack listings are not capped.
const TicTacToeListLimit = 100

// AggregationReader serves read-only history and statistics. An empty
// result is an empty slice, never an error.
type AggregationReader struct {
	gw     storage.Gateway
	logger *log.Logger
}

func NewAggregationReader(gw storage.Gateway, logger *log.Logger) *AggregationReader {
	return &AggregationReader{gw: gw, logger: logger}
}

// turnRow carries the payload as text so jsonb never has to be scanned.
type turnRow struct {
	GameNumber int64   `gorm:"column:gamenumber"`
	GamePlayer string  `gorm:"column:gameplayer"`
	TurnNumber int64   `gorm:"column:turnnumber"`
	RollCount  int64   `gorm:"column:rollcount"`
	Category   string  `gorm:"column:category"`
	Score      int64   `gorm:"column:score"`
	Bonus      *int64  `gorm:"column:bonus"`
	Payload    *string `gorm:"column:payload"`
}

type documentRow struct {
	Kind       string    `gorm:"column:kind"`
	GameID     string    `gorm:"column:game_id"`
	PlayerName string    `gorm:"column:player_name"`
	Winner     string    `gorm:"column:winner"`
	PlayedAt   time.Time `gorm:"column:played_at"`
	Document   string    `gorm:"column:document"`
}

// ResultsForPlayer returns the player's games, newest game number first.
func (r *AggregationReader) ResultsForPlayer(ctx context.Context, player string) ([]models.GameResult, error) {
	results := []models.GameResult{}
	if err := r.gw.Select(ctx, &results, resultsForPlayerSQL, player); err != nil {
		r.logger.Error("reading game results failed", "player", player, "err", err)
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].GameNumber > results[j].GameNumber
	})
	return results, nil
}

// TurnsForPlayer returns every turn of the player's games, newest game
// first and turns ascending within a game.
func (r *AggregationReader) TurnsForPlayer(ctx context.Context, player string) ([]models.TurnRecord, error) {
	var rows []turnRow
	if err := r.gw.Select(ctx, &rows, turnsForPlayerSQL, player); err != nil {
		r.logger.Error("reading turns failed", "player", player, "err", err)
		return nil, err
	}
	turns := toTurns(rows)
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].GameNumber != turns[j].GameNumber {
			return turns[i].GameNumber > turns[j].GameNumber
		}
		return turns[i].TurnNumber < turns[j].TurnNumber
	})
	return turns, nil
}

// TurnsForGame returns one game's turns in ascending turn order.
func (r *AggregationReader) TurnsForGame(ctx context.Context, player string, gameNumber int64) ([]models.TurnRecord, error) {
	var rows []turnRow
	if err := r.gw.Select(ctx, &rows, turnsForGameSQL, gameNumber, player); err != nil {
		r.logger.Error("reading game turns failed", "player", player, "game", gameNumber, "err", err)
		return nil, err
	}
	turns := toTurns(rows)
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].TurnNumber < turns[j].TurnNumber
	})
	return turns, nil
}

// Averages computes per-player statistics on read. An empty player means
// every player.
func (r *AggregationReader) Averages(ctx context.Context, player string) ([]models.AggregateStat, error) {
	stats := []models.AggregateStat{}
	var err error
	if player == "" {
		err = r.gw.Select(ctx, &stats, averagesSQL)
	} else {
		err = r.gw.Select(ctx, &stats, averagesForPlayerSQL, player)
	}
	if err != nil {
		r.logger.Error("computing averages failed", "player", player, "err", err)
		return nil, err
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].GamePlayer < stats[j].GamePlayer
	})
	return stats, nil
}

// CardGames lists card games newest first, reshaped into summaries.
func (r *AggregationReader) CardGames(ctx context.Context) ([]models.CardGameSummary, error) {
	rows, err := r.documents(ctx, models.KindCard, "", 0)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.CardGameSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, cardSummary(row))
	}
	return summaries, nil
}

// TicTacToeGames returns the latest tic-tac-toe games as submitted.
func (r *AggregationReader) TicTacToeGames(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := r.documents(ctx, models.KindTicTacToe, "", TicTacToeListLimit)
	if err != nil {
		return nil, err
	}
	return rawDocuments(rows), nil
}

// BlackjackGames returns a player's blackjack games as submitted, newest first.
func (r *AggregationReader) BlackjackGames(ctx context.Context, player string) ([]json.RawMessage, error) {
	rows, err := r.documents(ctx, models.KindBlackjack, player, 0)
	if err != nil {
		return nil, err
	}
	return rawDocuments(rows), nil
}

// documents lists one kind newest first. A limit of 0 lists everything.
func (r *AggregationReader) documents(ctx context.Context, kind, player string, limit int) ([]documentRow, error) {
	var rows []documentRow
	var err error
	switch {
	case player != "":
		err = r.gw.Select(ctx, &rows, documentsByKindForPlayerSQL, kind, player)
	case limit > 0:
		err = r.gw.Select(ctx, &rows, latestDocumentsByKindSQL, kind, limit)
	default:
		err = r.gw.Select(ctx, &rows, documentsByKindSQL, kind)
	}
	if err != nil {
		r.logger.Error("reading game documents failed", "kind", kind, "player", player, "err", err)
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].PlayedAt.Equal(rows[j].PlayedAt) {
			return rows[i].PlayedAt.After(rows[j].PlayedAt)
		}
		return rows[i].GameID > rows[j].GameID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func toTurns(rows []turnRow) []models.TurnRecord {
	turns := make([]models.TurnRecord, 0, len(rows))
	for _, row := range rows {
		t := models.TurnRecord{
			GameNumber: row.GameNumber,
			GamePlayer: row.GamePlayer,
			TurnNumber: row.TurnNumber,
			RollCount:  row.RollCount,
			Category:   row.Category,
			Score:      row.Score,
		}
		if row.Bonus != nil {
			t.Bonus = *row.Bonus
		}
		if row.Payload != nil && *row.Payload != "" {
			t.Payload = json.RawMessage(*row.Payload)
		}
		turns = append(turns, t)
	}
	return turns
}

func cardSummary(row documentRow) models.CardGameSummary {
	doc := gjson.Parse(row.Document)
	s := models.CardGameSummary{
		GameID:      row.GameID,
		Timestamp:   row.PlayedAt.UTC(),
		Winner:      row.Winner,
		Players:     []string{},
		FinalScores: json.RawMessage("[]"),
		TotalTurns:  doc.Get("turnHistory.#").Int(),
	}
	if scores := doc.Get("finalScores"); scores.IsArray() {
		s.FinalScores = json.RawMessage(scores.Raw)
		for _, p := range scores.Get("#.player").Array() {
			if name := p.String(); name != "" {
				s.Players = append(s.Players, name)
			}
		}
	}
	return s
}

func rawDocuments(rows []documentRow) []json.RawMessage {
	docs := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, json.RawMessage(row.Document))
	}
	return docs
}
