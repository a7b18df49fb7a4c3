// models/game_document.go
package models

import (
	"encoding/json"
	"time"
)

// Document kinds stored in game_documents.
const (
	KindCard       = "card"
	KindBlackjack  = "blackjack"
	KindTicTacToe  = "tictactoe"
	KindStarSystem = "star_system"
)

// GameDocument is a whole game submitted as one JSON document.
type GameDocument struct {
	Kind       string          `json:"kind" gorm:"primaryKey;type:varchar(32)"`
	GameID     string          `json:"gameId" gorm:"primaryKey"`
	PlayerName string          `json:"playerName,omitempty" gorm:"index"`
	Winner     string          `json:"winner,omitempty"`
	PlayedAt   time.Time       `json:"playedAt" gorm:"index"`
	Document   json.RawMessage `json:"document" gorm:"type:jsonb;not null"`
	ArchivedAt *time.Time      `json:"archivedAt,omitempty" gorm:"index"`
	CreatedAt  time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

func (GameDocument) TableName() string { return "game_documents" }

// CardGameSummary is the reshaped listing row for card games.
type CardGameSummary struct {
	GameID      string          `json:"gameId"`
	Timestamp   time.Time       `json:"timestamp"`
	Winner      string          `json:"winner"`
	Players     []string        `json:"players"`
	FinalScores json.RawMessage `json:"finalScores"`
	TotalTurns  int64           `json:"totalTurns"`
}

// All returns every model the schema bootstrap creates.
func All() []any {
	return []any{&GameResult{}, &TurnRecord{}, &GameDocument{}}
}
