// models/turn_record.go
package models

import (
	"encoding/json"
	"time"
)

// TurnRecord is one turn of a game. Bonus is never null once stored.
type TurnRecord struct {
	ID         int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	GameNumber int64  `json:"gamenumber" gorm:"column:gamenumber;not null;uniqueIndex:idx_turn_results_game_turn,priority:1"`
	GamePlayer string `json:"gameplayer" gorm:"column:gameplayer;not null;uniqueIndex:idx_turn_results_game_turn,priority:2;index"`
	TurnNumber int64  `json:"turnnumber" gorm:"column:turnnumber;not null;uniqueIndex:idx_turn_results_game_turn,priority:3"`
	RollCount  int64  `json:"rollcount" gorm:"column:rollcount;not null"`
	Category   string `json:"category" gorm:"column:category;not null"`
	Score      int64  `json:"score" gorm:"column:score;not null"`
	Bonus      int64  `json:"bonus" gorm:"column:bonus;not null;default:0"`

	// Raw dice or move payload as the client sent it.
	Payload json.RawMessage `json:"payload,omitempty" gorm:"column:payload;type:jsonb"`

	CreatedAt time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
}

func (TurnRecord) TableName() string { return "turn_results" }
