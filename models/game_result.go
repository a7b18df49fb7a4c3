// models/game_result.go
package models

import "time"

// GameResult is one finished dice-scoring game. Column and JSON names are
// the lower-cased names clients have always read back.
type GameResult struct {
	GameNumber int64  `json:"gamenumber" gorm:"column:gamenumber;not null;uniqueIndex:idx_game_results_game_player,priority:1"`
	GamePlayer string `json:"gameplayer" gorm:"column:gameplayer;not null;uniqueIndex:idx_game_results_game_player,priority:2;index"`

	// Upper section
	Ones   *int64 `json:"ones" gorm:"column:ones"`
	Twos   *int64 `json:"twos" gorm:"column:twos"`
	Threes *int64 `json:"threes" gorm:"column:threes"`
	Fours  *int64 `json:"fours" gorm:"column:fours"`
	Fives  *int64 `json:"fives" gorm:"column:fives"`
	Sixes  *int64 `json:"sixes" gorm:"column:sixes"`

	// Lower section
	Evens         *int64 `json:"evens" gorm:"column:evens"`
	Odds          *int64 `json:"odds" gorm:"column:odds"`
	OnePair       *int64 `json:"onepair" gorm:"column:onepair"`
	TwoPair       *int64 `json:"twopair" gorm:"column:twopair"`
	ThreeOfAKind  *int64 `json:"threeofakind" gorm:"column:threeofakind"`
	FourOfAKind   *int64 `json:"fourofakind" gorm:"column:fourofakind"`
	FullHouse     *int64 `json:"fullhouse" gorm:"column:fullhouse"`
	SmallStraight *int64 `json:"smallstraight" gorm:"column:smallstraight"`
	LargeStraight *int64 `json:"largestraight" gorm:"column:largestraight"`
	Yahtzee       *int64 `json:"yahtzee" gorm:"column:yahtzee"`
	Chance        *int64 `json:"chance" gorm:"column:chance"`

	// Totals
	UpperTotal *int64 `json:"uppertotal" gorm:"column:uppertotal"`
	UpperBonus *int64 `json:"upperbonus" gorm:"column:upperbonus"`
	LowerTotal *int64 `json:"lowertotal" gorm:"column:lowertotal"`
	GrandTotal int64  `json:"grandtotal" gorm:"column:grandtotal;not null"`

	CreatedAt time.Time `json:"-" gorm:"column:created_at;autoCreateTime"`
}

func (GameResult) TableName() string { return "game_results" }

// AggregateStat is derived from game_results on every read.
type AggregateStat struct {
	GamePlayer     string  `json:"gameplayer" gorm:"column:gameplayer"`
	GamesPlayed    int64   `json:"gamesplayed" gorm:"column:gamesplayed"`
	AverageScore   float64 `json:"averagescore" gorm:"column:averagescore"`
	HighScore      int64   `json:"highscore" gorm:"column:highscore"`
	AverageUpper   float64 `json:"averageupper" gorm:"column:averageupper"`
	AverageLower   float64 `json:"averagelower" gorm:"column:averagelower"`
	YahtzeesScored int64   `json:"yahtzeesscored" gorm:"column:yahtzeesscored"`
}
