package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"game-records-api/models"
)

func TestTurnOrdering(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	// Submitted out of order, across two batches per game.
	for _, batch := range [][]models.TurnRecord{
		turnsFor(1, "A", 3, 1),
		turnsFor(2, "A", 2),
		turnsFor(1, "A", 2),
		turnsFor(2, "A", 1, 3),
		turnsFor(1, "B", 1),
	} {
		if err := w.SubmitTurns(ctx, batch); err != nil {
			t.Fatalf("SubmitTurns: %v", err)
		}
	}

	all, err := r.TurnsForPlayer(ctx, "A")
	if err != nil {
		t.Fatalf("TurnsForPlayer: %v", err)
	}
	var got []string
	for _, turn := range all {
		got = append(got, fmt.Sprintf("%d/%d", turn.GameNumber, turn.TurnNumber))
	}
	want := []string{"2/1", "2/2", "2/3", "1/1", "1/2", "1/3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	game, err := r.TurnsForGame(ctx, "A", 1)
	if err != nil {
		t.Fatalf("TurnsForGame: %v", err)
	}
	for i, turn := range game {
		if turn.TurnNumber != int64(i+1) {
			t.Fatalf("turn %d has number %d", i, turn.TurnNumber)
		}
	}
}

func TestTurnsNormalizeLegacyRows(t *testing.T) {
	gw := newFakeGateway()
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	// Rows written before bonus was recorded.
	gw.state.turns = append(gw.state.turns,
		turnRow{GameNumber: 5, GamePlayer: "A", TurnNumber: 2, RollCount: 1, Category: "ones", Score: 3},
		turnRow{GameNumber: 5, GamePlayer: "A", TurnNumber: 1, RollCount: 3, Category: "twos", Score: 4},
		turnRow{GameNumber: 5, GamePlayer: "B", TurnNumber: 1, RollCount: 3, Category: "twos", Score: 4},
	)

	turns, err := r.TurnsForPlayer(ctx, "A")
	if err != nil {
		t.Fatalf("TurnsForPlayer: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	for _, turn := range turns {
		if turn.GamePlayer != "A" {
			t.Errorf("player = %q, want A", turn.GamePlayer)
		}
		body, _ := json.Marshal(turn)
		var wire map[string]any
		if err := json.Unmarshal(body, &wire); err != nil {
			t.Fatal(err)
		}
		if wire["bonus"] != float64(0) {
			t.Errorf("bonus = %v, want 0", wire["bonus"])
		}
	}
}

func TestTurnsKeepPayload(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	batch := turnsFor(1, "A", 1)
	batch[0].Bonus = 35
	if err := w.SubmitTurns(ctx, batch); err != nil {
		t.Fatal(err)
	}
	got, err := r.TurnsForGame(ctx, "A", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Bonus != 35 || string(got[0].Payload) != `[1,2,3,4,5]` {
		t.Fatalf("got %+v", got)
	}
}

func TestEmptyReads(t *testing.T) {
	r := NewAggregationReader(newFakeGateway(), quietLogger())
	ctx := context.Background()

	results, err := r.ResultsForPlayer(ctx, "nobody")
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("ResultsForPlayer = %v, %v", results, err)
	}
	turns, err := r.TurnsForPlayer(ctx, "nobody")
	if err != nil || turns == nil || len(turns) != 0 {
		t.Fatalf("TurnsForPlayer = %v, %v", turns, err)
	}
	stats, err := r.Averages(ctx, "nobody")
	if err != nil || stats == nil || len(stats) != 0 {
		t.Fatalf("Averages = %v, %v", stats, err)
	}
	cards, err := r.CardGames(ctx)
	if err != nil || cards == nil || len(cards) != 0 {
		t.Fatalf("CardGames = %v, %v", cards, err)
	}
	games, err := r.TicTacToeGames(ctx)
	if err != nil || games == nil || len(games) != 0 {
		t.Fatalf("TicTacToeGames = %v, %v", games, err)
	}
}

func TestAverages(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	for _, res := range []*models.GameResult{
		sampleResult(1, "B", 100),
		sampleResult(1, "A", 120),
		sampleResult(2, "A", 180),
	} {
		if err := w.SubmitGame(ctx, res); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := r.Averages(ctx, "")
	if err != nil {
		t.Fatalf("Averages: %v", err)
	}
	if len(stats) != 2 || stats[0].GamePlayer != "A" || stats[1].GamePlayer != "B" {
		t.Fatalf("stats = %+v", stats)
	}
	a := stats[0]
	if a.GamesPlayed != 2 || a.AverageScore != 150 || a.HighScore != 180 || a.YahtzeesScored != 2 {
		t.Fatalf("A = %+v", a)
	}

	only, err := r.Averages(ctx, "B")
	if err != nil || len(only) != 1 || only[0].AverageScore != 100 {
		t.Fatalf("Averages(B) = %+v, %v", only, err)
	}
}

func TestCardGamesReshaped(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	docs := []models.GameDocument{
		{
			Kind: models.KindCard, GameID: "c1", Winner: "Ann", PlayedAt: older,
			Document: json.RawMessage(`{"gameId":"c1","winner":"Ann","finalScores":[{"player":"Ann","score":10},{"player":"Bo","score":4}],"turnHistory":[{},{},{}]}`),
		},
		{
			Kind: models.KindCard, GameID: "c2", Winner: "Bo", PlayedAt: newer,
			Document: json.RawMessage(`{"gameId":"c2","winner":"Bo","finalScores":[],"turnHistory":[]}`),
		},
	}
	if _, err := w.SubmitGameBatch(ctx, docs[:1]); err != nil {
		t.Fatal(err)
	}
	if _, err := w.SubmitGameBatch(ctx, docs[1:]); err != nil {
		t.Fatal(err)
	}

	got, err := r.CardGames(ctx)
	if err != nil {
		t.Fatalf("CardGames: %v", err)
	}
	if len(got) != 2 || got[0].GameID != "c2" || got[1].GameID != "c1" {
		t.Fatalf("order = %+v", got)
	}
	c1 := got[1]
	if fmt.Sprint(c1.Players) != "[Ann Bo]" || c1.TotalTurns != 3 || c1.Winner != "Ann" {
		t.Fatalf("c1 = %+v", c1)
	}
	if len(got[0].Players) != 0 || got[0].Players == nil {
		t.Fatalf("c2 players = %#v", got[0].Players)
	}
}

func TestTicTacToeLatestHundred(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var docs []models.GameDocument
	for i := 0; i < TicTacToeListLimit+5; i++ {
		id := fmt.Sprintf("t%03d", i)
		docs = append(docs, models.GameDocument{
			Kind:     models.KindTicTacToe,
			GameID:   id,
			PlayedAt: base.Add(time.Duration(i) * time.Minute),
			Document: json.RawMessage(fmt.Sprintf(`{"gameId":%q}`, id)),
		})
	}
	if _, err := w.SubmitGameBatch(ctx, docs); err != nil {
		t.Fatal(err)
	}

	got, err := r.TicTacToeGames(ctx)
	if err != nil {
		t.Fatalf("TicTacToeGames: %v", err)
	}
	if len(got) != TicTacToeListLimit {
		t.Fatalf("got %d games, want %d", len(got), TicTacToeListLimit)
	}
	if string(got[0]) != `{"gameId":"t104"}` || string(got[len(got)-1]) != `{"gameId":"t005"}` {
		t.Fatalf("first = %s, last = %s", got[0], got[len(got)-1])
	}
}

func TestCardAndBlackjackListingsAreComplete(t *testing.T) {
	gw := newFakeGateway()
	w := NewBatchWriter(gw, quietLogger())
	r := NewAggregationReader(gw, quietLogger())
	ctx := context.Background()

	const n = 1205
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var docs []models.GameDocument
	for i := 0; i < n; i++ {
		docs = append(docs,
			models.GameDocument{
				Kind: models.KindCard, GameID: fmt.Sprintf("c%04d", i), PlayedAt: base.Add(time.Duration(i) * time.Second),
				Document: json.RawMessage(`{"finalScores":[],"turnHistory":[]}`),
			},
			models.GameDocument{
				Kind: models.KindBlackjack, GameID: fmt.Sprintf("b%04d", i), PlayerName: "Ann", PlayedAt: base.Add(time.Duration(i) * time.Second),
				Document: json.RawMessage(`{"netWinnings":1}`),
			},
		)
	}
	if _, err := w.SubmitGameBatch(ctx, docs); err != nil {
		t.Fatal(err)
	}

	cards, err := r.CardGames(ctx)
	if err != nil || len(cards) != n {
		t.Fatalf("CardGames = %d games, %v; want %d", len(cards), err, n)
	}
	if cards[0].GameID != "c1204" || cards[n-1].GameID != "c0000" {
		t.Fatalf("first = %s, last = %s", cards[0].GameID, cards[n-1].GameID)
	}
	hands, err := r.BlackjackGames(ctx, "Ann")
	if err != nil || len(hands) != n {
		t.Fatalf("BlackjackGames = %d games, %v; want %d", len(hands), err, n)
	}
}
