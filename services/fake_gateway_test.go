package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"game-records-api/models"
	"game-records-api/storage"
)

// fakeGateway is an in-memory storage.Gateway that understands the
// statements in queries.go. Rows come back in insertion order so the
// reader's own ordering is what the tests observe.
type fakeGateway struct {
	mu    sync.Mutex
	state fakeState

	// failOn, when set, is consulted before every statement.
	failOn func(statement string, args []any) error
	execs  int
	txs    int
}

type fakeState struct {
	results []models.GameResult
	turns   []turnRow
	docs    []documentRow
}

func (s fakeState) clone() fakeState {
	return fakeState{
		results: append([]models.GameResult(nil), s.results...),
		turns:   append([]turnRow(nil), s.turns...),
		docs:    append([]documentRow(nil), s.docs...),
	}
}

func newFakeGateway() *fakeGateway { return &fakeGateway{} }

type fakeHandle struct{ g *fakeGateway }

func (h fakeHandle) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	return h.g.exec(ctx, statement, args)
}

func (h fakeHandle) Select(ctx context.Context, dest any, statement string, args ...any) error {
	return h.g.query(ctx, dest, statement, args)
}

func (g *fakeGateway) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exec(ctx, statement, args)
}

func (g *fakeGateway) Select(ctx context.Context, dest any, statement string, args ...any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.query(ctx, dest, statement, args)
}

func (g *fakeGateway) WithTransaction(ctx context.Context, fn func(tx storage.Handle) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txs++
	snapshot := g.state.clone()
	if err := fn(fakeHandle{g}); err != nil {
		g.state = snapshot
		return err
	}
	return nil
}

func (g *fakeGateway) Ping(context.Context) error { return nil }
func (g *fakeGateway) Close() error               { return nil }

func (g *fakeGateway) check(ctx context.Context, statement string, args []any) error {
	if err := ctx.Err(); err != nil {
		return &storage.PersistenceError{Kind: storage.Unavailable, Err: err}
	}
	if g.failOn != nil {
		return g.failOn(statement, args)
	}
	return nil
}

func conflict(format string, args ...any) error {
	return &storage.PersistenceError{Kind: storage.Conflict, Op: "exec", Err: fmt.Errorf(format, args...)}
}

func (g *fakeGateway) exec(ctx context.Context, statement string, args []any) (int64, error) {
	if err := g.check(ctx, statement, args); err != nil {
		return 0, err
	}
	g.execs++

	switch statement {
	case insertGameResultSQL:
		if len(args) != 23 {
			return 0, fmt.Errorf("game result insert: %d args", len(args))
		}
		res := models.GameResult{
			GameNumber: args[0].(int64),
			GamePlayer: args[1].(string),
			GrandTotal: args[22].(int64),
		}
		cols := []**int64{
			&res.Ones, &res.Twos, &res.Threes, &res.Fours, &res.Fives, &res.Sixes,
			&res.Evens, &res.Odds, &res.OnePair, &res.TwoPair, &res.ThreeOfAKind, &res.FourOfAKind,
			&res.FullHouse, &res.SmallStraight, &res.LargeStraight, &res.Yahtzee, &res.Chance,
			&res.UpperTotal, &res.UpperBonus, &res.LowerTotal,
		}
		for i, c := range cols {
			*c = args[2+i].(*int64)
		}
		for _, r := range g.state.results {
			if r.GameNumber == res.GameNumber && r.GamePlayer == res.GamePlayer {
				return 0, conflict("duplicate key value violates unique constraint \"idx_game_results_game_player\"")
			}
		}
		g.state.results = append(g.state.results, res)
		return 1, nil

	case insertTurnSQL:
		bonus := args[6].(int64)
		row := turnRow{
			GameNumber: args[0].(int64),
			GamePlayer: args[1].(string),
			TurnNumber: args[2].(int64),
			RollCount:  args[3].(int64),
			Category:   args[4].(string),
			Score:      args[5].(int64),
			Bonus:      &bonus,
		}
		if p, ok := args[7].(string); ok {
			row.Payload = &p
		}
		for _, t := range g.state.turns {
			if t.GameNumber == row.GameNumber && t.GamePlayer == row.GamePlayer && t.TurnNumber == row.TurnNumber {
				return 0, conflict("duplicate key value violates unique constraint \"idx_turn_results_game_turn\"")
			}
		}
		g.state.turns = append(g.state.turns, row)
		return 1, nil

	case insertDocumentSQL:
		row := documentRow{
			Kind:       args[0].(string),
			GameID:     args[1].(string),
			PlayerName: args[2].(string),
			Winner:     args[3].(string),
			PlayedAt:   args[4].(time.Time),
			Document:   args[5].(string),
		}
		for _, d := range g.state.docs {
			if d.Kind == row.Kind && d.GameID == row.GameID {
				return 0, nil
			}
		}
		g.state.docs = append(g.state.docs, row)
		return 1, nil
	}
	return 0, fmt.Errorf("fake gateway: unexpected exec %q", statement)
}

func (g *fakeGateway) query(ctx context.Context, dest any, statement string, args []any) error {
	if err := g.check(ctx, statement, args); err != nil {
		return err
	}

	switch statement {
	case resultsForPlayerSQL:
		out := dest.(*[]models.GameResult)
		for _, r := range g.state.results {
			if r.GamePlayer == args[0].(string) {
				*out = append(*out, r)
			}
		}
		return nil

	case ownersOfGameSQL:
		game := args[0].(int64)
		out := dest.(*[]string)
		for _, r := range g.state.results {
			if r.GameNumber == game {
				*out = append(*out, r.GamePlayer)
			}
		}
		sort.Strings(*out)
		return nil

	case turnsForPlayerSQL:
		player := args[0].(string)
		out := dest.(*[]turnRow)
		for _, t := range g.state.turns {
			if t.GamePlayer == player {
				*out = append(*out, t)
			}
		}
		return nil

	case turnsForGameSQL:
		game, player := args[0].(int64), args[1].(string)
		out := dest.(*[]turnRow)
		for _, t := range g.state.turns {
			if t.GameNumber == game && t.GamePlayer == player {
				*out = append(*out, t)
			}
		}
		return nil

	case averagesSQL, averagesForPlayerSQL:
		player := ""
		if statement == averagesForPlayerSQL {
			player = args[0].(string)
		}
		*dest.(*[]models.AggregateStat) = append(*dest.(*[]models.AggregateStat), g.averages(player)...)
		return nil

	case documentsByKindSQL, documentsByKindForPlayerSQL:
		kind := args[0].(string)
		player := ""
		if statement == documentsByKindForPlayerSQL {
			player = args[1].(string)
		}
		out := dest.(*[]documentRow)
		for _, d := range g.state.docs {
			if d.Kind == kind && (player == "" || d.PlayerName == player) {
				*out = append(*out, d)
			}
		}
		return nil

	case latestDocumentsByKindSQL:
		kind, limit := args[0].(string), args[1].(int)
		var rows []documentRow
		for _, d := range g.state.docs {
			if d.Kind == kind {
				rows = append(rows, d)
			}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].PlayedAt.Equal(rows[j].PlayedAt) {
				return rows[i].PlayedAt.After(rows[j].PlayedAt)
			}
			return rows[i].GameID > rows[j].GameID
		})
		if len(rows) > limit {
			rows = rows[:limit]
		}
		*dest.(*[]documentRow) = append(*dest.(*[]documentRow), rows...)
		return nil

	case sameDocumentSQL:
		doc, kind, id := args[0].(string), args[1].(string), args[2].(string)
		out := dest.(*[]bool)
		for _, d := range g.state.docs {
			if d.Kind == kind && d.GameID == id {
				*out = append(*out, sameJSON(d.Document, doc))
			}
		}
		return nil
	}
	return fmt.Errorf("fake gateway: unexpected select %q", statement)
}

func (g *fakeGateway) averages(player string) []models.AggregateStat {
	type acc struct {
		stat               models.AggregateStat
		total              int64
		upper, lower       int64
		upperNum, lowerNum int64
	}
	byPlayer := map[string]*acc{}
	for _, r := range g.state.results {
		if player != "" && r.GamePlayer != player {
			continue
		}
		a, ok := byPlayer[r.GamePlayer]
		if !ok {
			a = &acc{stat: models.AggregateStat{GamePlayer: r.GamePlayer, HighScore: r.GrandTotal}}
			byPlayer[r.GamePlayer] = a
		}
		a.stat.GamesPlayed++
		a.total += r.GrandTotal
		if r.GrandTotal > a.stat.HighScore {
			a.stat.HighScore = r.GrandTotal
		}
		if r.UpperTotal != nil {
			a.upper += *r.UpperTotal
			a.upperNum++
		}
		if r.LowerTotal != nil {
			a.lower += *r.LowerTotal
			a.lowerNum++
		}
		if r.Yahtzee != nil && *r.Yahtzee > 0 {
			a.stat.YahtzeesScored++
		}
	}
	stats := make([]models.AggregateStat, 0, len(byPlayer))
	for _, a := range byPlayer {
		a.stat.AverageScore = float64(a.total) / float64(a.stat.GamesPlayed)
		if a.upperNum > 0 {
			a.stat.AverageUpper = float64(a.upper) / float64(a.upperNum)
		}
		if a.lowerNum > 0 {
			a.stat.AverageLower = float64(a.lower) / float64(a.lowerNum)
		}
		stats = append(stats, a.stat)
	}
	return stats
}

// sameJSON mirrors jsonb equality closely enough for the tests: whitespace
// is ignored, key order is not.
func sameJSON(a, b string) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, []byte(a)) != nil || json.Compact(&cb, []byte(b)) != nil {
		return a == b
	}
	return ca.String() == cb.String()
}

var errInjected = errors.New("injected failure")
