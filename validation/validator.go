// validation/validator.go
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"game-records-api/models"

	"github.com/tidwall/gjson"
)

// GameResult validates a `{"scores": {...}}` body. Every score field must
// be present; category scores may be null, grandTotal may not.
func GameResult(body []byte) (*models.GameResult, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	scores := root.Get("scores")
	if !scores.Exists() {
		return nil, &Error{Field: "scores", Index: -1, Reason: "is required"}
	}
	if !scores.IsObject() {
		return nil, &Error{Field: "scores", Index: -1, Reason: "must be an object"}
	}
	o := object{v: scores, prefix: "scores.", index: -1}

	res := &models.GameResult{}
	if res.GameNumber, err = o.integer("gameNumber"); err != nil {
		return nil, err
	}
	if res.GamePlayer, err = o.player("playerName"); err != nil {
		return nil, err
	}

	categories := []struct {
		key  string
		dest **int64
	}{
		{"ones", &res.Ones},
		{"twos", &res.Twos},
		{"threes", &res.Threes},
		{"fours", &res.Fours},
		{"fives", &res.Fives},
		{"sixes", &res.Sixes},
		{"evens", &res.Evens},
		{"odds", &res.Odds},
		{"onePair", &res.OnePair},
		{"twoPair", &res.TwoPair},
		{"threeKind", &res.ThreeOfAKind},
		{"fourKind", &res.FourOfAKind},
		{"fullHouse", &res.FullHouse},
		{"smallStraight", &res.SmallStraight},
		{"largeStraight", &res.LargeStraight},
		{"yahtzee", &res.Yahtzee},
		{"chance", &res.Chance},
		{"upperSubtotal", &res.UpperTotal},
		{"bonus", &res.UpperBonus},
		{"lowerTotal", &res.LowerTotal},
	}
	for _, c := range categories {
		if *c.dest, err = o.nullableInteger(c.key); err != nil {
			return nil, err
		}
	}
	if res.GrandTotal, err = o.integer("grandTotal"); err != nil {
		return nil, err
	}
	return res, nil
}

// Turns validates a JSON array of turn objects. A body that is not an
// array is rejected as a whole; otherwise every element is checked and
// the first bad one is reported.
func Turns(body []byte) ([]models.TurnRecord, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, bodyError("Expected an array of turn objects")
	}

	type turnKey struct {
		game   int64
		player string
		turn   int64
	}
	seen := make(map[turnKey]struct{})

	var turns []models.TurnRecord
	root.ForEach(func(_, el gjson.Result) bool {
		i := len(turns)
		var t models.TurnRecord
		t, err = turn(el, i)
		if err != nil {
			return false
		}
		k := turnKey{t.GameNumber, t.GamePlayer, t.TurnNumber}
		if _, dup := seen[k]; dup {
			err = &Error{
				Field:  fmt.Sprintf("[%d].turnNumber", i),
				Index:  i,
				Reason: fmt.Sprintf("duplicate turn %d for game %d", t.TurnNumber, t.GameNumber),
			}
			return false
		}
		seen[k] = struct{}{}
		turns = append(turns, t)
		return true
	})
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.TurnRecord{}
	}
	return turns, nil
}

func turn(el gjson.Result, i int) (models.TurnRecord, error) {
	var t models.TurnRecord
	o := object{v: el, prefix: fmt.Sprintf("[%d].", i), index: i}
	if !el.IsObject() {
		return t, &Error{Field: fmt.Sprintf("[%d]", i), Index: i, Reason: "must be an object"}
	}

	var err error
	if t.GameNumber, err = o.integer("gameNumber"); err != nil {
		return t, err
	}
	if t.TurnNumber, err = o.integer("turnNumber"); err != nil {
		return t, err
	}
	if t.TurnNumber < 1 {
		return t, o.fail("turnNumber", "must be 1 or greater, got %d", t.TurnNumber)
	}
	if t.RollCount, err = o.integer("rollCount", "moveIndex"); err != nil {
		return t, err
	}
	if t.Category, err = o.text("category", "action"); err != nil {
		return t, err
	}
	if t.Score, err = o.integer("score"); err != nil {
		return t, err
	}
	if t.Bonus, err = o.optionalInteger("bonus"); err != nil {
		return t, err
	}
	if r, _, ok := o.lookup("playerName"); ok && r.Type != gjson.Null {
		if t.GamePlayer, err = o.player("playerName"); err != nil {
			return t, err
		}
	}
	if r, _, ok := o.lookup("dice", "move"); ok && r.Type != gjson.Null {
		t.Payload = json.RawMessage(r.Raw)
	}
	return t, nil
}

// CardGame validates one card game document.
func CardGame(body []byte) (*models.GameDocument, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	doc, err := cardGame(object{v: root, index: -1})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func cardGame(o object) (models.GameDocument, error) {
	doc := models.GameDocument{Kind: models.KindCard, Document: json.RawMessage(o.v.Raw)}
	var err error
	if doc.GameID, err = o.identifier("gameId"); err != nil {
		return doc, err
	}
	if doc.PlayedAt, err = o.timestamp("timestamp"); err != nil {
		return doc, err
	}
	if doc.Winner, err = o.optionalPlayer("winner"); err != nil {
		return doc, err
	}
	if _, err = o.array("finalScores"); err != nil {
		return doc, err
	}
	if _, err = o.array("turnHistory"); err != nil {
		return doc, err
	}
	return doc, nil
}

// BlackjackGames validates a non-empty array of blackjack documents.
func BlackjackGames(body []byte) ([]models.GameDocument, error) {
	return documents(body, "blackjack games", blackjackGame)
}

func blackjackGame(o object) (models.GameDocument, error) {
	doc := models.GameDocument{Kind: models.KindBlackjack, Document: json.RawMessage(o.v.Raw)}
	var err error
	if doc.GameID, err = o.identifier("gameId"); err != nil {
		return doc, err
	}
	if doc.PlayedAt, err = o.timestamp("timestamp"); err != nil {
		return doc, err
	}
	if doc.PlayerName, err = o.player("playerName"); err != nil {
		return doc, err
	}
	if _, err = o.text("result"); err != nil {
		return doc, err
	}
	if _, err = o.number("netWinnings"); err != nil {
		return doc, err
	}
	return doc, nil
}

// TicTacToeGames validates a non-empty array of tic-tac-toe documents.
// winner may be null for a draw.
func TicTacToeGames(body []byte) ([]models.GameDocument, error) {
	return documents(body, "tic-tac-toe games", ticTacToeGame)
}

func ticTacToeGame(o object) (models.GameDocument, error) {
	doc := models.GameDocument{Kind: models.KindTicTacToe, Document: json.RawMessage(o.v.Raw)}
	var err error
	if doc.GameID, err = o.identifier("gameId"); err != nil {
		return doc, err
	}
	if doc.PlayedAt, err = o.timestamp("completedAt"); err != nil {
		return doc, err
	}
	if _, err = o.array("players"); err != nil {
		return doc, err
	}
	if doc.Winner, err = o.optionalPlayer("winner"); err != nil {
		return doc, err
	}
	if _, err = o.array("moves"); err != nil {
		return doc, err
	}
	return doc, nil
}

// StarSystem accepts any JSON object. The caller assigns the id.
func StarSystem(body []byte) (*models.GameDocument, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	return &models.GameDocument{Kind: models.KindStarSystem, Document: json.RawMessage(root.Raw)}, nil
}

func documents(body []byte, what string, one func(object) (models.GameDocument, error)) ([]models.GameDocument, error) {
	root, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	if !root.IsArray() {
		return nil, bodyError("expected a non-empty array of " + what)
	}
	els := root.Array()
	if len(els) == 0 {
		return nil, bodyError("expected a non-empty array of " + what)
	}

	docs := make([]models.GameDocument, 0, len(els))
	seen := make(map[string]struct{}, len(els))
	for i, el := range els {
		if !el.IsObject() {
			return nil, &Error{Field: fmt.Sprintf("[%d]", i), Index: i, Reason: "must be an object"}
		}
		doc, err := one(object{v: el, prefix: fmt.Sprintf("[%d].", i), index: i})
		if err != nil {
			return nil, err
		}
		if _, dup := seen[doc.GameID]; dup {
			return nil, &Error{Field: fmt.Sprintf("[%d].gameId", i), Index: i, Reason: fmt.Sprintf("duplicate gameId %q in batch", doc.GameID)}
		}
		seen[doc.GameID] = struct{}{}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseObject(body []byte) (gjson.Result, error) {
	root, err := parseBody(body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !root.IsObject() {
		return gjson.Result{}, bodyError("expected a JSON object")
	}
	return root, nil
}

// parseBody checks the body is JSON that Postgres can store: text and jsonb
// columns both refuse the NUL character.
func parseBody(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, bodyError("body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if bytes.Contains(body, []byte(`\u0000`)) {
		if path, found := findNUL(root, ""); found {
			return gjson.Result{}, &Error{Field: path, Index: -1, Reason: `must not contain the NUL character (\u0000)`}
		}
	}
	return root, nil
}

// findNUL returns the path of the first key or string holding a NUL.
func findNUL(r gjson.Result, path string) (string, bool) {
	switch {
	case r.Type == gjson.String:
		return path, strings.ContainsRune(r.Str, 0)
	case r.IsArray():
		for i, el := range r.Array() {
			if p, found := findNUL(el, fmt.Sprintf("%s[%d]", path, i)); found {
				return p, true
			}
		}
	case r.IsObject():
		var (
			at    string
			found bool
		)
		r.ForEach(func(k, v gjson.Result) bool {
			p := k.Str
			if path != "" {
				p = path + "." + k.Str
			}
			if strings.ContainsRune(k.Str, 0) {
				at, found = p, true
				return false
			}
			at, found = findNUL(v, p)
			return !found
		})
		return at, found
	}
	return "", false
}
