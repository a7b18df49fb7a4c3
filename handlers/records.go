// handlers/records.go
package handlers

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"game-records-api/models"
	"game-records-api/validation"

	"github.com/gofiber/fiber/v2"
)

// RecordWriter persists validated submissions.
type RecordWriter interface {
	SubmitGame(ctx context.Context, res *models.GameResult) error
	SubmitTurns(ctx context.Context, turns []models.TurnRecord) error
	SubmitGameBatch(ctx context.Context, docs []models.GameDocument) (int, error)
}

// RecordReader serves history and statistics.
type RecordReader interface {
	ResultsForPlayer(ctx context.Context, player string) ([]models.GameResult, error)
	TurnsForPlayer(ctx context.Context, player string) ([]models.TurnRecord, error)
	TurnsForGame(ctx context.Context, player string, gameNumber int64) ([]models.TurnRecord, error)
	Averages(ctx context.Context, player string) ([]models.AggregateStat, error)
	CardGames(ctx context.Context) ([]models.CardGameSummary, error)
	TicTacToeGames(ctx context.Context) ([]json.RawMessage, error)
	BlackjackGames(ctx context.Context, player string) ([]json.RawMessage, error)
}

type recordHandlers struct {
	writer RecordWriter
	reader RecordReader
}

func SetupRecordRoutes(router fiber.Router, writer RecordWriter, reader RecordReader) {
	h := &recordHandlers{writer: writer, reader: reader}

	router.Post("/postGameResults", h.postGameResults)
	router.Post("/postGameTurns", h.postGameTurns)
	router.Get("/getAllGameResults/:player", h.getAllGameResults)
	router.Get("/getAllTurnResults/:player", h.getAllTurnResults)
	router.Get("/getTurnsByGame/:player/:gameNumber", h.getTurnsByGame)
	router.Get("/getGameAverages", h.getGameAverages)
}

func (h *recordHandlers) postGameResults(c *fiber.Ctx) error {
	res, err := validation.GameResult(c.Body())
	if err != nil {
		return err
	}
	if err := h.writer.SubmitGame(c.UserContext(), res); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Game result saved successfully."})
}

func (h *recordHandlers) postGameTurns(c *fiber.Ctx) error {
	turns, err := validation.Turns(c.Body())
	if err != nil {
		return err
	}
	if err := h.writer.SubmitTurns(c.UserContext(), turns); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "All turns saved successfully."})
}

func (h *recordHandlers) getAllGameResults(c *fiber.Ctx) error {
	player, err := playerParam(c)
	if err != nil {
		return err
	}
	results, err := h.reader.ResultsForPlayer(c.UserContext(), player)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

func (h *recordHandlers) getAllTurnResults(c *fiber.Ctx) error {
	player, err := playerParam(c)
	if err != nil {
		return err
	}
	turns, err := h.reader.TurnsForPlayer(c.UserContext(), player)
	if err != nil {
		return err
	}
	return c.JSON(turns)
}

func (h *recordHandlers) getTurnsByGame(c *fiber.Ctx) error {
	player, err := playerParam(c)
	if err != nil {
		return err
	}
	gameNumber, err := strconv.ParseInt(c.Params("gameNumber"), 10, 64)
	if err != nil {
		return &validation.Error{Field: "gameNumber", Index: -1, Reason: "must be a whole number"}
	}
	turns, err := h.reader.TurnsForGame(c.UserContext(), player, gameNumber)
	if err != nil {
		return err
	}
	return c.JSON(turns)
}

func (h *recordHandlers) getGameAverages(c *fiber.Ctx) error {
	stats, err := h.reader.Averages(c.UserContext(), validation.PlayerName(c.Query("player")))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// playerParam decodes the :player segment and normalizes it the same way
// submitted names are.
func playerParam(c *fiber.Ctx) (string, error) {
	raw, err := url.PathUnescape(c.Params("player"))
	if err != nil {
		return "", &validation.Error{Field: "player", Index: -1, Reason: "is not a valid path segment"}
	}
	player := validation.PlayerName(raw)
	if player == "" {
		return "", &validation.Error{Field: "player", Index: -1, Reason: "is required"}
	}
	return player, nil
}
