// handlers/game.go
package handlers

import (
	"game-records-api/models"
	"game-records-api/validation"

	"github.com/gofiber/fiber/v2"
)

// SetupGameRoutes registers the whole-game document endpoints.
func SetupGameRoutes(router fiber.Router, writer RecordWriter, reader RecordReader) {
	h := &recordHandlers{writer: writer, reader: reader}

	router.Post("/postStarSystem", h.postStarSystem)
	router.Post("/postCardGame", h.postCardGame)
	router.Get("/getAllCardGames", h.getAllCardGames)
	router.Post("/postBlackjackGames", h.postBlackjackGames)
	router.Get("/getBlackjackGames/:player", h.getBlackjackGames)
	router.Post("/postTicTacToeGames", h.postTicTacToeGames)
	router.Get("/getTicTacToeGames", h.getTicTacToeGames)
}

func (h *recordHandlers) postStarSystem(c *fiber.Ctx) error {
	doc, err := validation.StarSystem(c.Body())
	if err != nil {
		return err
	}
	docs := []models.GameDocument{*doc}
	if _, err := h.writer.SubmitGameBatch(c.UserContext(), docs); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Star system saved successfully.", "id": docs[0].GameID})
}

func (h *recordHandlers) postCardGame(c *fiber.Ctx) error {
	doc, err := validation.CardGame(c.Body())
	if err != nil {
		return err
	}
	if _, err := h.writer.SubmitGameBatch(c.UserContext(), []models.GameDocument{*doc}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Card game saved successfully."})
}

func (h *recordHandlers) postBlackjackGames(c *fiber.Ctx) error {
	docs, err := validation.BlackjackGames(c.Body())
	if err != nil {
		return err
	}
	stored, err := h.writer.SubmitGameBatch(c.UserContext(), docs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Blackjack games saved successfully.", "saved": stored})
}

func (h *recordHandlers) postTicTacToeGames(c *fiber.Ctx) error {
	docs, err := validation.TicTacToeGames(c.Body())
	if err != nil {
		return err
	}
	stored, err := h.writer.SubmitGameBatch(c.UserContext(), docs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Tic-tac-toe games saved successfully.", "saved": stored})
}

func (h *recordHandlers) getAllCardGames(c *fiber.Ctx) error {
	games, err := h.reader.CardGames(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(games)
}

func (h *recordHandlers) getBlackjackGames(c *fiber.Ctx) error {
	player, err := playerParam(c)
	if err != nil {
		return err
	}
	games, err := h.reader.BlackjackGames(c.UserContext(), player)
	if err != nil {
		return err
	}
	return c.JSON(games)
}

func (h *recordHandlers) getTicTacToeGames(c *fiber.Ctx) error {
	games, err := h.reader.TicTacToeGames(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(games)
}
