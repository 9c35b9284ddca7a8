package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"wordgames/internal/models"
	"wordgames/internal/observability"
	"wordgames/internal/services"
	contextutils "wordgames/internal/utils"

	"github.com/gin-gonic/gin"
)

// GameHandler serves the word game endpoints
type GameHandler struct {
	gameService services.GameServiceInterface
	logger      *observability.Logger
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(gameService services.GameServiceInterface, logger *observability.Logger) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		logger:      logger,
	}
}

// parseKind resolves the :kind path parameter, writing the error response on failure
func (h *GameHandler) parseKind(c *gin.Context) (models.GameKind, bool) {
	kind, err := models.ParseGameKind(c.Param("kind"))
	if err != nil {
		HandleAppError(c, err)
		return "", false
	}
	return kind, true
}

// wordFilter collects the words query parameter, given repeated or comma separated
func wordFilter(c *gin.Context) []string {
	var words []string
	for _, raw := range c.QueryArray("words") {
		for _, w := range strings.Split(raw, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
	}
	return words
}

// PlayGame handles GET /v1/games/:kind/play
func (h *GameHandler) PlayGame(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "play_game")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	kind, ok := h.parseKind(c)
	if !ok {
		return
	}

	questions, err := h.gameService.PlayGame(ctx, userID, kind, wordFilter(c))
	if err != nil {
		h.logger.Error(ctx, "Failed to select questions", err, map[string]interface{}{
			"user_id": userID,
			"kind":    kind.String(),
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// PlayPassage handles GET /v1/games/:kind/play/passages/:id
func (h *GameHandler) PlayPassage(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "play_passage")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	kind, ok := h.parseKind(c)
	if !ok {
		return
	}

	passageID, err := strconv.Atoi(c.Param("id"))
	if err != nil || passageID <= 0 {
		HandleValidationError(c, "passage id", c.Param("id"), "must be a positive integer")
		return
	}

	questions, err := h.gameService.PlayPassage(ctx, userID, kind, passageID)
	if err != nil {
		if !contextutils.IsError(err, contextutils.ErrPassageNotFound) {
			h.logger.Error(ctx, "Failed to select passage questions", err, map[string]interface{}{
				"user_id":    userID,
				"kind":       kind.String(),
				"passage_id": passageID,
			})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// FinishGame handles POST /v1/games/:kind/finish
func (h *GameHandler) FinishGame(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "finish_game")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	kind, ok := h.parseKind(c)
	if !ok {
		return
	}

	var req models.FinishGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	record, err := h.gameService.FinishGame(ctx, userID, kind, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to finish game", err, map[string]interface{}{
			"user_id": userID,
			"kind":    kind.String(),
		})
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Game finished", map[string]interface{}{
		"user_id": userID,
		"kind":    kind.String(),
		"correct": record.CorrectAnswers,
		"wrong":   record.WrongAnswers,
	})
	c.JSON(http.StatusOK, record)
}

// ListMasteries handles GET /v1/mastery, paged with page and page_size
func (h *GameHandler) ListMasteries(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_masteries")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	entries, err := h.gameService.ListMasteries(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to list masteries", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	page, size := ParsePagination(c, 1, defaultPageSize, maxPageSize)
	items, pagination := paginate(entries, page, size)
	WritePaginated(c, "masteries", items, pagination)
}
