package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/services"
)

type GameHandler struct {
	responder
	gameService services.GameService
}

func NewGameHandler(gs services.GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		responder:   responder{logger: logger.With(slog.String("handler", "games"))},
		gameService: gs,
	}
}

// ListHandler godoc
// @Summary      List games
// @Tags         games
// @Produce      json
// @Param        sortBy        query  string  false  "title or time; other values keep insertion order"
// @Param        tournamentId  query  int     false  "only games of this tournament"
// @Success      200  {array}   dto.Game
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/Games [get]
func (h *GameHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	input := services.ListGamesInput{SortBy: r.URL.Query().Get("sortBy")}

	if raw := r.URL.Query().Get("tournamentId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			h.mapServiceErrorToHTTP(w, r, services.ErrInvalidTournamentID)
			return
		}
		input.TournamentID = &id
	}

	games, err := h.gameService.ListGames(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if len(games) == 0 {
		h.notFoundResponse(w, r, "No games found.")
		return
	}

	h.ok(w, r, http.StatusOK, games, nil)
}

// GetByIDHandler godoc
// @Summary      Get a game
// @Tags         games
// @Produce      json
// @Param        id   path      int  true  "Game ID"
// @Success      200  {object}  dto.Game
// @Failure      404  {object}  map[string]string
// @Router       /api/Games/{id} [get]
func (h *GameHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.GetGame(r.Context(), id)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, game, nil)
}

// SearchHandler godoc
// @Summary      Search games by title
// @Tags         games
// @Produce      json
// @Param        title  query     string  true  "case-insensitive substring of the title"
// @Success      200    {array}   dto.Game
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/Games/search [get]
func (h *GameHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))

	games, err := h.gameService.SearchGames(r.Context(), title)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if len(games) == 0 {
		h.notFoundResponse(w, r, fmt.Sprintf("No games found with the title '%s'.", title))
		return
	}

	h.ok(w, r, http.StatusOK, games, nil)
}

// CreateHandler godoc
// @Summary      Create a game
// @Tags         games
// @Accept       json
// @Produce      json
// @Param        game  body      dto.Game  true  "Game"
// @Success      201   {object}  dto.Game
// @Failure      400   {object}  map[string]string
// @Router       /api/Games [post]
func (h *GameHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input dto.Game
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.CreateGame(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/api/Games/%d", game.ID))
	h.ok(w, r, http.StatusCreated, game, headers)
}

// UpdateHandler godoc
// @Summary      Replace a game
// @Tags         games
// @Accept       json
// @Param        id    path  int       true  "Game ID"
// @Param        game  body  dto.Game  true  "Game; id must match the path"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/Games/{id} [put]
func (h *GameHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input dto.Game
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.ReplaceGame(r.Context(), id, input); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PatchHandler godoc
// @Summary      Patch a game
// @Description  Applies a JSON Patch document to title, time and tournamentId.
// @Tags         games
// @Accept       json
// @Param        id     path  int                true  "Game ID"
// @Param        patch  body  []patch.Operation  true  "Patch document"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /api/Games/{id} [patch]
func (h *GameHandler) PatchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var doc patch.Document
	if err := readJSON(w, r, &doc); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.PatchGame(r.Context(), id, doc); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteHandler godoc
// @Summary      Delete a game
// @Tags         games
// @Param        id  path  int  true  "Game ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/Games/{id} [delete]
func (h *GameHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.DeleteGame(r.Context(), id); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
