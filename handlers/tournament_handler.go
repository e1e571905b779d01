package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/patch"
	"github.com/Dosada05/tournament-api/services"
)

const maxLogoBytes = 5 << 20

type TournamentHandler struct {
	responder
	tournamentService services.TournamentService
	gameService       services.GameService
}

func NewTournamentHandler(ts services.TournamentService, gs services.GameService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{
		responder:         responder{logger: logger.With(slog.String("handler", "tournaments"))},
		tournamentService: ts,
		gameService:       gs,
	}
}

// ListHandler godoc
// @Summary      List tournaments
// @Tags         tournaments
// @Produce      json
// @Param        sortBy        query  string  false  "title or startDate; other values keep insertion order"
// @Param        includeGames  query  bool    false  "embed the games of each tournament"
// @Success      200  {array}   dto.Tournament
// @Failure      404  {object}  map[string]string
// @Router       /api/Tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	includeGames, err := queryBool(r, "includeGames")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), services.ListTournamentsInput{
		SortBy:       r.URL.Query().Get("sortBy"),
		IncludeGames: includeGames,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if len(tournaments) == 0 {
		h.notFoundResponse(w, r, "No tournaments found.")
		return
	}

	h.ok(w, r, http.StatusOK, tournaments, nil)
}

// GetByIDHandler godoc
// @Summary      Get a tournament
// @Tags         tournaments
// @Produce      json
// @Param        id            path   int   true   "Tournament ID"
// @Param        includeGames  query  bool  false  "embed the tournament's games"
// @Success      200  {object}  dto.Tournament
// @Failure      404  {object}  map[string]string
// @Router       /api/Tournaments/{id} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	includeGames, err := queryBool(r, "includeGames")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), id, includeGames)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, tournament, nil)
}

// ListGamesHandler godoc
// @Summary      List the games of a tournament
// @Tags         tournaments
// @Produce      json
// @Param        id      path   int     true   "Tournament ID"
// @Param        sortBy  query  string  false  "title or time"
// @Success      200  {array}   dto.Game
// @Failure      404  {object}  map[string]string
// @Router       /api/Tournaments/{id}/Games [get]
func (h *TournamentHandler) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	games, err := h.gameService.ListGames(r.Context(), services.ListGamesInput{
		SortBy:       r.URL.Query().Get("sortBy"),
		TournamentID: &id,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, games, nil)
}

// CreateHandler godoc
// @Summary      Create a tournament
// @Description  Nested games are created in the same transaction.
// @Tags         tournaments
// @Accept       json
// @Produce      json
// @Param        tournament  body      dto.Tournament  true  "Tournament"
// @Success      201  {object}  dto.Tournament
// @Failure      400  {object}  map[string]string
// @Router       /api/Tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input dto.Tournament
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.LogoURL != nil {
		h.badRequestResponse(w, r, errors.New("logoUrl is read-only; upload a logo via /logo"))
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/api/Tournaments/%d", tournament.ID))
	h.ok(w, r, http.StatusCreated, tournament, headers)
}

// UpdateHandler godoc
// @Summary      Replace a tournament
// @Description  Nested games and logoUrl in the body are ignored.
// @Tags         tournaments
// @Accept       json
// @Param        id          path  int             true  "Tournament ID"
// @Param        tournament  body  dto.Tournament  true  "Tournament; id must match the path"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/Tournaments/{id} [put]
func (h *TournamentHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input dto.Tournament
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.ReplaceTournament(r.Context(), id, input); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PatchHandler godoc
// @Summary      Patch a tournament
// @Description  Applies a JSON Patch document to title and startDate.
// @Tags         tournaments
// @Accept       json
// @Param        id     path  int                true  "Tournament ID"
// @Param        patch  body  []patch.Operation  true  "Patch document"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /api/Tournaments/{id} [patch]
func (h *TournamentHandler) PatchHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := h.tournamentService.PatchTournament(r.Context(), id, doc); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteHandler godoc
// @Summary      Delete a tournament and its games
// @Tags         tournaments
// @Param        id  path  int  true  "Tournament ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /api/Tournaments/{id} [delete]
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.DeleteTournament(r.Context(), id); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadLogoHandler godoc
// @Summary      Upload a tournament logo
// @Tags         tournaments
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      int   true  "Tournament ID"
// @Param        logo  formData  file  true  "PNG, JPEG or WebP image"
// @Success      200  {object}  dto.Tournament
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/Tournaments/{id}/logo [put]
func (h *TournamentHandler) UploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		h.badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		h.badRequestResponse(w, r, fmt.Errorf("failed to get logo file from form: %w", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		h.badRequestResponse(w, r, errors.New("content-type header is required for logo"))
		return
	}

	tournament, err := h.tournamentService.UploadLogo(r.Context(), id, file, contentType)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.ok(w, r, http.StatusOK, tournament, nil)
}
