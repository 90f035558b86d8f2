package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/services"
)

type TournamentHandler struct {
	decisionService services.DecisionService
	bracketService  services.BracketService
}

func NewTournamentHandler(ds services.DecisionService, bs services.BracketService) *TournamentHandler {
	return &TournamentHandler{
		decisionService: ds,
		bracketService:  bs,
	}
}

type decisionRequest struct {
	Decision services.Decision `json:"decision"`
	Reason   string            `json:"reason"`
}

// DecisionHandler godoc
// @Summary Start or cancel a tournament awaiting a decision
// @Tags tournaments
// @Description "start" generates the bracket and moves the tournament to ONGOING; "cancel" refunds entry fees and cancels it.
// @Accept json
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Param body body decisionRequest true "Decision"
// @Success 200 {object} services.DecisionResult
// @Failure 400 {object} map[string]string "Invalid decision"
// @Failure 403 {object} map[string]string "Not a manager of the tournament"
// @Failure 404 {object} map[string]string "Tournament not found"
// @Failure 409 {object} map[string]string "Tournament is not awaiting a decision"
// @Failure 501 {object} map[string]string "Bracket type not supported"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/decision [post]
func (h *TournamentHandler) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input decisionRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.decisionService.Execute(r.Context(), services.DecisionInput{
		TournamentID: tournamentID,
		ManagerID:    userID,
		Decision:     input.Decision,
		Reason:       input.Reason,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BracketHandler godoc
// @Summary Get the bracket of a tournament
// @Tags tournaments
// @Produce json
// @Param tournamentID path string true "Tournament ID"
// @Success 200 {object} services.BracketView
// @Failure 404 {object} map[string]string "Tournament not found"
// @Router /tournaments/{tournamentID}/bracket [get]
func (h *TournamentHandler) BracketHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
