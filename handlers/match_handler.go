package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

// maxProofBytes limits a single result proof upload.
const maxProofBytes = 20 << 20

type MatchHandler struct {
	matchService services.MatchService
	proofService services.ProofService
}

func NewMatchHandler(ms services.MatchService, ps services.ProofService) *MatchHandler {
	return &MatchHandler{
		matchService: ms,
		proofService: ps,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type scheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

// GetMatchHandler godoc
// @Summary Get a match
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Match not found"
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// respond runs a match use case for the authenticated user and writes the
// updated match.
func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, matchID, userID string) (*models.Match, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	m, err := run(r.Context(), matchID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartMatchHandler godoc
// @Summary Start a scheduled match
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Concurrent update or tournament not ongoing"
// @Failure 422 {object} map[string]string "Transition not allowed"
// @Security BearerAuth
// @Router /matches/{matchID}/start [post]
func (h *MatchHandler) StartMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.matchService.StartMatch)
}

// FinishMatchHandler godoc
// @Summary Mark play as finished and wait for scores
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/finish [post]
func (h *MatchHandler) FinishMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.matchService.AwaitScores)
}

// SubmitResultHandler godoc
// @Summary Submit a match result
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param body body models.ResultInput true "Result"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Winner is not a participant"
// @Security BearerAuth
// @Router /matches/{matchID}/result [post]
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	var input models.ResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context, matchID, userID string) (*models.Match, error) {
		return h.matchService.SubmitResult(ctx, matchID, userID, input)
	})
}

// ConfirmResultHandler godoc
// @Summary Confirm the submitted result
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/confirm [post]
func (h *MatchHandler) ConfirmResultHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.matchService.ConfirmResult)
}

// DisputeResultHandler godoc
// @Summary Dispute the submitted result
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param body body reasonRequest true "Dispute reason"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/dispute [post]
func (h *MatchHandler) DisputeResultHandler(w http.ResponseWriter, r *http.Request) {
	var input reasonRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context, matchID, userID string) (*models.Match, error) {
		return h.matchService.DisputeResult(ctx, matchID, userID, input.Reason)
	})
}

// ResolveDisputeHandler godoc
// @Summary Resolve a disputed match
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param body body services.ResolveDisputeInput true "Resolution"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Not a manager of the tournament"
// @Security BearerAuth
// @Router /matches/{matchID}/resolve [post]
func (h *MatchHandler) ResolveDisputeHandler(w http.ResponseWriter, r *http.Request) {
	var input services.ResolveDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(ctx context.Context, matchID, userID string) (*models.Match, error) {
		return h.matchService.ResolveDispute(ctx, matchID, userID, input)
	})
}

// CancelMatchHandler godoc
// @Summary Cancel a match
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param body body reasonRequest false "Cancel reason"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /matches/{matchID}/cancel [post]
func (h *MatchHandler) CancelMatchHandler(w http.ResponseWriter, r *http.Request) {
	var input reasonRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	h.respond(w, r, func(ctx context.Context, matchID, userID string) (*models.Match, error) {
		return h.matchService.CancelMatch(ctx, matchID, userID, input.Reason)
	})
}

// RescheduleHandler godoc
// @Summary Move a match to a new time
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param body body scheduleRequest true "New time (RFC 3339)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Time is not in the future"
// @Security BearerAuth
// @Router /matches/{matchID}/schedule [patch]
func (h *MatchHandler) RescheduleHandler(w http.ResponseWriter, r *http.Request) {
	var input scheduleRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ScheduledTime.IsZero() {
		badRequestResponse(w, r, errors.New("scheduled_time is required"))
		return
	}
	h.respond(w, r, func(ctx context.Context, matchID, userID string) (*models.Match, error) {
		return h.matchService.Reschedule(ctx, matchID, userID, input.ScheduledTime)
	})
}

// UploadProofHandler godoc
// @Summary Upload a result proof
// @Tags matches
// @Accept multipart/form-data
// @Produce json
// @Param matchID path string true "Match ID"
// @Param slot formData int true "Participant slot (1 or 2)"
// @Param file formData file true "Screenshot, video or PDF"
// @Success 201 {object} services.ProofUpload
// @Failure 400 {object} map[string]string "Bad slot or content type"
// @Failure 503 {object} map[string]string "Storage not configured"
// @Security BearerAuth
// @Router /matches/{matchID}/proofs [post]
func (h *MatchHandler) UploadProofHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes)
	if err := r.ParseMultipartForm(maxProofBytes); err != nil {
		badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	slot, err := strconv.Atoi(r.FormValue("slot"))
	if err != nil {
		badRequestResponse(w, r, errors.New("slot must be 1 or 2"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("file is required"))
		return
	}
	defer file.Close()

	upload, err := h.proofService.Upload(r.Context(), matchID, userID, slot, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, upload, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
