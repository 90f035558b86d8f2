package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDecisionService struct {
	got services.DecisionInput
	res *services.DecisionResult
	err error
}

func (s *stubDecisionService) Execute(_ context.Context, in services.DecisionInput) (*services.DecisionResult, error) {
	s.got = in
	return s.res, s.err
}

type stubBracketService struct {
	view *services.BracketView
	err  error
}

func (s *stubBracketService) GetBracket(context.Context, string) (*services.BracketView, error) {
	return s.view, s.err
}

// stubMatchService records the last call and returns err or a match with the
// requested id.
type stubMatchService struct {
	call   string
	actor  string
	result models.ResultInput
	reason string
	at     time.Time
	err    error
}

func (s *stubMatchService) record(call, matchID, actor string) (*models.Match, error) {
	s.call, s.actor = call, actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.Match{ID: matchID, Status: models.MatchStatusInProgress}, nil
}

func (s *stubMatchService) GetMatch(_ context.Context, id string) (*models.Match, error) {
	return s.record("get", id, "")
}
func (s *stubMatchService) StartMatch(_ context.Context, id, actor string) (*models.Match, error) {
	return s.record("start", id, actor)
}
func (s *stubMatchService) AwaitScores(_ context.Context, id, actor string) (*models.Match, error) {
	return s.record("finish", id, actor)
}
func (s *stubMatchService) SubmitResult(_ context.Context, id, actor string, in models.ResultInput) (*models.Match, error) {
	s.result = in
	return s.record("result", id, actor)
}
func (s *stubMatchService) ConfirmResult(_ context.Context, id, actor string) (*models.Match, error) {
	return s.record("confirm", id, actor)
}
func (s *stubMatchService) DisputeResult(_ context.Context, id, actor, reason string) (*models.Match, error) {
	s.reason = reason
	return s.record("dispute", id, actor)
}
func (s *stubMatchService) ResolveDispute(_ context.Context, id, actor string, _ services.ResolveDisputeInput) (*models.Match, error) {
	return s.record("resolve", id, actor)
}
func (s *stubMatchService) CancelMatch(_ context.Context, id, actor, reason string) (*models.Match, error) {
	s.reason = reason
	return s.record("cancel", id, actor)
}
func (s *stubMatchService) Reschedule(_ context.Context, id, actor string, at time.Time) (*models.Match, error) {
	s.at = at
	return s.record("schedule", id, actor)
}

type stubProofService struct {
	contentType string
	slot        int
	body        []byte
	err         error
}

func (s *stubProofService) Upload(_ context.Context, matchID, _ string, slot int, contentType string, file io.Reader) (*services.ProofUpload, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.slot, s.contentType = slot, contentType
	s.body, _ = io.ReadAll(file)
	key := fmt.Sprintf("matches/%s/proof-p%d-x.png", matchID, slot)
	return &services.ProofUpload{Key: key, URL: "https://cdn.test/" + key, Slot: slot}, nil
}

func testRouter(th *TournamentHandler, mh *MatchHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/tournaments/{tournamentID}/decision", th.DecisionHandler)
	r.Get("/tournaments/{tournamentID}/bracket", th.BracketHandler)
	r.Get("/matches/{matchID}", mh.GetMatchHandler)
	r.Post("/matches/{matchID}/start", mh.StartMatchHandler)
	r.Post("/matches/{matchID}/finish", mh.FinishMatchHandler)
	r.Post("/matches/{matchID}/result", mh.SubmitResultHandler)
	r.Post("/matches/{matchID}/confirm", mh.ConfirmResultHandler)
	r.Post("/matches/{matchID}/dispute", mh.DisputeResultHandler)
	r.Post("/matches/{matchID}/resolve", mh.ResolveDisputeHandler)
	r.Post("/matches/{matchID}/cancel", mh.CancelMatchHandler)
	r.Patch("/matches/{matchID}/schedule", mh.RescheduleHandler)
	r.Post("/matches/{matchID}/proofs", mh.UploadProofHandler)
	return r
}

func do(h http.Handler, method, path string, body io.Reader, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUser(req.Context(), userID, models.RoleOrganizer))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDecisionHandler(t *testing.T) {
	ds := &stubDecisionService{res: &services.DecisionResult{
		Tournament: &models.Tournament{ID: "t1", Status: models.TournamentStatusOngoing},
	}}
	h := testRouter(NewTournamentHandler(ds, &stubBracketService{}), NewMatchHandler(&stubMatchService{}, &stubProofService{}))

	rec := do(h, http.MethodPost, "/tournaments/t1/decision", bytes.NewBufferString(`{"decision":"start"}`), "org")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.DecisionInput{TournamentID: "t1", ManagerID: "org", Decision: services.DecisionStart}, ds.got)
	body := decodeBody(t, rec)
	assert.Equal(t, "ONGOING", body["tournament"].(map[string]interface{})["status"])

	rec = do(h, http.MethodPost, "/tournaments/t1/decision", bytes.NewBufferString(`{"decision":"start"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPost, "/tournaments/t1/decision", bytes.NewBufferString(`{"verdict":"start"}`), "org")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: fmt.Errorf("%w: t1", services.ErrTournamentNotFound), status: http.StatusNotFound},
		{name: "match not found", err: services.ErrMatchNotFound, status: http.StatusNotFound},
		{name: "forbidden", err: services.ErrPermissionDenied, status: http.StatusForbidden},
		{name: "wrong state", err: services.ErrInvalidState, status: http.StatusConflict},
		{name: "version conflict", err: services.ErrConcurrentUpdate, status: http.StatusConflict},
		{name: "bad argument", err: models.ErrInvalidArgument, status: http.StatusBadRequest},
		{name: "bad schedule", err: models.ErrInvalidSchedule, status: http.StatusBadRequest},
		{name: "transition", err: &models.TransitionError{MatchID: "m1", Event: models.EventStart, Current: models.MatchStatusCompleted}, status: http.StatusUnprocessableEntity},
		{name: "not implemented", err: services.ErrNotImplemented, status: http.StatusNotImplemented},
		{name: "no storage", err: services.ErrStorageNotAvailable, status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &stubMatchService{err: tt.err}
			h := testRouter(NewTournamentHandler(&stubDecisionService{}, &stubBracketService{}), NewMatchHandler(ms, &stubProofService{}))
			rec := do(h, http.MethodPost, "/matches/m1/start", nil, "seed1")
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestTransitionErrorBody(t *testing.T) {
	ms := &stubMatchService{err: &models.TransitionError{MatchID: "m1", Event: models.EventConfirm, Current: models.MatchStatusScheduled}}
	h := testRouter(NewTournamentHandler(&stubDecisionService{}, &stubBracketService{}), NewMatchHandler(ms, &stubProofService{}))

	rec := do(h, http.MethodPost, "/matches/m1/confirm", nil, "seed1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	detail := decodeBody(t, rec)["error"].(map[string]interface{})
	assert.Equal(t, "SCHEDULED", detail["current_status"])
	assert.Equal(t, "confirm", detail["event"])
}

func TestMatchActionRoutes(t *testing.T) {
	ms := &stubMatchService{}
	h := testRouter(NewTournamentHandler(&stubDecisionService{}, &stubBracketService{}), NewMatchHandler(ms, &stubProofService{}))

	tests := []struct {
		method, path, body, call string
	}{
		{http.MethodPost, "/matches/m1/start", "", "start"},
		{http.MethodPost, "/matches/m1/finish", "", "finish"},
		{http.MethodPost, "/matches/m1/result", `{"winner_id":"seed1","participant1_score":3,"participant2_score":1}`, "result"},
		{http.MethodPost, "/matches/m1/confirm", "", "confirm"},
		{http.MethodPost, "/matches/m1/dispute", `{"reason":"wrong score"}`, "dispute"},
		{http.MethodPost, "/matches/m1/resolve", `{"winner_id":"seed2","target_status":"COMPLETED"}`, "resolve"},
		{http.MethodPost, "/matches/m1/cancel", "", "cancel"},
		{http.MethodPatch, "/matches/m1/schedule", `{"scheduled_time":"2026-12-01T18:00:00Z"}`, "schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			rec := do(h, tt.method, tt.path, body, "seed1")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.call, ms.call)
			assert.Equal(t, "seed1", ms.actor)
		})
	}

	assert.Equal(t, time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC), ms.at.UTC())
	assert.Equal(t, "seed1", *ms.result.WinnerID)

	rec := do(h, http.MethodPatch, "/matches/m1/schedule", bytes.NewBufferString(`{}`), "seed1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/matches/m1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1", decodeBody(t, rec)["match"].(map[string]interface{})["id"])
}

func TestBracketHandler(t *testing.T) {
	bs := &stubBracketService{view: &services.BracketView{ParticipantCount: 4, Valid: true}}
	h := testRouter(NewTournamentHandler(&stubDecisionService{}, bs), NewMatchHandler(&stubMatchService{}, &stubProofService{}))

	rec := do(h, http.MethodGet, "/tournaments/t1/bracket", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	bracket := decodeBody(t, rec)["bracket"].(map[string]interface{})
	assert.Equal(t, true, bracket["valid"])
	assert.Equal(t, float64(4), bracket["participant_count"])
}

func multipartProof(t *testing.T, slot, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("slot", slot))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="proof.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadProofHandler(t *testing.T) {
	ps := &stubProofService{}
	h := testRouter(NewTournamentHandler(&stubDecisionService{}, &stubBracketService{}), NewMatchHandler(&stubMatchService{}, ps))

	body, ct := multipartProof(t, "2", "image/png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/proofs", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "seed2", models.RolePlayer))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, ps.slot)
	assert.Equal(t, "image/png", ps.contentType)
	assert.Equal(t, []byte("png"), ps.body)
	assert.Equal(t, "https://cdn.test/matches/m1/proof-p2-x.png", decodeBody(t, rec)["url"])

	body, ct = multipartProof(t, "first", "image/png", []byte("png"))
	req = httptest.NewRequest(http.MethodPost, "/matches/m1/proofs", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "seed2", models.RolePlayer))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws/tournaments/t1", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}
