package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/google/uuid"
)

type ProofUpload struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Slot int    `json:"slot"`
}

// ProofService stores result evidence. The returned URL is passed to
// SubmitResult by the caller.
type ProofService interface {
	Upload(ctx context.Context, matchID, actorID string, slot int, contentType string, file io.Reader) (*ProofUpload, error)
}

type proofService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	authorizer     ManagerAuthorizer
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewProofService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	authorizer ManagerAuthorizer,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ProofService {
	return &proofService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		authorizer:     authorizer,
		uploader:       uploader,
		logger:         loggerOrDefault(logger),
	}
}

func proofKey(matchID string, slot int, ext string) string {
	return fmt.Sprintf("matches/%s/proof-p%d-%s%s", matchID, slot, uuid.NewString(), ext)
}

func (s *proofService) Upload(ctx context.Context, matchID, actorID string, slot int, contentType string, file io.Reader) (*ProofUpload, error) {
	if s.uploader == nil {
		return nil, ErrStorageNotAvailable
	}
	if slot != 1 && slot != 2 {
		return nil, fmt.Errorf("%w: proof slot must be 1 or 2, got %d", models.ErrInvalidArgument, slot)
	}
	ext, err := storage.GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidArgument, err)
	}

	m, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err, "match", matchID)
	}
	if !m.HasParticipant(actorID) {
		t, err := s.tournamentRepo.GetByID(ctx, nil, m.TournamentID)
		if err != nil {
			return nil, handleRepositoryError(err, "tournament", m.TournamentID)
		}
		if err := requireManager(ctx, s.authorizer, nil, actorID, t); err != nil {
			return nil, err
		}
	}

	key := proofKey(m.ID, slot, ext)
	res, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload proof for match %s: %w", m.ID, err)
	}
	s.logger.Info("result proof uploaded",
		slog.String("match_id", m.ID),
		slog.Int("slot", slot),
		slog.String("key", res.Key))
	return &ProofUpload{Key: res.Key, URL: res.Location, Slot: slot}, nil
}
