package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cimillas/storefront-core/internal/auth"
	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, rec domain.SessionRecord) error
	GetSession(ctx context.Context, id string) (*domain.SessionRecord, error)
	GetSessionByRefreshHash(ctx context.Context, hash string) (*domain.SessionRecord, error)
	// RotateRefresh swaps the refresh hash only if it still equals oldHash.
	RotateRefresh(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
}

const defaultRefreshTTL = 30 * 24 * time.Hour

type SessionService struct {
	repo       SessionRepository
	tokens     *auth.TokenManager
	hasher     *auth.Hasher
	clock      clock.Clock
	logger     *slog.Logger
	refreshTTL time.Duration
}

func NewSessionService(repo SessionRepository, tokens *auth.TokenManager, hasher *auth.Hasher, clk clock.Clock, logger *slog.Logger, refreshTTL time.Duration) *SessionService {
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &SessionService{
		repo:       repo,
		tokens:     tokens,
		hasher:     hasher,
		clock:      clk,
		logger:     loggerOrDefault(logger),
		refreshTTL: refreshTTL,
	}
}

// Principal is who an access token speaks for.
type Principal struct {
	SubjectID string
	SessionID string
}

// Issue creates a session for subjectID.
func (s *SessionService) Issue(ctx context.Context, subjectID string) (domain.Session, error) {
	refresh, err := auth.NewOpaqueToken()
	if err != nil {
		return domain.Session{}, err
	}
	now := s.clock.Now()
	rec := domain.SessionRecord{
		ID:               newUUID(),
		SubjectID:        subjectID,
		RefreshTokenHash: s.hasher.HashToken(refresh),
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.repo.CreateSession(ctx, rec); err != nil {
		return domain.Session{}, err
	}
	return s.mint(rec, refresh, now)
}

// Authenticate resolves an access token to a live session.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	now := s.clock.Now()
	claims, err := s.tokens.Parse(accessToken, now)
	if err != nil {
		return Principal{}, domain.ErrInvalidSession
	}
	rec, err := s.repo.GetSession(ctx, claims.ID)
	if err != nil {
		return Principal{}, err
	}
	if rec == nil || rec.SubjectID != claims.Subject || !now.Before(rec.ExpiresAt) {
		return Principal{}, domain.ErrInvalidSession
	}
	return Principal{SubjectID: rec.SubjectID, SessionID: rec.ID}, nil
}

// Refresh rotates the refresh token and mints a new access token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	if refreshToken == "" {
		return domain.Session{}, domain.ErrInvalidSession
	}
	now := s.clock.Now()
	oldHash := s.hasher.HashToken(refreshToken)
	rec, err := s.repo.GetSessionByRefreshHash(ctx, oldHash)
	if err != nil {
		return domain.Session{}, err
	}
	if rec == nil {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if !now.Before(rec.ExpiresAt) {
		if err := s.repo.DeleteSession(ctx, rec.ID); err != nil {
			s.logger.WarnContext(ctx, "delete expired session failed",
				slog.String("session_id", rec.ID),
				slog.Any("err", err),
			)
		}
		return domain.Session{}, domain.ErrInvalidSession
	}

	next, err := auth.NewOpaqueToken()
	if err != nil {
		return domain.Session{}, err
	}
	rec.RefreshTokenHash = s.hasher.HashToken(next)
	rec.ExpiresAt = now.Add(s.refreshTTL)
	if err := s.repo.RotateRefresh(ctx, rec.ID, oldHash, rec.RefreshTokenHash, rec.ExpiresAt); err != nil {
		return domain.Session{}, err
	}
	return s.mint(*rec, next, now)
}

// Logout destroys the session. Unknown sessions are not an error.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

func (s *SessionService) mint(rec domain.SessionRecord, refresh string, now time.Time) (domain.Session, error) {
	access, exp, err := s.tokens.Sign(rec.ID, rec.SubjectID, now)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:              rec.ID,
		SubjectID:       rec.SubjectID,
		IssuedAt:        now,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    refresh,
	}, nil
}
