package app

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cimillas/storefront-core/internal/auth"
	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

// ChallengeStore persists OTP challenges keyed by phone. Update reads the
// current challenge (nil when absent or already evicted), calls fn, and applies
// the returned change atomically with respect to other Updates on the same key.
// If fn returns an error nothing is written and Update returns that error.
type ChallengeStore interface {
	Update(ctx context.Context, phoneKey string, fn func(cur *domain.OTPChallenge) (domain.ChallengeChange, error)) error
}

type SubjectResolver interface {
	FindOrCreateByPhone(ctx context.Context, phoneKey string) (domain.Subject, error)
}

type SessionIssuer interface {
	Issue(ctx context.Context, subjectID string) (domain.Session, error)
}

const (
	defaultChallengeTTL = 5 * time.Minute
	defaultMaxSends     = 5
	defaultMaxAttempts  = 5
)

type OTPService struct {
	store         ChallengeStore
	subjects      SubjectResolver
	sessions      SessionIssuer
	notifier      Notifier
	hasher        *auth.Hasher
	clock         clock.Clock
	logger        *slog.Logger
	phones        domain.PhoneFormat
	ttl           time.Duration
	maxSends      int
	maxAttempts   int
	echoCodes     bool
	notifyTimeout time.Duration
}

type OTPServiceOption func(*OTPService)

// WithChallengeTTL overrides how long a sent code stays valid.
func WithChallengeTTL(d time.Duration) OTPServiceOption {
	return func(s *OTPService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithMaxSends caps sends per phone while a challenge is unexpired.
func WithMaxSends(n int) OTPServiceOption {
	return func(s *OTPService) {
		if n > 0 {
			s.maxSends = n
		}
	}
}

// WithMaxAttempts caps wrong guesses per challenge.
func WithMaxAttempts(n int) OTPServiceOption {
	return func(s *OTPService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithPhoneFormat(f domain.PhoneFormat) OTPServiceOption {
	return func(s *OTPService) {
		if f.CountryCode != "" && f.Digits > 0 {
			s.phones = f
		}
	}
}

// WithCodeEcho returns the raw code in SendChallenge results. Only for
// development setups that have no delivery channel.
func WithCodeEcho(enabled bool) OTPServiceOption {
	return func(s *OTPService) {
		s.echoCodes = enabled
	}
}

func WithOTPNotifyTimeout(d time.Duration) OTPServiceOption {
	return func(s *OTPService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func NewOTPService(
	store ChallengeStore,
	subjects SubjectResolver,
	sessions SessionIssuer,
	notifier Notifier,
	hasher *auth.Hasher,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...OTPServiceOption,
) *OTPService {
	svc := &OTPService{
		store:         store,
		subjects:      subjects,
		sessions:      sessions,
		notifier:      notifier,
		hasher:        hasher,
		clock:         clk,
		logger:        loggerOrDefault(logger),
		phones:        domain.DefaultPhoneFormat,
		ttl:           defaultChallengeTTL,
		maxSends:      defaultMaxSends,
		maxAttempts:   defaultMaxAttempts,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SendChallengeResult struct {
	PhoneKey  string
	ExpiresAt time.Time
	SendsLeft int
	// DevCode is set only when code echo is enabled.
	DevCode string
}

// SendChallenge issues a fresh code for phone, superseding any earlier one.
func (s *OTPService) SendChallenge(ctx context.Context, phone string) (SendChallengeResult, error) {
	key, err := s.phones.Normalize(phone)
	if err != nil {
		return SendChallengeResult{}, err
	}
	code, err := auth.NewCode()
	if err != nil {
		return SendChallengeResult{}, err
	}

	now := s.clock.Now()
	var result SendChallengeResult

	err = s.store.Update(ctx, key, func(cur *domain.OTPChallenge) (domain.ChallengeChange, error) {
		sends := 0
		if cur != nil && !cur.Expired(now) {
			if cur.SendCount >= s.maxSends {
				return domain.ChallengeChange{}, domain.ErrRateLimited
			}
			// A locked challenge stays locked until it expires.
			if !cur.Verified && cur.AttemptCount >= s.maxAttempts {
				return domain.ChallengeChange{}, domain.ErrRateLimited
			}
			sends = cur.SendCount
		}

		next := domain.OTPChallenge{
			PhoneKey:  key,
			CodeHash:  s.hasher.HashCode(key, code),
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
			SendCount: sends + 1,
		}
		result = SendChallengeResult{
			PhoneKey:  key,
			ExpiresAt: next.ExpiresAt,
			SendsLeft: s.maxSends - next.SendCount,
		}
		return domain.ChallengeChange{Put: &next}, nil
	})
	if err != nil {
		return SendChallengeResult{}, err
	}

	// The challenge is stored; a failed or slow delivery leaves it resendable.
	dispatch(ctx, s.notifier, s.logger, s.notifyTimeout, domain.Event{
		Kind: domain.EventOTPRequested,
		Payload: map[string]string{
			"phone":      key,
			"code":       code,
			"expires_in": strconv.Itoa(int(s.ttl.Seconds())),
		},
		OccurredAt: now,
	})

	if s.echoCodes {
		result.DevCode = code
	}
	return result, nil
}

type VerifyChallengeResult struct {
	Session domain.Session
	Subject domain.Subject
}

// VerifyChallenge checks code against the live challenge for phone and, on a
// match, consumes it and mints a session.
func (s *OTPService) VerifyChallenge(ctx context.Context, phone, code string) (VerifyChallengeResult, error) {
	key, err := s.phones.Normalize(phone)
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	if !auth.ValidCodeFormat(code) {
		return VerifyChallengeResult{}, domain.ErrMalformedCode
	}

	now := s.clock.Now()
	var outcome error

	err = s.store.Update(ctx, key, func(cur *domain.OTPChallenge) (domain.ChallengeChange, error) {
		outcome = nil
		if cur == nil {
			return domain.ChallengeChange{}, domain.ErrChallengeNotFound
		}
		if cur.Expired(now) {
			outcome = domain.ErrChallengeExpired
			return domain.ChallengeChange{Delete: true}, nil
		}
		if cur.Verified {
			return domain.ChallengeChange{}, domain.ErrChallengeUsed
		}
		if cur.AttemptCount >= s.maxAttempts {
			return domain.ChallengeChange{}, domain.ErrTooManyAttempts
		}

		next := *cur
		if !s.hasher.MatchCode(key, code, cur.CodeHash) {
			next.AttemptCount++
			outcome = domain.ErrCodeMismatch
			if next.AttemptCount >= s.maxAttempts {
				outcome = domain.ErrTooManyAttempts
			}
			return domain.ChallengeChange{Put: &next}, nil
		}
		next.Verified = true
		return domain.ChallengeChange{Put: &next}, nil
	})
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	if outcome != nil {
		return VerifyChallengeResult{}, outcome
	}

	subject, err := s.subjects.FindOrCreateByPhone(ctx, key)
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	session, err := s.sessions.Issue(ctx, subject.ID)
	if err != nil {
		return VerifyChallengeResult{}, err
	}
	s.logger.InfoContext(ctx, "otp verified", slog.String("subject_id", subject.ID))
	return VerifyChallengeResult{Session: session, Subject: subject}, nil
}
