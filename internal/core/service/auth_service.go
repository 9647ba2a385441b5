package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/session"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const tokenTypeBearer = "Bearer"

const (
	minUsernameLen   = 3
	maxUsernameLen   = 50
	maxPasswordBytes = 72 // bcrypt input limit
)

// AuthService implements registration, login, profile access and logout.
// It holds no per-request state; the caller's identity always arrives as an
// explicit argument or through the request's session.
type AuthService struct {
	store  ports.UserStore
	hasher ports.PasswordHasher
	tokens ports.TokenProvider
	cache  ports.ProfileCache
	audit  ports.AuditRecorder
	log    zerolog.Logger

	phoneRegion string
	now         func() time.Time

	// dummyHash is verified against when a login identifier does not
	// resolve, so both failure paths cost one bcrypt comparison.
	dummyHash string
}

// Option customises an AuthService.
type Option func(*AuthService)

// WithProfileCache enables read-through caching of GetCurrentUser.
func WithProfileCache(cache ports.ProfileCache) Option {
	return func(s *AuthService) { s.cache = cache }
}

// WithAuditRecorder sends workflow events to rec.
func WithAuditRecorder(rec ports.AuditRecorder) Option {
	return func(s *AuthService) { s.audit = rec }
}

// WithPhoneRegion sets the region used to parse phone numbers without a
// country prefix (ISO 3166-1 alpha-2, e.g. "US").
func WithPhoneRegion(region string) Option {
	return func(s *AuthService) { s.phoneRegion = region }
}

// WithClock overrides the time source for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	store ports.UserStore,
	hasher ports.PasswordHasher,
	tokens ports.TokenProvider,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		log:         log,
		phoneRegion: defaultPhoneRegion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if h, err := hasher.Hash("dummy-password-for-timing"); err == nil {
		s.dummyHash = h
	} else {
		log.Warn().Err(err).Msg("could not prepare dummy hash")
	}
	return s
}

// Register creates a new enabled user. A taken username or email is reported
// as domain.ErrUsernameTaken / domain.ErrEmailInUse, including when a
// concurrent registration wins the race at the store.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (err error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)

	defer func() {
		metrics.RegistrationsTotal.WithLabelValues(resultLabel(err)).Inc()
		s.record(domain.EventRegister, username, err)
	}()

	if username == "" || email == "" || in.Password == "" {
		return domain.NewValidationError("username, email and password are required")
	}
	if err := validateUsername(username); err != nil {
		return err
	}
	if len(in.Password) > maxPasswordBytes {
		return domain.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	err = s.store.Atomically(ctx, func(ctx context.Context, store ports.UserStore) error {
		taken, err := store.ExistsByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return domain.ErrUsernameTaken
		}

		inUse, err := store.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if inUse {
			return domain.ErrEmailInUse
		}

		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		now := s.now().UTC()
		_, err = store.Save(ctx, &domain.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FullName:     strings.TrimSpace(in.FullName),
			PhoneNumber:  normalizePhone(in.PhoneNumber, s.phoneRegion),
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return err
	})
	if err != nil {
		if isConflict(err) {
			return err
		}
		return fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("username", username).Msg("user registered")
	return nil
}

// Login verifies the credentials and issues a bearer token. Every credential
// failure is reported as domain.ErrInvalidCredentials so callers cannot tell
// an unknown identifier from a wrong password.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (res *ports.LoginResult, err error) {
	identifier := strings.TrimSpace(in.UsernameOrEmail)
	subject := identifier

	defer func() {
		metrics.LoginsTotal.WithLabelValues(resultLabel(err)).Inc()
		s.record(domain.EventLogin, subject, err)
	}()

	if identifier == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.authenticate(ctx, identifier, in.Password)
	if err != nil {
		return nil, err
	}
	subject = user.Username

	token, err := s.tokens.GenerateToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	if sess := session.FromContext(ctx); sess != nil {
		sess.Authenticate(user.Username, token)
	}

	return &ports.LoginResult{
		Token:     token,
		TokenType: tokenTypeBearer,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
	}, nil
}

func (s *AuthService) authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := s.store.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: resolve user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.Enabled {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetCurrentUser returns the profile of an authenticated identity. An identity
// that no longer resolves is a consistency failure (domain.ErrIdentityUnresolved).
func (s *AuthService) GetCurrentUser(ctx context.Context, identity string) (*ports.UserProfile, error) {
	if identity == "" {
		return nil, fmt.Errorf("get current user: empty identity: %w", domain.ErrIdentityUnresolved)
	}

	if profile := s.cachedProfile(ctx, identity); profile != nil {
		return profile, nil
	}

	// Taken before the store read; see ports.ProfileCache.
	generation, fill := s.cacheGeneration(ctx, identity)

	user, err := s.store.FindByUsername(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Str("username", identity).Msg("authenticated identity does not resolve")
			return nil, fmt.Errorf("get current user: %w", domain.ErrIdentityUnresolved)
		}
		return nil, fmt.Errorf("get current user: %w", err)
	}

	profile := toProfile(user)
	if fill {
		if err := s.cache.Set(ctx, profile, generation); err != nil {
			s.log.Warn().Err(err).Str("username", identity).Msg("failed to cache profile")
		}
	}
	return profile, nil
}

// UpdateProfile changes the acting user's username, email, full name and
// phone number. A new username or email collides only with other users;
// resubmitting one's own current values never conflicts.
func (s *AuthService) UpdateProfile(ctx context.Context, identity string, in ports.UpdateProfileInput) (res *ports.ProfileUpdate, err error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)

	defer func() {
		metrics.ProfileUpdatesTotal.WithLabelValues(resultLabel(err)).Inc()
		s.record(domain.EventProfileUpdate, identity, err)
	}()

	if username == "" || email == "" {
		return nil, domain.NewValidationError("username and email are required")
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	var updated *domain.User
	err = s.store.Atomically(ctx, func(ctx context.Context, store ports.UserStore) error {
		user, err := store.FindByUsername(ctx, identity)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrIdentityUnresolved
			}
			return fmt.Errorf("load user: %w", err)
		}

		if user.Username != username {
			taken, err := store.ExistsByUsername(ctx, username)
			if err != nil {
				return fmt.Errorf("check username: %w", err)
			}
			if taken {
				return domain.ErrUsernameTaken
			}
		}

		if domain.NormalizeEmail(user.Email) != email {
			inUse, err := store.ExistsByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if inUse {
				return domain.ErrEmailInUse
			}
		}

		user.Username = username
		user.Email = email
		user.FullName = strings.TrimSpace(in.FullName)
		user.PhoneNumber = normalizePhone(in.PhoneNumber, s.phoneRegion)
		user.UpdatedAt = s.now().UTC()

		updated, err = store.Save(ctx, user)
		return err
	})
	if err != nil {
		if isConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, identity, updated.Username); err != nil {
			s.log.Warn().Err(err).Str("username", identity).Msg("failed to invalidate cached profile")
		}
	}

	res = &ports.ProfileUpdate{Profile: toProfile(updated)}
	if updated.Username != identity {
		token, err := s.tokens.GenerateToken(updated.Username)
		if err != nil {
			return nil, fmt.Errorf("update profile: issue token: %w", err)
		}
		res.Token = token
		if sess := session.FromContext(ctx); sess != nil {
			sess.Authenticate(updated.Username, token)
		}
	}

	s.log.Info().Str("username", updated.Username).Str("previous", identity).Msg("profile updated")
	return res, nil
}

// Logout clears the request's session. It always succeeds.
func (s *AuthService) Logout(ctx context.Context) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return
	}
	if identity, ok := sess.Identity(); ok {
		s.record(domain.EventLogout, identity, nil)
	}
	sess.Clear()
}

func (s *AuthService) cachedProfile(ctx context.Context, username string) *ports.UserProfile {
	if s.cache == nil {
		return nil
	}
	profile, err := s.cache.Get(ctx, username)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("profile cache lookup failed")
		return nil
	}
	return profile
}

func (s *AuthService) cacheGeneration(ctx context.Context, username string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	generation, err := s.cache.Generation(ctx, username)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("profile cache generation lookup failed")
		return 0, false
	}
	return generation, true
}

func (s *AuthService) record(typ domain.AuthEventType, username string, err error) {
	if s.audit == nil {
		return
	}
	ev := domain.AuthEvent{
		Type:       typ,
		Username:   username,
		Outcome:    domain.OutcomeSuccess,
		OccurredAt: s.now().UTC(),
	}
	if err != nil {
		ev.Outcome = domain.OutcomeFailure
		ev.Reason = resultLabel(err)
	}
	s.audit.Record(ev)
}

// validateUsername checks the trimmed username, so surrounding spaces cannot
// pad a short name past the minimum.
func validateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return domain.NewValidationError(fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}

func toProfile(u *domain.User) *ports.UserProfile {
	return &ports.UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
	}
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrUsernameTaken) || errors.Is(err, domain.ErrEmailInUse)
}

// resultLabel maps a workflow outcome to a metric label / audit reason.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, domain.ErrEmailInUse):
		return "email_in_use"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrIdentityUnresolved):
		return "identity_unresolved"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
