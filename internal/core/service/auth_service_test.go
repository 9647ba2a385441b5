package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/session"
	"github.com/99minutos/auth-service/internal/infrastructure/db/memory"
	"github.com/99minutos/auth-service/internal/infrastructure/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubCache struct {
	mu          sync.Mutex
	profiles    map[string]*ports.UserProfile
	generations map[string]int64
	invalidated []string
	gets        int
}

func newStubCache() *stubCache {
	return &stubCache{
		profiles:    make(map[string]*ports.UserProfile),
		generations: make(map[string]int64),
	}
}

func (c *stubCache) Get(_ context.Context, username string) (*ports.UserProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	p, ok := c.profiles[username]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (c *stubCache) Generation(_ context.Context, username string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[username], nil
}

func (c *stubCache) Set(_ context.Context, p *ports.UserProfile, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[p.Username] != generation {
		return nil
	}
	clone := *p
	c.profiles[p.Username] = &clone
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, usernames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range usernames {
		delete(c.profiles, u)
		c.generations[u]++
		c.invalidated = append(c.invalidated, u)
	}
	return nil
}

func (c *stubCache) cached(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.profiles[username]
	return ok
}

type stubRecorder struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (r *stubRecorder) Record(e domain.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *stubRecorder) last() domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// racyStore skips the Atomically serialization and holds every registration
// after its username check until all of them have checked, so they all reach
// Save believing the name is free. The store's own uniqueness check must
// catch them.
type racyStore struct {
	*memory.UserStore
	checked   sync.WaitGroup
	mu        sync.Mutex
	seenTaken int
}

func (s *racyStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	ok, err := s.UserStore.ExistsByUsername(ctx, username)
	if ok {
		s.mu.Lock()
		s.seenTaken++
		s.mu.Unlock()
	}
	s.checked.Done()
	s.checked.Wait()
	return ok, err
}

func (s *racyStore) Atomically(ctx context.Context, fn func(context.Context, ports.UserStore) error) error {
	return fn(ctx, s)
}

// pausingStore holds the first armed FindByUsername after its read until
// released, to interleave a writer between a reader's load and cache fill.
type pausingStore struct {
	*memory.UserStore
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		UserStore: memory.NewUserStore(),
		reached:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (s *pausingStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.UserStore.FindByUsername(ctx, username)
	if s.armed.CompareAndSwap(true, false) {
		close(s.reached)
		<-s.release
	}
	return u, err
}

type failingStore struct {
	*memory.UserStore
	err error
}

func (s *failingStore) FindByUsernameOrEmail(context.Context, string) (*domain.User, error) {
	return nil, s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestService(store ports.UserStore, opts ...Option) *AuthService {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	tokens := security.NewJWTProvider(testSecret, time.Hour)
	return NewAuthService(store, hasher, tokens, zerolog.Nop(), opts...)
}

func registerAlice(t *testing.T, svc *AuthService) {
	t.Helper()
	err := svc.Register(context.Background(), ports.RegisterInput{
		Username:    "alice",
		Email:       "alice@x.com",
		Password:    "pw123",
		FullName:    "Alice A",
		PhoneNumber: "555-1",
	})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestAuthService_Register_Success(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)

	registerAlice(t, svc)

	user, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("stored user not found: %v", err)
	}
	if user.PasswordHash == "pw123" || user.PasswordHash == "" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if !user.Enabled {
		t.Fatalf("new users must be enabled")
	}
	if user.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
	if user.FullName != "Alice A" || user.PhoneNumber != "555-1" {
		t.Fatalf("unexpected profile fields: %+v", user)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	err := svc.Register(context.Background(), ports.RegisterInput{Username: " ", Email: "a@x.com", Password: "pw"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)
	registerAlice(t, svc)

	err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "alice", Email: "other@x.com", Password: "pw",
	})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if err.Error() != "Username is already taken!" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored user, got %d", store.Len())
	}
}

func TestAuthService_Register_EmailInUseIsCaseInsensitive(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)
	registerAlice(t, svc)

	err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "bob", Email: "ALICE@X.COM", Password: "pw",
	})
	if !errors.Is(err, domain.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
	if err.Error() != "Email is already in use!" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestAuthService_Register_UsernameIsCaseSensitive(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "Alice", Email: "alice2@x.com", Password: "pw",
	})
	if err != nil {
		t.Fatalf("expected distinct-case username to be accepted, got %v", err)
	}
}

func TestAuthService_Register_ConcurrentSameUsername(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)

	const n = 8
	results := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i] = svc.Register(context.Background(), ports.RegisterInput{
				Username: "alice",
				Email:    "alice" + strings.Repeat("x", i) + "@x.com",
				Password: "pw",
			})
			return nil
		})
	}
	_ = g.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrUsernameTaken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored user, got %d", store.Len())
	}
}

func TestAuthService_Register_StoreConstraintCatchesRace(t *testing.T) {
	const n = 4
	store := &racyStore{UserStore: memory.NewUserStore()}
	store.checked.Add(n)
	svc := newTestService(store)

	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.Register(context.Background(), ports.RegisterInput{
				Username: "alice",
				Email:    "alice" + strings.Repeat("x", i) + "@x.com",
				Password: "pw",
			})
		}()
	}
	wg.Wait()

	if store.seenTaken != 0 {
		t.Fatalf("every registration must pass the existence check, %d saw the name taken", store.seenTaken)
	}

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrUsernameTaken):
		default:
			t.Fatalf("losing writer must see ErrUsernameTaken, got %v", err)
		}
	}
	if wins != 1 || store.Len() != 1 {
		t.Fatalf("expected one winner and one stored user, got %d / %d", wins, store.Len())
	}
}

func TestAuthService_Register_TrimmedUsernameTooShort(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)

	err := svc.Register(context.Background(), ports.RegisterInput{Username: "  ab ", Email: "ab@x.com", Password: "pw1234"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("nothing must be stored, got %d users", store.Len())
	}
}

func TestAuthService_Register_PasswordOverByteLimit(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	// 40 runes, 80 bytes.
	err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: strings.Repeat("é", 40),
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Message, "72 bytes") {
		t.Fatalf("expected byte-limit validation error, got %v", err)
	}

	if err := svc.Register(context.Background(), ports.RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: strings.Repeat("é", 36),
	}); err != nil {
		t.Fatalf("72-byte password must be accepted, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAuthService_Login_Success(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	sess := session.New()
	ctx := session.NewContext(context.Background(), sess)

	res, err := svc.Login(ctx, ports.LoginInput{UsernameOrEmail: "alice", Password: "pw123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" || res.TokenType != "Bearer" {
		t.Fatalf("unexpected token fields: %+v", res)
	}
	if res.Username != "alice" || res.Email != "alice@x.com" || res.FullName != "Alice A" || res.ID == "" {
		t.Fatalf("unexpected user fields: %+v", res)
	}

	identity, ok := sess.Identity()
	if !ok || identity != "alice" || sess.Token() != res.Token {
		t.Fatalf("session not authenticated: %q %v", identity, ok)
	}

	subject, err := security.NewJWTProvider(testSecret, time.Hour).ValidateToken(res.Token)
	if err != nil || subject != "alice" {
		t.Fatalf("token does not carry subject: %q %v", subject, err)
	}
}

func TestAuthService_Login_ByEmail(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	res, err := svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "Alice@X.com", Password: "pw123"})
	if err != nil {
		t.Fatalf("login by email failed: %v", err)
	}
	if res.Username != "alice" {
		t.Fatalf("unexpected username: %s", res.Username)
	}
}

func TestAuthService_Login_UsernameBeatsAnotherUsersEmail(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	ctx := context.Background()

	if err := svc.Register(ctx, ports.RegisterInput{Username: "carol@x.com", Email: "carol.real@x.com", Password: "carolpw"}); err != nil {
		t.Fatalf("register carol: %v", err)
	}
	if err := svc.Register(ctx, ports.RegisterInput{Username: "bob", Email: "carol@x.com", Password: "bobpw"}); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	for i := 0; i < 20; i++ {
		res, err := svc.Login(ctx, ports.LoginInput{UsernameOrEmail: "carol@x.com", Password: "carolpw"})
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if res.Username != "carol@x.com" {
			t.Fatalf("expected the username owner, got %s", res.Username)
		}
	}
}

func TestAuthService_Login_ErrorsAreIndistinguishable(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	_, wrongPassword := svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "alice", Password: "wrong"})
	_, unknownUser := svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "ghost", Password: "pw123"})

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownUser, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestAuthService_Login_DisabledUser(t *testing.T) {
	store := memory.NewUserStore()
	svc := newTestService(store)
	registerAlice(t, svc)

	u, _ := store.FindByUsername(context.Background(), "alice")
	u.Enabled = false
	if _, err := store.Save(context.Background(), u); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	if _, err := svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "alice", Password: "pw123"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_EmptyFields(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	if _, err := svc.Login(context.Background(), ports.LoginInput{}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_StoreFailureIsInternal(t *testing.T) {
	boom := errors.New("connection refused")
	svc := newTestService(&failingStore{UserStore: memory.NewUserStore(), err: boom})

	_, err := svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "alice", Password: "pw"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("infrastructure failure must not look like bad credentials")
	}
}

// ---------------------------------------------------------------------------
// GetCurrentUser
// ---------------------------------------------------------------------------

func TestAuthService_GetCurrentUser(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	p, err := svc.GetCurrentUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get current user: %v", err)
	}
	if p.Username != "alice" || p.Email != "alice@x.com" || p.FullName != "Alice A" || p.PhoneNumber != "555-1" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt in profile")
	}
}

func TestAuthService_GetCurrentUser_Unresolved(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	if _, err := svc.GetCurrentUser(context.Background(), "ghost"); !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
	}
	if _, err := svc.GetCurrentUser(context.Background(), ""); !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved for empty identity, got %v", err)
	}
}

func TestAuthService_GetCurrentUser_UsesCache(t *testing.T) {
	cache := newStubCache()
	svc := newTestService(memory.NewUserStore(), WithProfileCache(cache))
	registerAlice(t, svc)

	if _, err := svc.GetCurrentUser(context.Background(), "alice"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if _, ok := cache.profiles["alice"]; !ok {
		t.Fatalf("expected profile to be cached")
	}

	cache.profiles["alice"].FullName = "From Cache"
	p, err := svc.GetCurrentUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if p.FullName != "From Cache" {
		t.Fatalf("expected cached profile, got %+v", p)
	}
}

func TestAuthService_GetCurrentUser_StaleFillAfterRenameIsDropped(t *testing.T) {
	store := newPausingStore()
	cache := newStubCache()
	svc := newTestService(store, WithProfileCache(cache))
	registerAlice(t, svc)
	ctx := context.Background()

	// The reader loads alice, then stalls before filling the cache.
	store.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := svc.GetCurrentUser(ctx, "alice")
		done <- err
	}()
	<-store.reached

	if _, err := svc.UpdateProfile(ctx, "alice", ports.UpdateProfileInput{Username: "alice2", Email: "alice@x.com"}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight lookup: %v", err)
	}

	if cache.cached("alice") {
		t.Fatalf("stale profile for the old username was cached")
	}
	if _, err := svc.GetCurrentUser(ctx, "alice"); !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved for the renamed-away username, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// UpdateProfile
// ---------------------------------------------------------------------------

func TestAuthService_UpdateProfile_SelfValuesNeverCollide(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	res, err := svc.UpdateProfile(context.Background(), "alice", ports.UpdateProfileInput{
		Username: "alice", Email: "ALICE@x.com", FullName: "Alice B", PhoneNumber: "555-2",
	})
	if err != nil {
		t.Fatalf("self update failed: %v", err)
	}
	if res.Profile.FullName != "Alice B" || res.Profile.PhoneNumber != "555-2" {
		t.Fatalf("unexpected profile: %+v", res.Profile)
	}
	if res.Token != "" {
		t.Fatalf("no new token expected when username is unchanged")
	}
}

func TestAuthService_UpdateProfile_Collisions(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)
	if err := svc.Register(context.Background(), ports.RegisterInput{Username: "bob", Email: "bob@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	_, err := svc.UpdateProfile(context.Background(), "alice", ports.UpdateProfileInput{Username: "bob", Email: "alice@x.com"})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	_, err = svc.UpdateProfile(context.Background(), "alice", ports.UpdateProfileInput{Username: "alice", Email: "bob@x.com"})
	if !errors.Is(err, domain.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestAuthService_UpdateProfile_RenameIssuesToken(t *testing.T) {
	cache := newStubCache()
	svc := newTestService(memory.NewUserStore(), WithProfileCache(cache))
	registerAlice(t, svc)

	sess := session.New()
	sess.Authenticate("alice", "old")
	ctx := session.NewContext(context.Background(), sess)

	res, err := svc.UpdateProfile(ctx, "alice", ports.UpdateProfileInput{Username: "alicia", Email: "alicia@x.com"})
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if res.Profile.Username != "alicia" || res.Profile.Email != "alicia@x.com" {
		t.Fatalf("unexpected profile: %+v", res.Profile)
	}
	if res.Token == "" {
		t.Fatalf("expected a token for the new username")
	}
	if id, _ := sess.Identity(); id != "alicia" {
		t.Fatalf("session identity not updated: %q", id)
	}
	if len(cache.invalidated) != 2 {
		t.Fatalf("expected old and new username invalidated, got %v", cache.invalidated)
	}

	if _, err := svc.GetCurrentUser(context.Background(), "alice"); !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("old identity should no longer resolve, got %v", err)
	}
	if _, err := svc.GetCurrentUser(context.Background(), "alicia"); err != nil {
		t.Fatalf("new identity should resolve: %v", err)
	}
}

func TestAuthService_UpdateProfile_UnknownIdentity(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	_, err := svc.UpdateProfile(context.Background(), "ghost", ports.UpdateProfileInput{Username: "ghost", Email: "g@x.com"})
	if !errors.Is(err, domain.ErrIdentityUnresolved) {
		t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
	}
}

func TestAuthService_UpdateProfile_Validation(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	registerAlice(t, svc)

	_, err := svc.UpdateProfile(context.Background(), "alice", ports.UpdateProfileInput{Username: "alice"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Logout & audit
// ---------------------------------------------------------------------------

func TestAuthService_Logout_Idempotent(t *testing.T) {
	svc := newTestService(memory.NewUserStore())

	sess := session.New()
	sess.Authenticate("alice", "tok")
	ctx := session.NewContext(context.Background(), sess)

	svc.Logout(ctx)
	if _, ok := sess.Identity(); ok {
		t.Fatalf("expected anonymous session after logout")
	}
	svc.Logout(ctx)
	svc.Logout(context.Background())
}

func TestAuthService_RecordsAuditEvents(t *testing.T) {
	rec := &stubRecorder{}
	svc := newTestService(memory.NewUserStore(), WithAuditRecorder(rec))
	registerAlice(t, svc)

	ev := rec.last()
	if ev.Type != domain.EventRegister || ev.Outcome != domain.OutcomeSuccess || ev.Username != "alice" {
		t.Fatalf("unexpected register event: %+v", ev)
	}

	_, _ = svc.Login(context.Background(), ports.LoginInput{UsernameOrEmail: "alice", Password: "nope"})
	ev = rec.last()
	if ev.Type != domain.EventLogin || ev.Outcome != domain.OutcomeFailure || ev.Reason != "invalid_credentials" {
		t.Fatalf("unexpected login event: %+v", ev)
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenario
// ---------------------------------------------------------------------------

func TestAuthService_AliceScenario(t *testing.T) {
	svc := newTestService(memory.NewUserStore())
	ctx := context.Background()

	registerAlice(t, svc)

	err := svc.Register(ctx, ports.RegisterInput{Username: "alice", Email: "alice2@x.com", Password: "pw123"})
	if err == nil || err.Error() != "Username is already taken!" {
		t.Fatalf("expected username taken, got %v", err)
	}

	res, err := svc.Login(ctx, ports.LoginInput{UsernameOrEmail: "alice", Password: "pw123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Username != "alice" || res.Email != "alice@x.com" || res.FullName != "Alice A" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	if _, err := svc.Login(ctx, ports.LoginInput{UsernameOrEmail: "alice", Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected generic invalid credentials, got %v", err)
	}

	p, err := svc.GetCurrentUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get current user: %v", err)
	}
	if p.Username != "alice" || p.ID != res.ID {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
