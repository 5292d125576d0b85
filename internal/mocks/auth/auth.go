package auth

// Package auth contains simple hand-written test doubles for auth and content ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider         = (*MockAuthProvider)(nil)
	_ ports.SessionStore         = (*MemorySessionStore)(nil)
	_ ports.NativeSessions       = (*MemoryNativeSessions)(nil)
	_ ports.AccessGroupStore     = (*MemoryContent)(nil)
	_ ports.PostRepository       = (*MemoryContent)(nil)
	_ ports.CommentRepository    = (*MemoryComments)(nil)
	_ ports.NativeUserRepository = (*MemoryUsers)(nil)
	_ ports.InternalsStore       = (*MemoryInternals)(nil)
)

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound = model.ErrNotFound

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	// LastExchange records the most recent Exchange input.
	LastExchange ports.ExchangeInput

	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: DefaultIdentity(time.Now()),
	}
}

// DefaultIdentity returns a logged-in identity issued at iat.
func DefaultIdentity(iat time.Time) domainauth.Identity {
	return domainauth.Identity{
		IDToken: domainauth.Claims{"sub": "mock-user-1", "iat": float64(iat.Unix())},
		UserInfo: domainauth.Claims{
			"sub":                  "mock-user-1",
			"preferred_username":   "mockuser",
			"email":                "mock.user@example.com",
			"name":                 "Mock User",
			"edumember_ismemberof": []any{"users"},
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.callCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, m.callCount)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, m.callCount)
	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	m.LastExchange = in
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if m.DefaultUser.UserInfo == nil {
		return DefaultIdentity(time.Now()), nil
	}
	return m.DefaultUser, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]map[string]string)}
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.sessions[id]), nil
}

func (m *MemorySessionStore) Set(_ context.Context, id string, values map[string]string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = make(map[string]string)
		m.sessions[id] = s
	}
	maps.Copy(s, values)
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.sessions[id], k)
	}
	return nil
}

func (m *MemorySessionStore) Destroy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Snapshot returns a copy of a stored session for assertions.
func (m *MemorySessionStore) Snapshot(id string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.sessions[id])
}

// MemoryNativeSessions keeps the native login in a plain cookie for tests.
type MemoryNativeSessions struct {
	CookieName string
}

func (m *MemoryNativeSessions) name() string {
	if m.CookieName == "" {
		return "native_login"
	}
	return m.CookieName
}

func (m *MemoryNativeSessions) Current(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.name())
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (m *MemoryNativeSessions) Login(w http.ResponseWriter, _ *http.Request, login string, ttl time.Duration) error {
	http.SetCookie(w, &http.Cookie{Name: m.name(), Value: login, Path: "/", MaxAge: int(ttl.Seconds())})
	return nil
}

func (m *MemoryNativeSessions) Logout(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, &http.Cookie{Name: m.name(), Value: "", Path: "/", MaxAge: -1})
	return nil
}

// MemoryContent stores posts and their access lists.
type MemoryContent struct {
	mu     sync.Mutex
	posts  map[int64]*model.Post
	access map[int64][]string
	nextID int64

	// AccessErr, when set, is returned by GetAccessGroups.
	AccessErr error
}

// NewMemoryContent creates an empty content store.
func NewMemoryContent() *MemoryContent {
	return &MemoryContent{posts: make(map[int64]*model.Post), access: make(map[int64][]string)}
}

// Add inserts a post with the given access list and returns its id.
func (m *MemoryContent) Add(p model.Post, groups ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	} else if p.ID > m.nextID {
		m.nextID = p.ID
	}
	if p.Type == "" {
		p.Type = model.PostTypePost
	}
	m.posts[p.ID] = &p
	if len(groups) > 0 {
		m.access[p.ID] = groups
	}
	return p.ID
}

func (m *MemoryContent) GetAccessGroups(_ context.Context, postID int64) ([]string, error) {
	if m.AccessErr != nil {
		return nil, m.AccessErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.access[postID]), nil
}

func (m *MemoryContent) SetAccessGroups(_ context.Context, postID int64, groups []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return ErrNotFound
	}
	m.access[postID] = slices.Clone(groups)
	return nil
}

func (m *MemoryContent) Create(_ context.Context, req *model.CreatePostRequest) (*model.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id := m.Add(model.Post{
		Type: req.Type, ParentID: req.ParentID, Slug: req.Slug,
		Title: req.Title, Content: req.Content, Excerpt: req.Excerpt,
	})
	return m.GetByID(context.Background(), id)
}

func (m *MemoryContent) GetByID(_ context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryContent) List(_ context.Context, opts model.PostListOptions) ([]*model.Post, error) {
	opts.Normalize()
	all := m.matching(opts)
	if opts.Offset >= len(all) {
		return []*model.Post{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

func (m *MemoryContent) Count(_ context.Context, opts model.PostListOptions) (int, error) {
	opts.Normalize()
	return len(m.matching(opts)), nil
}

func (m *MemoryContent) matching(opts model.PostListOptions) []*model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if p.Type == model.PostTypeRevision {
			continue
		}
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		if opts.Q != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), strings.ToLower(opts.Q)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Post) int { return int(a.ID - b.ID) })
	return out
}

// MemoryComments stores comments.
type MemoryComments struct {
	mu       sync.Mutex
	comments map[int64]*model.Comment
	nextID   int64
}

// NewMemoryComments creates an empty comment store.
func NewMemoryComments() *MemoryComments {
	return &MemoryComments{comments: make(map[int64]*model.Comment)}
}

func (m *MemoryComments) Create(_ context.Context, c *model.Comment) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.comments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryComments) GetByID(_ context.Context, id int64) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryComments) ListByPost(_ context.Context, postID int64, limit int) ([]*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Comment, 0)
	for _, c := range m.comments {
		if postID == 0 || c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Comment) int { return int(a.ID - b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryUsers stores native accounts by login.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]*domainauth.NativeUser
}

// NewMemoryUsers creates a user store seeded with users.
func NewMemoryUsers(users ...domainauth.NativeUser) *MemoryUsers {
	m := &MemoryUsers{users: make(map[string]*domainauth.NativeUser)}
	for i := range users {
		u := users[i]
		m.users[u.Login] = &u
	}
	return m
}

func (m *MemoryUsers) GetByLogin(_ context.Context, login string) (*domainauth.NativeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[login]
	if !ok {
		return nil, domainauth.ErrNoSuchUser
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) Create(_ context.Context, u *domainauth.NativeUser) (*domainauth.NativeUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Login]; ok {
		return nil, errors.New("login already exists")
	}
	cp := *u
	cp.ID = int64(len(m.users) + 1)
	m.users[cp.Login] = &cp
	out := cp
	return &out, nil
}

// MemoryInternals is an in-memory InternalsStore.
type MemoryInternals struct {
	mu     sync.Mutex
	values map[string]string
	// Sets counts successful first writes.
	Sets int
}

// NewMemoryInternals creates an empty internals store.
func NewMemoryInternals() *MemoryInternals {
	return &MemoryInternals{values: make(map[string]string)}
}

func (m *MemoryInternals) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryInternals) SetIfAbsent(_ context.Context, key, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	m.values[key] = value
	m.Sets++
	return value, nil
}
