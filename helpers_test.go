package profauth

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func engineTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newEngineWithConfig(t *testing.T, cfg Config) (*Engine, *fakeStore, *recordingNotifier, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newFakeStore()
	notifier := &recordingNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, notifier, mr, func() {
		engine.Close()
		mr.Close()
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *recordingNotifier, *miniredis.Miniredis, func()) {
	t.Helper()
	return newEngineWithConfig(t, engineTestConfig())
}

func seedPrincipal(t *testing.T, engine *Engine, store *fakeStore, kind PrincipalKind, email, pass string) *PrincipalRecord {
	t.Helper()

	hash, err := engine.passwordHash.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	return store.seed(&PrincipalRecord{
		ExternalID:   email + "-ext",
		Kind:         kind,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		TOTPSecret:   []byte("12345678901234567890"),
	})
}

type sentMessage struct {
	Media     Media
	Recipient string
	Subject   string
	Body      string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Send(_ context.Context, media Media, recipient, subject, body string) error {
	if media != MediaEmail {
		return ErrSMSNotImplemented
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{media, recipient, subject, body})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

/*
====================================
FAKE STORE
====================================
*/

type fakeEdgeKey struct{ master, profile int64 }

type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	principals map[int64]*PrincipalRecord
	sessions   map[string]*SessionRecord
	edges      map[fakeEdgeKey]Edge
	codes      map[CodePurpose]map[[32]byte]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     1,
		principals: map[int64]*PrincipalRecord{},
		sessions:   map[string]*SessionRecord{},
		edges:      map[fakeEdgeKey]Edge{},
		codes: map[CodePurpose]map[[32]byte]int64{
			CodeEmailConfirm:  {},
			CodePasswordReset: {},
		},
	}
}

func (s *fakeStore) seed(rec *PrincipalRecord) *PrincipalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	s.principals[rec.ID] = rec
	out := *rec
	return &out
}

func (s *fakeStore) sessionCount(kind PrincipalKind, principalID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.sessions {
		if rec.Kind == kind && rec.PrincipalID == principalID {
			n++
		}
	}
	return n
}

func (s *fakeStore) FindByIdentifier(_ context.Context, kind PrincipalKind, identifier string) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.principals {
		if rec.Kind == kind && (rec.Email == identifier || (rec.Phone != "" && rec.Phone == identifier)) {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) FindByExternalID(_ context.Context, kind PrincipalKind, externalID string) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.principals {
		if rec.Kind == kind && rec.ExternalID == externalID {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) FindByID(_ context.Context, kind PrincipalKind, id int64) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.principals[id]
	if !ok || rec.Kind != kind {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *fakeStore) CreateMaster(_ context.Context, input CreateMasterInput) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.principals {
		if rec.Kind == KindMaster && rec.Email == input.Email {
			return nil, ErrDuplicate
		}
	}
	rec := &PrincipalRecord{
		ID:           s.nextID,
		ExternalID:   input.ExternalID,
		Kind:         KindMaster,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		Active:       input.Active,
		TOTPSecret:   input.TOTPSecret,
	}
	s.nextID++
	s.principals[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (s *fakeStore) CreateProfile(_ context.Context, input CreateProfileInput) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.principals {
		if rec.Kind == KindProfile && rec.Email == input.Email {
			return nil, ErrDuplicate
		}
	}
	rec := &PrincipalRecord{
		ID:               s.nextID,
		ExternalID:       input.ExternalID,
		Kind:             KindProfile,
		Email:            input.Email,
		PasswordHash:     input.PasswordHash,
		Active:           true,
		TOTPSecret:       input.TOTPSecret,
		PublicAttributes: input.PublicAttributes,
	}
	s.nextID++
	s.principals[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, ref PrincipalRef, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.principals[ref.ID]
	if !ok {
		return ErrNotFound
	}
	rec.PasswordHash = newHash
	return nil
}

func (s *fakeStore) SetActive(_ context.Context, ref PrincipalRef, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.principals[ref.ID]
	if !ok {
		return ErrNotFound
	}
	rec.Active = active
	return nil
}

func (s *fakeStore) SetOneTimeCode(_ context.Context, ref PrincipalRef, purpose CodePurpose, codeHash [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.principals[ref.ID]; !ok {
		return ErrNotFound
	}
	s.codes[purpose][codeHash] = ref.ID
	return nil
}

func (s *fakeStore) ConsumeOneTimeCode(_ context.Context, kind PrincipalKind, purpose CodePurpose, codeHash [32]byte) (*PrincipalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[purpose][codeHash]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := s.principals[id]
	if !ok || rec.Kind != kind {
		return nil, ErrNotFound
	}
	delete(s.codes[purpose], codeHash)
	out := *rec
	return &out, nil
}

func (s *fakeStore) CreateSession(_ context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *rec
	s.sessions[rec.JTI] = &out
	return nil
}

func (s *fakeStore) GetSession(_ context.Context, jti string) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[jti]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *fakeStore) TouchSession(_ context.Context, jti string, lastActive time.Time, deviceHash [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[jti]; ok {
		rec.LastActiveAt = lastActive
		rec.DeviceHash = deviceHash
	}
	return nil
}

func (s *fakeStore) DeleteSession(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return nil
}

func (s *fakeStore) DeleteSessionsForPrincipal(_ context.Context, kind PrincipalKind, principalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, rec := range s.sessions {
		if rec.Kind == kind && rec.PrincipalID == principalID {
			delete(s.sessions, jti)
		}
	}
	return nil
}

func (s *fakeStore) UpsertEdge(_ context.Context, masterID, profileID int64, sortOrder int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[fakeEdgeKey{masterID, profileID}] = Edge{
		MasterID: masterID, ProfileID: profileID, SortOrder: sortOrder,
	}
	return nil
}

func (s *fakeStore) GetEdge(_ context.Context, masterID, profileID int64) (*Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge, ok := s.edges[fakeEdgeKey{masterID, profileID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &edge, nil
}

func (s *fakeStore) ListEdges(_ context.Context, masterID int64) ([]Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Edge
	for _, edge := range s.edges {
		if edge.MasterID == masterID {
			out = append(out, edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	return out, nil
}

func (s *fakeStore) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(s)
}
