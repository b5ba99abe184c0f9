package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	identity "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// passthroughTxm satisfies the transaction manager without a database; the
// in-memory stores below ignore the tx handle entirely.
type passthroughTxm struct{}

func (passthroughTxm) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

type memRefreshTokenStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*identity.RefreshToken
}

func newMemRefreshTokenStore() *memRefreshTokenStore {
	return &memRefreshTokenStore{records: map[uuid.UUID]*identity.RefreshToken{}}
}

func (s *memRefreshTokenStore) Create(ctx context.Context, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	return s.CreateTx(ctx, bun.Tx{}, record, criteria...)
}

func (s *memRefreshTokenStore) CreateTx(ctx context.Context, tx bun.IDB, record *identity.RefreshToken, criteria ...repository.InsertCriteria) (*identity.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	clone := *record
	s.records[record.ID] = &clone
	return record, nil
}

func (s *memRefreshTokenStore) GetByHash(ctx context.Context, hash string) (*identity.RefreshToken, error) {
	return s.GetByHashTx(ctx, bun.Tx{}, hash)
}

func (s *memRefreshTokenStore) GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*identity.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.TokenHash == hash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memRefreshTokenStore) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.RevokeTx(ctx, bun.Tx{}, id)
}

func (s *memRefreshTokenStore) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	return true, nil
}

type memVerificationTokenStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*identity.VerificationToken
}

func newMemVerificationTokenStore() *memVerificationTokenStore {
	return &memVerificationTokenStore{records: map[uuid.UUID]*identity.VerificationToken{}}
}

func (s *memVerificationTokenStore) Create(ctx context.Context, record *identity.VerificationToken, criteria ...repository.InsertCriteria) (*identity.VerificationToken, error) {
	return s.CreateTx(ctx, bun.Tx{}, record, criteria...)
}

func (s *memVerificationTokenStore) CreateTx(ctx context.Context, tx bun.IDB, record *identity.VerificationToken, criteria ...repository.InsertCriteria) (*identity.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	clone := *record
	s.records[record.ID] = &clone
	return record, nil
}

func (s *memVerificationTokenStore) GetByHashTx(ctx context.Context, tx bun.IDB, purpose identity.TokenPurpose, hash string) (*identity.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Purpose == purpose && record.TokenHash == hash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memVerificationTokenStore) GetByUserAndHashTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, purpose identity.TokenPurpose, hash string) (*identity.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.UserID == userID && record.Purpose == purpose && record.TokenHash == hash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memVerificationTokenStore) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.UsedAt != nil {
		return false, nil
	}
	usedAt := now
	record.UsedAt = &usedAt
	return true, nil
}

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identity.User
}

func newMemUserStore(users ...*identity.User) *memUserStore {
	s := &memUserStore{users: map[uuid.UUID]*identity.User{}}
	for _, user := range users {
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		clone := *user
		s.users[user.ID] = &clone
	}
	return s
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) GetByIdentifier(ctx context.Context, identifier string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == identifier || user.Phone == identifier {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memUserStore) Deactivate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		user.Active = false
	}
}

func (s *memUserStore) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	user.EmailVerified = true
	return nil
}

func (s *memUserStore) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	user.PasswordHash = passwordHash
	return nil
}

type memServiceKeyStore struct {
	mu      sync.Mutex
	keys    map[string]*identity.ServiceAPIKey
	touched []uuid.UUID
}

func newMemServiceKeyStore(keys ...*identity.ServiceAPIKey) *memServiceKeyStore {
	s := &memServiceKeyStore{keys: map[string]*identity.ServiceAPIKey{}}
	for _, key := range keys {
		if key.ID == uuid.Nil {
			key.ID = uuid.New()
		}
		clone := *key
		s.keys[key.KeyHash] = &clone
	}
	return s
}

func (s *memServiceKeyStore) GetByHash(ctx context.Context, hash string) (*identity.ServiceAPIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[hash]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	clone := *key
	return &clone, nil
}

func (s *memServiceKeyStore) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touched = append(s.touched, id)
	return nil
}

type memServiceResolver struct {
	services map[uuid.UUID]*identity.Service
}

func newMemServiceResolver(services ...*identity.Service) *memServiceResolver {
	s := &memServiceResolver{services: map[uuid.UUID]*identity.Service{}}
	for _, service := range services {
		if service.ID == uuid.Nil {
			service.ID = uuid.New()
		}
		clone := *service
		s.services[service.ID] = &clone
	}
	return s
}

func (s *memServiceResolver) GetByID(ctx context.Context, id uuid.UUID) (*identity.Service, error) {
	service, ok := s.services[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	clone := *service
	return &clone, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []identity.AuthEventRecord
}

func (s *captureSink) Record(ctx context.Context, event identity.AuthEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Events() []identity.AuthEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]identity.AuthEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
