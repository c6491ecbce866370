package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pix-lifecycle/pix/domain"
)

// recordingBroadcaster guarda cada snapshot publicado.
type recordingBroadcaster struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	err   error
}

func (b *recordingBroadcaster) Publish(_ context.Context, s domain.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, s)
	return b.err
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snaps)
}

func (b *recordingBroadcaster) last() domain.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.snaps) == 0 {
		return domain.Snapshot{}
	}
	return b.snaps[len(b.snaps)-1]
}

// fakeStore é um Store mínimo em memória com ganchos para simular corridas.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	byToken map[string]*domain.Pix

	// beforeApply roda antes do compare-and-swap (com o lock liberado).
	beforeApply func(t domain.Transition)
	// afterApply roda depois de um compare-and-swap vencedor.
	afterApply func(t domain.Transition)
	// createErrs é consumido a cada Create antes de gravar.
	createErrs []error
	countErr   error
	applyCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byToken: map[string]*domain.Pix{}}
}

func (s *fakeStore) Create(_ context.Context, n domain.NewPix) (domain.Pix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return domain.Pix{}, err
		}
	}
	if err := n.Validate(); err != nil {
		return domain.Pix{}, err
	}
	if _, ok := s.byToken[n.Token]; ok {
		return domain.Pix{}, domain.ErrDuplicateToken
	}
	s.nextID++
	p := &domain.Pix{
		ID:        s.nextID,
		Owner:     n.Owner,
		Token:     n.Token,
		Amount:    n.Amount,
		Status:    domain.StatusGenerated,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}
	s.byToken[n.Token] = p
	return *p, nil
}

func (s *fakeStore) put(p domain.Pix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.byToken[p.Token] = &p
}

func (s *fakeStore) get(token string) domain.Pix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.byToken[token]
}

func (s *fakeStore) FindByToken(_ context.Context, token string) (domain.Pix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byToken[token]
	if !ok {
		return domain.Pix{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *fakeStore) ListByOwner(context.Context, string, domain.PageRequest) (domain.Page, error) {
	return domain.Page{}, errors.New("not implemented")
}

func (s *fakeStore) CountByStatus(ctx context.Context, status domain.Status, owner string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, p := range s.byToken {
		if p.Status == status && (owner == "" || p.Owner == owner) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ApplyTransition(ctx context.Context, t domain.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if s.beforeApply != nil {
		s.beforeApply(t)
	}

	err := s.apply(t)
	if err == nil && s.afterApply != nil {
		s.afterApply(t)
	}
	return err
}

func (s *fakeStore) apply(t domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	for _, p := range s.byToken {
		if p.ID != t.PixID {
			continue
		}
		if p.Status != t.From {
			return domain.ErrConflict
		}
		p.Status = t.To
		p.PaidAt = t.PaidAt
		return nil
	}
	return domain.ErrNotFound
}

func (s *fakeStore) ListStale(_ context.Context, before time.Time, limit int) ([]domain.Pix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Pix
	for _, p := range s.byToken {
		if p.Status == domain.StatusGenerated && !p.ExpiresAt.After(before) {
			out = append(out, *p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// seqTokens devolve tokens fixos em sequência.
type seqTokens struct {
	mu     sync.Mutex
	tokens []string
	i      int
}

func (s *seqTokens) Issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i < len(s.tokens) {
		tok := s.tokens[s.i]
		s.i++
		return tok
	}
	s.i++
	return fmt.Sprintf("tok-%d", s.i)
}

// clock é um relógio manual para os testes de expiração.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
