package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"pix-lifecycle/pix/domain"
)

// MemoryStore é um Store em memória.
// Útil para testes e desenvolvimento (STORE_DRIVER=memory).
//
// Não persiste nada e não é indicado para produção.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*domain.Pix
	byToken map[string]int64

	now func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock troca o relógio usado quando NewPix.CreatedAt vem zerado.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[int64]*domain.Pix),
		byToken: make(map[string]int64),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, n domain.NewPix) (domain.Pix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pix{}, err
	}
	n, err := prepareNewPix(n, s.now)
	if err != nil {
		return domain.Pix{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byToken[n.Token]; dup {
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
	s.byID[p.ID] = p
	s.byToken[p.Token] = p.ID
	return clonePix(p), nil
}

func (s *MemoryStore) FindByToken(ctx context.Context, token string) (domain.Pix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pix{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[token]
	if !ok {
		return domain.Pix{}, domain.ErrNotFound
	}
	return clonePix(s.byID[id]), nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, owner string, req domain.PageRequest) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	req = req.Normalize()

	s.mu.Lock()
	var all []domain.Pix
	for _, p := range s.byID {
		if p.Owner == owner {
			all = append(all, clonePix(p))
		}
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	page := domain.Page{Page: req.Page, PageSize: req.PageSize, Total: int64(len(all)), Items: []domain.Pix{}}
	start := req.Offset()
	if start >= len(all) {
		return page, nil
	}
	end := start + req.PageSize
	if end > len(all) {
		end = len(all)
	}
	page.Items = all[start:end]
	return page, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, status domain.Status, owner string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.byID {
		if p.Status != status {
			continue
		}
		if owner != "" && p.Owner != owner {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, t domain.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[t.PixID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != t.From {
		return domain.ErrConflict
	}
	p.Status = t.To
	if t.PaidAt != nil {
		paidAt := t.PaidAt.UTC()
		p.PaidAt = &paidAt
	}
	return nil
}

func (s *MemoryStore) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Pix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []domain.Pix
	for _, p := range s.byID {
		if p.Status == domain.StatusGenerated && !p.ExpiresAt.After(before) {
			out = append(out, clonePix(p))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clonePix(p *domain.Pix) domain.Pix {
	c := *p
	if p.PaidAt != nil {
		paidAt := *p.PaidAt
		c.PaidAt = &paidAt
	}
	return c
}

// prepareNewPix normaliza e valida os dados de criação (usado pelos dois stores).
func prepareNewPix(n domain.NewPix, now func() time.Time) (domain.NewPix, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.ExpiresAt = n.ExpiresAt.UTC()
	if err := n.Validate(); err != nil {
		return domain.NewPix{}, err
	}
	return n, nil
}

var (
	_ domain.Store       = (*MemoryStore)(nil)
	_ domain.StaleLister = (*MemoryStore)(nil)
)
