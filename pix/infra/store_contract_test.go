package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pix-lifecycle/pix/domain"

	"github.com/shopspring/decimal"
)

type contractStore interface {
	domain.Store
	domain.StaleLister
}

var contractBase = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func newPixAt(owner, token string, created time.Time) domain.NewPix {
	return domain.NewPix{
		Owner:     owner,
		Token:     token,
		Amount:    decimal.RequireFromString("150.75"),
		CreatedAt: created,
		ExpiresAt: created.Add(10 * time.Minute),
	}
}

// runStoreContract exercita o comportamento comum a todos os Stores.
func runStoreContract(t *testing.T, open func(t *testing.T) contractStore) {
	t.Run("create and find", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.Create(ctx, newPixAt("user-1", "tok-1", contractBase))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == 0 || created.Status != domain.StatusGenerated || created.PaidAt != nil {
			t.Fatalf("unexpected created pix %+v", created)
		}

		got, err := s.FindByToken(ctx, "tok-1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.ID != created.ID || got.Owner != "user-1" || got.Status != domain.StatusGenerated {
			t.Fatalf("unexpected pix %+v", got)
		}
		if !got.Amount.Equal(decimal.RequireFromString("150.75")) {
			t.Fatalf("expected amount 150.75, got %s", got.Amount)
		}
		if !got.CreatedAt.Equal(contractBase) || !got.ExpiresAt.Equal(contractBase.Add(10*time.Minute)) {
			t.Fatalf("unexpected times created=%s expires=%s", got.CreatedAt, got.ExpiresAt)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		s := open(t)
		if _, err := s.FindByToken(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate token", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if _, err := s.Create(ctx, newPixAt("user-1", "dup", contractBase)); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := s.Create(ctx, newPixAt("user-2", "dup", contractBase))
		if !errors.Is(err, domain.ErrDuplicateToken) {
			t.Fatalf("expected ErrDuplicateToken, got %v", err)
		}
	})

	t.Run("invalid create persists nothing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		n := newPixAt("user-1", "bad", contractBase)
		n.Amount = decimal.Zero

		if _, err := s.Create(ctx, n); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if c, _ := s.CountByStatus(ctx, domain.StatusGenerated, ""); c != 0 {
			t.Fatalf("expected nothing persisted, got %d", c)
		}
	})

	t.Run("transition compare and swap", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p, err := s.Create(ctx, newPixAt("user-1", "cas", contractBase))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		paidAt := contractBase.Add(time.Minute)
		if err := s.ApplyTransition(ctx, domain.Transition{PixID: p.ID, From: domain.StatusGenerated, To: domain.StatusPaid, PaidAt: &paidAt}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		got, _ := s.FindByToken(ctx, "cas")
		if got.Status != domain.StatusPaid || got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
			t.Fatalf("expected paid at %s, got %+v", paidAt, got)
		}

		err = s.ApplyTransition(ctx, domain.Transition{PixID: p.ID, From: domain.StatusGenerated, To: domain.StatusExpired})
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		got, _ = s.FindByToken(ctx, "cas")
		if got.Status != domain.StatusPaid {
			t.Fatalf("losing transition must not change the row, got %s", got.Status)
		}

		err = s.ApplyTransition(ctx, domain.Transition{PixID: p.ID + 1000, From: domain.StatusGenerated, To: domain.StatusExpired})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		err = s.ApplyTransition(ctx, domain.Transition{PixID: p.ID, From: domain.StatusPaid, To: domain.StatusExpired})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("concurrent transitions have one winner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		p, err := s.Create(ctx, newPixAt("user-1", "race", contractBase))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		const n = 16
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			wins     int
			conflict int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr := domain.Transition{PixID: p.ID, From: domain.StatusGenerated, To: domain.StatusExpired}
				if i%2 == 0 {
					at := contractBase.Add(time.Minute)
					tr.To, tr.PaidAt = domain.StatusPaid, &at
				}
				err := s.ApplyTransition(ctx, tr)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, domain.ErrConflict):
					conflict++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 || conflict != n-1 {
			t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, wins, conflict)
		}
	})

	t.Run("list by owner paginates newest first", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for i := 0; i < 12; i++ {
			if _, err := s.Create(ctx, newPixAt("user-1", fmt.Sprintf("u1-%02d", i), contractBase.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		if _, err := s.Create(ctx, newPixAt("user-2", "u2-00", contractBase)); err != nil {
			t.Fatalf("create: %v", err)
		}

		page, err := s.ListByOwner(ctx, "user-1", domain.PageRequest{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.Total != 12 || page.Page != 1 || page.PageSize != 10 || len(page.Items) != 10 {
			t.Fatalf("unexpected first page total=%d page=%d size=%d items=%d", page.Total, page.Page, page.PageSize, len(page.Items))
		}
		if page.Items[0].Token != "u1-11" || page.Items[9].Token != "u1-02" {
			t.Fatalf("expected newest first, got %s .. %s", page.Items[0].Token, page.Items[9].Token)
		}
		if page.LastPage() != 2 {
			t.Fatalf("expected last page 2, got %d", page.LastPage())
		}

		page, err = s.ListByOwner(ctx, "user-1", domain.PageRequest{Page: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Items) != 2 || page.Items[1].Token != "u1-00" {
			t.Fatalf("unexpected second page %+v", page.Items)
		}

		page, err = s.ListByOwner(ctx, "user-1", domain.PageRequest{Page: 9})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Items) != 0 || page.Total != 12 {
			t.Fatalf("expected empty page past the end, got %d items total=%d", len(page.Items), page.Total)
		}

		page, err = s.ListByOwner(ctx, "nobody", domain.PageRequest{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if page.Total != 0 || page.Items == nil || len(page.Items) != 0 {
			t.Fatalf("expected empty non-nil page, got %+v", page)
		}
	})

	t.Run("count by status", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		a1, _ := s.Create(ctx, newPixAt("a", "a1", contractBase))
		_, _ = s.Create(ctx, newPixAt("a", "a2", contractBase))
		b1, _ := s.Create(ctx, newPixAt("b", "b1", contractBase))

		at := contractBase.Add(time.Minute)
		if err := s.ApplyTransition(ctx, domain.Transition{PixID: a1.ID, From: domain.StatusGenerated, To: domain.StatusPaid, PaidAt: &at}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if err := s.ApplyTransition(ctx, domain.Transition{PixID: b1.ID, From: domain.StatusGenerated, To: domain.StatusExpired}); err != nil {
			t.Fatalf("apply: %v", err)
		}

		want := map[string]map[domain.Status]int64{
			"":  {domain.StatusGenerated: 1, domain.StatusPaid: 1, domain.StatusExpired: 1},
			"a": {domain.StatusGenerated: 1, domain.StatusPaid: 1, domain.StatusExpired: 0},
			"b": {domain.StatusGenerated: 0, domain.StatusPaid: 0, domain.StatusExpired: 1},
		}
		for owner, byStatus := range want {
			for st, n := range byStatus {
				got, err := s.CountByStatus(ctx, st, owner)
				if err != nil {
					t.Fatalf("count: %v", err)
				}
				if got != n {
					t.Fatalf("owner=%q status=%s: expected %d, got %d", owner, st, n, got)
				}
			}
		}
	})

	t.Run("list stale", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, _ = s.Create(ctx, newPixAt("a", "early", contractBase))
		_, _ = s.Create(ctx, newPixAt("a", "late", contractBase.Add(time.Hour)))
		paid, _ := s.Create(ctx, newPixAt("a", "paid", contractBase))
		at := contractBase.Add(time.Minute)
		_ = s.ApplyTransition(ctx, domain.Transition{PixID: paid.ID, From: domain.StatusGenerated, To: domain.StatusPaid, PaidAt: &at})

		stale, err := s.ListStale(ctx, contractBase.Add(10*time.Minute), 10)
		if err != nil {
			t.Fatalf("list stale: %v", err)
		}
		if len(stale) != 1 || stale[0].Token != "early" {
			t.Fatalf("expected only the early pix, got %+v", stale)
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) contractStore {
		return NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) contractStore {
		s, err := OpenSQLite(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStore_CreateUsesClockWhenCreatedAtIsZero(t *testing.T) {
	s := NewMemoryStore(WithMemoryClock(func() time.Time { return contractBase }))
	n := newPixAt("a", "tok", contractBase)
	n.CreatedAt = time.Time{}

	p, err := s.Create(context.Background(), n)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.CreatedAt.Equal(contractBase) {
		t.Fatalf("expected clock time, got %s", p.CreatedAt)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p, _ := s.Create(ctx, newPixAt("a", "tok", contractBase))
	at := contractBase.Add(time.Minute)
	_ = s.ApplyTransition(ctx, domain.Transition{PixID: p.ID, From: domain.StatusGenerated, To: domain.StatusPaid, PaidAt: &at})

	got, _ := s.FindByToken(ctx, "tok")
	*got.PaidAt = time.Time{}
	got.Status = domain.StatusExpired

	again, _ := s.FindByToken(ctx, "tok")
	if again.Status != domain.StatusPaid || again.PaidAt.IsZero() {
		t.Fatalf("store state leaked through returned value: %+v", again)
	}
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	if err := Migrate(context.Background(), s.DB(), SQLite); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
