package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/starregistry/internal/chain"
	"github.com/jmerrifield20/starregistry/internal/ownership"
	"github.com/jmerrifield20/starregistry/internal/registry/service"
	"go.uber.org/zap"
)

// ── In-memory stub for archive.Archive ─────────────────────────────────────

type stubArchive struct {
	mu     sync.Mutex
	blocks map[string][]*chain.Block
	fail   bool
}

func newStubArchive() *stubArchive {
	return &stubArchive{blocks: make(map[string][]*chain.Block)}
}

func (a *stubArchive) Put(_ context.Context, chainID string, b *chain.Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("disk full")
	}
	if len(a.blocks[chainID]) > b.Height {
		return nil
	}
	cp := *b
	a.blocks[chainID] = append(a.blocks[chainID], &cp)
	return nil
}

func (a *stubArchive) Blocks(_ context.Context, chainID string) ([]*chain.Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks[chainID], nil
}

func (a *stubArchive) Chains(_ context.Context) ([]string, error) {
	return nil, nil
}

func (a *stubArchive) Close() error { return nil }

func (a *stubArchive) count(chainID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blocks[chainID])
}

// ── Helpers ─────────────────────────────────────────────────────────────────

var now = time.Unix(1577836800, 0)

func newTestService(t *testing.T, verifier chain.SignatureVerifier, store *stubArchive) (*service.StarService, *chain.Blockchain) {
	t.Helper()
	bc := chain.New(verifier, chain.WithClock(func() time.Time { return now }))
	if store == nil {
		return service.NewStarService(bc, nil, zap.NewNop()), bc
	}
	return service.NewStarService(bc, store, zap.NewNop()), bc
}

func submitRequest(svc *service.StarService, address string) service.SubmitRequest {
	return service.SubmitRequest{
		Address:   address,
		Message:   svc.RequestValidation(address),
		Signature: "SIG",
		Star:      chain.Star{Dec: "68° 52' 56.9", RA: "16h 29m 1.0s", Story: "Found star using https://www.google.com/sky/"},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestSubmitStar_archivesAndRecords(t *testing.T) {
	store := newStubArchive()
	svc, bc := newTestService(t, ownership.AcceptAll, store)

	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	var heights []int
	svc.SetAppendRecord(func(h int) { heights = append(heights, h) })

	block, err := svc.SubmitStar(context.Background(), submitRequest(svc, "WALLET_1"))
	if err != nil {
		t.Fatalf("SubmitStar: %v", err)
	}
	if block.Height != 1 {
		t.Errorf("height: got %d, want 1", block.Height)
	}
	if len(heights) != 1 || heights[0] != 1 {
		t.Errorf("append callback: got %v, want [1]", heights)
	}
	if got := store.count(bc.ID()); got != 2 {
		t.Errorf("archived blocks: got %d, want 2", got)
	}
}

func TestSubmitStar_archiveFailureDoesNotFailSubmission(t *testing.T) {
	store := newStubArchive()
	store.fail = true
	svc, bc := newTestService(t, ownership.AcceptAll, store)

	failures := 0
	svc.SetArchiveFailure(func() { failures++ })

	if _, err := svc.SubmitStar(context.Background(), submitRequest(svc, "WALLET_1")); err != nil {
		t.Fatalf("SubmitStar: %v", err)
	}
	if failures != 1 {
		t.Errorf("archive failures: got %d, want 1", failures)
	}
	if bc.Height() != 1 {
		t.Errorf("ledger height: got %d, want 1", bc.Height())
	}

	// Sync backfills once the archive recovers.
	store.fail = false
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := store.count(bc.ID()); got != 2 {
		t.Errorf("archived blocks after sync: got %d, want 2", got)
	}
}

func TestSync_reportsFailure(t *testing.T) {
	store := newStubArchive()
	store.fail = true
	svc, _ := newTestService(t, ownership.AcceptAll, store)

	failures := 0
	svc.SetArchiveFailure(func() { failures++ })

	if err := svc.Sync(context.Background()); err == nil {
		t.Fatal("expected error from failing archive")
	}
	if failures != 1 {
		t.Errorf("archive failures: got %d, want 1", failures)
	}
}

func TestSync_noArchive(t *testing.T) {
	svc, _ := newTestService(t, ownership.AcceptAll, nil)
	if err := svc.Sync(context.Background()); err != nil {
		t.Errorf("Sync without archive: %v", err)
	}
}

func TestSubmitStar_rejectionReasons(t *testing.T) {
	tests := []struct {
		name     string
		verifier chain.SignatureVerifier
		message  func(svc *service.StarService) string
		want     string
	}{
		{
			name:     "malformed",
			verifier: ownership.AcceptAll,
			message:  func(*service.StarService) string { return "WALLET_1:1577836800" },
			want:     service.ReasonMalformed,
		},
		{
			name:     "expired",
			verifier: ownership.AcceptAll,
			message: func(*service.StarService) string {
				return ownership.Issue("WALLET_1", now.Add(-10*time.Minute)).String()
			},
			want: service.ReasonExpired,
		},
		{
			name: "signature",
			verifier: ownership.VerifierFunc(func(string, string, string) (bool, error) {
				return false, nil
			}),
			message: func(svc *service.StarService) string { return svc.RequestValidation("WALLET_1") },
			want:    service.ReasonSignature,
		},
		{
			name: "verifier",
			verifier: ownership.VerifierFunc(func(string, string, string) (bool, error) {
				return false, fmt.Errorf("node unreachable")
			}),
			message: func(svc *service.StarService) string { return svc.RequestValidation("WALLET_1") },
			want:    service.ReasonVerifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubArchive()
			svc, bc := newTestService(t, tt.verifier, store)

			var reasons []string
			svc.SetRejectRecord(func(r string) { reasons = append(reasons, r) })

			req := submitRequest(svc, "WALLET_1")
			req.Message = tt.message(svc)

			_, err := svc.SubmitStar(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := service.RejectionReason(err); got != tt.want {
				t.Errorf("reason: got %q, want %q", got, tt.want)
			}
			if len(reasons) != 1 || reasons[0] != tt.want {
				t.Errorf("reject callback: got %v, want [%s]", reasons, tt.want)
			}
			if bc.Height() != 0 {
				t.Errorf("ledger must be unchanged, height %d", bc.Height())
			}
			if store.count(bc.ID()) != 0 {
				t.Error("rejected submission must not be archived")
			}
		})
	}
}

func TestSubmitStar_invalidUTF8IsMalformed(t *testing.T) {
	store := newStubArchive()
	svc, bc := newTestService(t, ownership.AcceptAll, store)

	req := submitRequest(svc, "WALLET_1")
	req.Star.Dec = "a\xffb"

	_, err := svc.SubmitStar(context.Background(), req)
	if !errors.Is(err, chain.ErrInvalidStar) {
		t.Fatalf("expected ErrInvalidStar, got %v", err)
	}
	if got := service.RejectionReason(err); got != service.ReasonMalformed {
		t.Errorf("reason: got %q, want %q", got, service.ReasonMalformed)
	}
	if bc.Height() != 0 || store.count(bc.ID()) != 0 {
		t.Error("rejected submission must leave ledger and archive unchanged")
	}
}

func TestRejectionReason_internal(t *testing.T) {
	if got := service.RejectionReason(errors.New("boom")); got != service.ReasonInternal {
		t.Errorf("got %q, want %q", got, service.ReasonInternal)
	}
}

func TestOverview(t *testing.T) {
	svc, bc := newTestService(t, ownership.AcceptAll, nil)
	if _, err := svc.SubmitStar(context.Background(), submitRequest(svc, "WALLET_1")); err != nil {
		t.Fatalf("SubmitStar: %v", err)
	}

	ov := svc.Overview()
	if ov.ChainID != bc.ID() {
		t.Errorf("chain ID: got %q, want %q", ov.ChainID, bc.ID())
	}
	if ov.Height != 1 {
		t.Errorf("height: got %d, want 1", ov.Height)
	}
	if ov.TipHash != bc.Tip().Hash {
		t.Errorf("tip hash: got %q, want %q", ov.TipHash, bc.Tip().Hash)
	}
}

func TestStarsByOwner(t *testing.T) {
	svc, _ := newTestService(t, ownership.AcceptAll, nil)
	for _, addr := range []string{"WALLET_1", "WALLET_2", "WALLET_1"} {
		if _, err := svc.SubmitStar(context.Background(), submitRequest(svc, addr)); err != nil {
			t.Fatalf("SubmitStar(%s): %v", addr, err)
		}
	}

	stars, err := svc.StarsByOwner("WALLET_1")
	if err != nil {
		t.Fatalf("StarsByOwner: %v", err)
	}
	if len(stars) != 2 {
		t.Fatalf("got %d stars, want 2", len(stars))
	}
	for _, s := range stars {
		if s.Owner != "WALLET_1" {
			t.Errorf("owner: got %q, want WALLET_1", s.Owner)
		}
	}
}

func TestValidate_reportsTampering(t *testing.T) {
	svc, _ := newTestService(t, ownership.AcceptAll, nil)
	block, err := svc.SubmitStar(context.Background(), submitRequest(svc, "WALLET_1"))
	if err != nil {
		t.Fatalf("SubmitStar: %v", err)
	}

	if errs := svc.Validate(); len(errs) != 0 {
		t.Fatalf("fresh chain should be valid, got %v", errs)
	}

	block.Body = "7b7d"
	errs := svc.Validate()
	if len(errs) != 1 || errs[0] != "Invalid hash for block #1" {
		t.Errorf("got %v, want [Invalid hash for block #1]", errs)
	}
}
