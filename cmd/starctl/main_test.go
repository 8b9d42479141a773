package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/starregistry/internal/archive"
	"github.com/jmerrifield20/starregistry/internal/chain"
	"github.com/jmerrifield20/starregistry/internal/ownership"
)

// archivedChain writes a chain with n star blocks into a fresh Pebble archive.
// tamper, when set, edits a block copy before it is stored.
func archivedChain(t *testing.T, n int, tamper func(*chain.Block)) (dir, chainID string) {
	t.Helper()
	dir = t.TempDir()
	store, err := archive.OpenPebble(dir)
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	defer store.Close()

	bc := chain.New(ownership.AcceptAll, chain.WithClock(func() time.Time { return time.Unix(1577836800, 0) }))
	for i := 0; i < n; i++ {
		msg := bc.RequestOwnershipMessage("WALLET_1")
		if _, err := bc.SubmitStar("WALLET_1", msg, "SIG", chain.Star{Dec: "d", RA: "r", Story: "s"}); err != nil {
			t.Fatalf("SubmitStar: %v", err)
		}
	}

	for _, b := range bc.Blocks() {
		cp := *b
		if tamper != nil {
			tamper(&cp)
		}
		if err := store.Put(context.Background(), bc.ID(), &cp); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	return dir, bc.ID()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAudit_validArchive(t *testing.T) {
	dir, id := archivedChain(t, 3, nil)

	out, err := execute(t, "audit", "--driver", "pebble", "--path", dir, "--chain", "", "--list=false", "--format", "text")
	if err != nil {
		t.Fatalf("audit: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Chain "+id+": 4 archived block(s)") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "Chain is valid") {
		t.Errorf("expected valid chain:\n%s", out)
	}
}

func TestAudit_tamperedArchive(t *testing.T) {
	dir, _ := archivedChain(t, 3, func(b *chain.Block) {
		if b.Height == 2 {
			b.Time++
		}
	})

	out, err := execute(t, "audit", "--driver", "pebble", "--path", dir, "--chain", "", "--list=false", "--format", "text")
	if err == nil {
		t.Fatal("expected audit to fail on a tampered archive")
	}
	if !strings.Contains(out, "Invalid hash for block #2") {
		t.Errorf("expected hash error for block #2:\n%s", out)
	}
}

func TestAudit_list(t *testing.T) {
	dir, id := archivedChain(t, 1, nil)

	out, err := execute(t, "audit", "--driver", "pebble", "--path", dir, "--chain", "", "--list", "--format", "text")
	if err != nil {
		t.Fatalf("audit --list: %v", err)
	}
	if strings.TrimSpace(out) != id {
		t.Errorf("got %q, want %q", out, id)
	}
}

func TestAudit_missingArchive(t *testing.T) {
	_, err := execute(t, "audit", "--driver", "pebble", "--path", t.TempDir()+"/nope", "--list=false", "--format", "text")
	if err == nil {
		t.Fatal("expected error for a missing archive directory")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "starctl ") {
		t.Errorf("got %q", out)
	}
}
