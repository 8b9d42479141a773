package chain_test

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/jmerrifield20/starregistry/internal/chain"
)

// 2020-01-01T00:00:00Z
const epoch int64 = 1577836800

func TestNewGenesisBlock_hash(t *testing.T) {
	b := chain.NewGenesisBlock(epoch)

	const want = "0b3ced3dae46d3313b5a9b112b7e3f33eb1717255b2719f7c5c1563774ad5ffd"
	if b.Hash != want {
		t.Errorf("genesis hash: got %q, want %q", b.Hash, want)
	}
}

func TestNewGenesisBlock_fields(t *testing.T) {
	b := chain.NewGenesisBlock(epoch)

	if b.Height != 0 {
		t.Errorf("height: got %d, want 0", b.Height)
	}
	if !b.IsGenesis() {
		t.Error("expected genesis block to be identified as genesis")
	}
	if b.PreviousBlockHash != "" {
		t.Errorf("previous hash: got %q, want empty", b.PreviousBlockHash)
	}
	if b.Time != epoch {
		t.Errorf("time: got %d, want %d", b.Time, epoch)
	}
}

func TestNewBlock_bodyIsHexEncodedJSON(t *testing.T) {
	b, err := chain.NewBlock("TEST", 1, "abc", epoch)
	if err != nil {
		t.Fatal(err)
	}
	if b.Body != "225445535422" {
		t.Errorf("body: got %q, want %q", b.Body, "225445535422")
	}
	if b.IsGenesis() {
		t.Error("block at height 1 must not be genesis")
	}
}

func TestNewBlock_hashLinksPreviousBlock(t *testing.T) {
	genesis := chain.NewGenesisBlock(epoch)
	b, err := chain.NewBlock(map[string]string{"name": "Test"}, 1, genesis.Hash, epoch)
	if err != nil {
		t.Fatal(err)
	}

	const want = "557a348dc7e8b0a4ae021f2485db98fb105a130baeb500c396a85a64e67365b3"
	if b.Hash != want {
		t.Errorf("hash: got %q, want %q", b.Hash, want)
	}
	if b.PreviousBlockHash != genesis.Hash {
		t.Errorf("previous hash: got %q, want %q", b.PreviousBlockHash, genesis.Hash)
	}
}

func TestNewBlock_unencodablePayload(t *testing.T) {
	if _, err := chain.NewBlock(make(chan int), 1, "abc", epoch); err == nil {
		t.Error("expected error for a payload that cannot be encoded")
	}
}

func TestEncodePayload_keepsHTMLCharacters(t *testing.T) {
	got, err := chain.EncodePayload("<a&b>")
	if err != nil {
		t.Fatal(err)
	}
	want := hex.EncodeToString([]byte(`"<a&b>"`))
	if got != want {
		t.Errorf("EncodePayload: got %q, want %q", got, want)
	}
}

func TestRecomputeHash_ignoresStoredHash(t *testing.T) {
	b, err := chain.NewBlock(map[string]string{"name": "Test"}, 1, "abc", epoch)
	if err != nil {
		t.Fatal(err)
	}
	sealed := b.Hash

	b.Hash = "forged"
	if got := b.RecomputeHash(); got != sealed {
		t.Errorf("RecomputeHash: got %q, want %q", got, sealed)
	}
	if b.IsValid() {
		t.Error("block with forged hash must not be valid")
	}
}

func TestRecomputeHash_detectsFieldChanges(t *testing.T) {
	mutations := map[string]func(b *chain.Block){
		"height":        func(b *chain.Block) { b.Height = 7 },
		"body":          func(b *chain.Block) { b.Body = "225445535422" },
		"time":          func(b *chain.Block) { b.Time++ },
		"previous hash": func(b *chain.Block) { b.PreviousBlockHash = "def" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			b, err := chain.NewBlock(map[string]string{"name": "Test"}, 1, "abc", epoch)
			if err != nil {
				t.Fatal(err)
			}
			mutate(b)
			if b.IsValid() {
				t.Errorf("block stayed valid after changing %s", name)
			}
		})
	}
}

func TestDecodePayload_roundTrip(t *testing.T) {
	want := chain.StarRecord{
		Star:    chain.Star{Dec: "68° 52' 56.9", RA: "16h 29m 1.0s", Story: "Found <star> & named it"},
		Address: "WALLET_1",
	}
	b, err := chain.NewBlock(want, 1, "abc", epoch)
	if err != nil {
		t.Fatal(err)
	}

	var got chain.StarRecord
	ok, err := b.DecodePayload(&got)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected payload for non-genesis block")
	}
	if got != want {
		t.Errorf("payload: got %+v, want %+v", got, want)
	}
}

func TestDecodePayload_genesisHasNoPayload(t *testing.T) {
	b := chain.NewGenesisBlock(epoch)

	var v map[string]string
	ok, err := b.DecodePayload(&v)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("genesis block must not return a payload")
	}
	if v != nil {
		t.Errorf("destination must be untouched, got %v", v)
	}
}

func TestDecodePayload_corruptBody(t *testing.T) {
	bodies := map[string]string{
		"not hex":      "zz",
		"invalid json": hex.EncodeToString([]byte(`{"star":`)),
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			b, err := chain.NewBlock(map[string]string{"name": "Test"}, 1, "abc", epoch)
			if err != nil {
				t.Fatal(err)
			}
			b.Body = body

			var v map[string]string
			if _, err := b.DecodePayload(&v); !errors.Is(err, chain.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}
