package ownership

import (
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Signer produces Bitcoin signed-message signatures from a WIF private key,
// the same way a wallet does. It backs the CLI's local signing mode.
type Signer struct {
	wif    *btcutil.WIF
	params *chaincfg.Params
}

// NewSigner decodes a WIF key for params.
func NewSigner(wif string, params *chaincfg.Params) (*Signer, error) {
	key, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, fmt.Errorf("decode WIF: %w", err)
	}
	if !key.IsForNet(params) {
		return nil, fmt.Errorf("WIF key is not for network %s", params.Name)
	}
	return &Signer{wif: key, params: params}, nil
}

// Address returns the P2PKH address of the signing key.
func (s *Signer) Address() (string, error) {
	addr, err := btcutil.NewAddressPubKey(s.wif.SerializePubKey(), s.params)
	if err != nil {
		return "", fmt.Errorf("derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// Sign returns the base64 compact signature of message.
func (s *Signer) Sign(message string) string {
	sig := ecdsa.SignCompact(s.wif.PrivKey, MessageHash(message), s.wif.CompressPubKey)
	return base64.StdEncoding.EncodeToString(sig)
}
