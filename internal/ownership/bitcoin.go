package ownership

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const signedMessageMagic = "Bitcoin Signed Message:\n"

// BitcoinVerifier checks Bitcoin signed-message signatures (the format
// produced by Electrum and Bitcoin Core's signmessage).
//
// Legacy P2PKH addresses are matched for every signature. Signatures from
// compressed keys additionally match the key's P2WPKH and P2SH-P2WPKH
// addresses, so BIP137 segwit headers are accepted too.
type BitcoinVerifier struct {
	params *chaincfg.Params
}

// NewBitcoinVerifier returns a verifier deriving addresses for params.
func NewBitcoinVerifier(params *chaincfg.Params) *BitcoinVerifier {
	return &BitcoinVerifier{params: params}
}

// NetworkParams returns the chain parameters for a network name.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", name)
	}
}

// MessageHash returns the double SHA-256 digest a wallet signs for message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = wire.WriteVarString(&buf, 0, signedMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// Verify reports whether signature (base64, 65-byte compact form) was made
// over message by the key behind address. Undecodable or unrecoverable
// signatures are reported as a mismatch, not as an error.
func (v *BitcoinVerifier) Verify(message, address, signature string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != 65 {
		return false, nil
	}

	// BIP137 segwit headers (35-42) carry the same recovery id as the
	// compressed legacy headers (31-34).
	if sig[0] >= 35 && sig[0] <= 42 {
		sig[0] = 31 + (sig[0]-35)%4
	}

	pub, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return false, nil
	}

	candidates, err := v.addresses(pub.SerializeUncompressed(), pub.SerializeCompressed(), compressed)
	if err != nil {
		return false, fmt.Errorf("derive address: %w", err)
	}
	for _, c := range candidates {
		if c == address {
			return true, nil
		}
	}
	return false, nil
}

// addresses returns every address encoding the recovered key may sign for.
func (v *BitcoinVerifier) addresses(uncompressed, compressed []byte, isCompressed bool) ([]string, error) {
	if !isCompressed {
		p2pkh, err := btcutil.NewAddressPubKey(uncompressed, v.params)
		if err != nil {
			return nil, err
		}
		return []string{p2pkh.EncodeAddress()}, nil
	}

	p2pkh, err := btcutil.NewAddressPubKey(compressed, v.params)
	if err != nil {
		return nil, err
	}

	keyHash := btcutil.Hash160(compressed)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(keyHash, v.params)
	if err != nil {
		return nil, err
	}

	redeemScript := append([]byte{0x00, 0x14}, keyHash...) // OP_0 <20-byte key hash>
	p2sh, err := btcutil.NewAddressScriptHash(redeemScript, v.params)
	if err != nil {
		return nil, err
	}

	return []string{p2pkh.EncodeAddress(), p2wpkh.EncodeAddress(), p2sh.EncodeAddress()}, nil
}

// VerifierFunc adapts an ordinary function to the verifier interface.
type VerifierFunc func(message, address, signature string) (bool, error)

// Verify calls f.
func (f VerifierFunc) Verify(message, address, signature string) (bool, error) {
	return f(message, address, signature)
}

// AcceptAll is a development verifier that accepts every signature.
// Never use it for a public registry.
var AcceptAll = VerifierFunc(func(string, string, string) (bool, error) { return true, nil })
