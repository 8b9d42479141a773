package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// digestInput is the canonical shape hashed for a block. The field order is
// part of the digest.
type digestInput struct {
	Height            int     `json:"height"`
	Body              string  `json:"body"`
	Time              int64   `json:"time"`
	PreviousBlockHash *string `json:"previousBlockHash"`
}

// EncodePayload returns the canonical body encoding of v: its JSON form,
// without HTML escaping, as lowercase hex. Invalid UTF-8 in strings is
// replaced with U+FFFD, so callers validate text before encoding.
func EncodePayload(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return hex.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// decodeBody reverses EncodePayload into v.
func decodeBody(body string, v any) error {
	raw, err := hex.DecodeString(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// computeDigest returns the hex SHA-256 of the block fields. An empty
// previousHash is hashed as JSON null.
func computeDigest(height int, body string, time int64, previousHash string) string {
	in := digestInput{Height: height, Body: body, Time: time}
	if previousHash != "" {
		in.PreviousBlockHash = &previousHash
	}
	// Marshal cannot fail for a struct of strings and integers.
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
