package chain

import "errors"

var (
	// ErrVerificationExpired is returned by SubmitStar when the ownership
	// verification message is older than the configured window.
	ErrVerificationExpired = errors.New("ownership verification message has expired")

	// ErrInvalidSignature is returned by SubmitStar when the signature does not
	// match the address and message.
	ErrInvalidSignature = errors.New("signature does not match address and message")

	// ErrDecode is returned when a stored block body no longer decodes. It only
	// arises from corruption or tampering.
	ErrDecode = errors.New("block body cannot be decoded")

	// ErrInvalidStar is returned by SubmitStar when the address or a star field
	// is not valid UTF-8. Such text would not survive the body encoding.
	ErrInvalidStar = errors.New("star record is not valid UTF-8")

	// ErrVerifierBackend wraps faults raised by the signature verifier itself.
	ErrVerifierBackend = errors.New("signature verifier failed")
)
