package parser

import "errors"

// Sentinel errors returned by the link decoders. Callers match them with
// errors.Is; the wrapped message carries the offending scheme or field name.
var (
	ErrUnsupportedScheme      = errors.New("unsupported protocol scheme")
	ErrMalformedPayload       = errors.New("malformed link payload")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrInvalidNumericField    = errors.New("invalid numeric field")
	ErrUnsupportedNetworkType = errors.New("unsupported network type")
)
