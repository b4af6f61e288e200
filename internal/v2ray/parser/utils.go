package parser

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DecodeBase64 decodes a base64 string, restoring stripped padding first.
// Standard encoding is tried before the URL-safe alphabet.
func DecodeBase64(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64: %w", err)
		}
	}
	return string(decoded), nil
}

// FixIllegalURL cleans up whitespace and stray line breaks that
// subscription feeds commonly leave inside links.
func FixIllegalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, "\r", "")
	raw = strings.ReplaceAll(raw, "\n", "")
	return raw
}

// unescapeIfEncoded percent-decodes payloads that arrive URL-escaped.
// Payloads without a '%' are passed through untouched so that raw
// base64 containing '+' is not mangled.
func unescapeIfEncoded(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// parsePort converts a textual port and enforces the valid range.
func parsePort(value, field string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumericField, field)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumericField, field)
	}
	return port, nil
}
