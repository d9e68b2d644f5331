package utils

import (
	"encoding/base64"
	"strings"
)

// DecodeBase64 decodes standard or URL-safe base64, padded or not.
func DecodeBase64(s string) (string, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")

	encoding := base64.RawStdEncoding
	if strings.ContainsAny(s, "-_") {
		encoding = base64.RawURLEncoding
	}
	decoded, err := encoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
