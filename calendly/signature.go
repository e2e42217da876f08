package calendly

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the Calendly-Webhook-Signature header against the
// raw request body. The header is a comma-separated list of key=value pairs
// carrying a timestamp (t) and a hex HMAC-SHA256 signature (v1) computed
// over "{t}.{body}".
//
// An empty secret disables verification entirely and accepts any payload.
// That is a deliberate operational bypass for environments without a
// configured signing key, not a fallback for malformed headers.
func VerifySignature(signatureHeader string, rawBody []byte, secret string) bool {
	if secret == "" {
		return true
	}
	if signatureHeader == "" {
		return false
	}

	var timestamp, signature string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signature = value
		}
	}
	if timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
