package calendly

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func signFor(t *testing.T, timestamp, body, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "s3cr3t"
	body := "{}"
	sig := signFor(t, "1700000000", body, secret)
	header := fmt.Sprintf("t=1700000000,v1=%s", sig)

	if !VerifySignature(header, []byte(body), secret) {
		t.Error("expected valid signature to verify")
	}
}

func TestVerifySignature_Mutated(t *testing.T) {
	secret := "s3cr3t"
	body := "{}"
	sig := signFor(t, "1700000000", body, secret)

	// Flip one character at every position; all must be rejected.
	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		header := fmt.Sprintf("t=1700000000,v1=%s", string(mutated))
		if VerifySignature(header, []byte(body), secret) {
			t.Errorf("mutated signature at position %d accepted", i)
		}
	}
}

func TestVerifySignature_WrongBody(t *testing.T) {
	secret := "s3cr3t"
	sig := signFor(t, "1700000000", "{}", secret)
	header := fmt.Sprintf("t=1700000000,v1=%s", sig)

	if VerifySignature(header, []byte(`{"a":1}`), secret) {
		t.Error("signature for a different body accepted")
	}
}

func TestVerifySignature_NoSecretSkipsVerification(t *testing.T) {
	if !VerifySignature("t=1,v1=garbage", []byte("{}"), "") {
		t.Error("expected verification to be skipped with no secret")
	}
	if !VerifySignature("", []byte("{}"), "") {
		t.Error("expected missing header to be accepted with no secret")
	}
}

func TestVerifySignature_MalformedHeaders(t *testing.T) {
	secret := "s3cr3t"
	testCases := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "missing v1", header: "t=1700000000"},
		{name: "missing t", header: "v1=deadbeef"},
		{name: "no pairs", header: "garbage"},
		{name: "wrong keys", header: "x=1,y=2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(tc.header, []byte("{}"), secret) {
				t.Errorf("malformed header %q accepted", tc.header)
			}
		})
	}
}

func TestVerifySignature_HeaderWithSpaces(t *testing.T) {
	secret := "s3cr3t"
	body := "{}"
	sig := signFor(t, "1700000000", body, secret)
	header := fmt.Sprintf("t=1700000000, v1=%s", sig)

	if !VerifySignature(header, []byte(body), secret) {
		t.Error("expected header with spaces after commas to verify")
	}
}
