package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the parsed form of a "t=<unix>,v1=<hex>" header.
// Providers may send several v1 entries while rotating secrets.
type SignatureHeader struct {
	Timestamp  string
	Signatures []string
}

var ErrMalformedSignature = errors.New("malformed signature header")

// ParseSignatureHeader splits the comma-separated key=value fields of a
// signature header. Both t and at least one v1 must be present.
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	var sh SignatureHeader
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			sh.Timestamp = value
		case "v1":
			if value != "" {
				sh.Signatures = append(sh.Signatures, value)
			}
		}
	}

	if sh.Timestamp == "" || len(sh.Signatures) == 0 {
		return SignatureHeader{}, ErrMalformedSignature
	}
	return sh, nil
}

// Time returns the header timestamp as a time.Time.
func (sh SignatureHeader) Time() (time.Time, error) {
	sec, err := strconv.ParseInt(sh.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing signature timestamp: %w", err)
	}
	return time.Unix(sec, 0), nil
}

// VerifySignature recomputes HMAC-SHA256 over "{t}.{rawBody}" and compares it
// in constant time with every v1 entry of the header. rawBody must be the
// bytes exactly as received.
func VerifySignature(rawBody []byte, header, secret string) bool {
	sh, err := ParseSignatureHeader(header)
	if err != nil {
		return false
	}

	expected := computeHMAC(sh.Timestamp, rawBody, secret)
	for _, sig := range sh.Signatures {
		provided, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, provided) {
			return true
		}
	}
	return false
}

// SignPayload builds a signature header for rawBody at the given time.
func SignPayload(rawBody []byte, secret string, ts time.Time) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	sig := computeHMAC(timestamp, rawBody, secret)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(sig)
}

func computeHMAC(timestamp string, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
