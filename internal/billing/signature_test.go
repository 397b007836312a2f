package billing

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

func TestSignature_RoundTrip(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := SignPayload(body, testSecret, time.Unix(1700000000, 0))

	if !strings.HasPrefix(header, "t=1700000000,v1=") {
		t.Fatalf("unexpected header format: %s", header)
	}
	if !VerifySignature(body, header, testSecret) {
		t.Error("signature produced by SignPayload should verify")
	}
}

func TestSignature_TamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1","amount_total":250000}`)
	header := SignPayload(body, testSecret, time.Now())

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[len(tampered)-2] = '1'

	if VerifySignature(tampered, header, testSecret) {
		t.Error("a one-byte change to the body must fail verification")
	}
}

func TestSignature_WrongSecret(t *testing.T) {
	body := []byte(`{}`)
	header := SignPayload(body, testSecret, time.Now())

	if VerifySignature(body, header, "whsec_other") {
		t.Error("signature must not verify under a different secret")
	}
}

func TestSignature_ReformattedJSONFails(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	header := SignPayload(body, testSecret, time.Now())

	reformatted := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)
	if VerifySignature(reformatted, header, testSecret) {
		t.Error("re-serialized JSON must not verify; the raw bytes are signed")
	}
}

func TestSignature_MalformedHeaders(t *testing.T) {
	body := []byte(`{}`)
	valid := SignPayload(body, testSecret, time.Unix(1700000000, 0))
	v1 := strings.TrimPrefix(valid, "t=1700000000,")

	cases := map[string]string{
		"empty":          "",
		"missing t":      v1,
		"missing v1":     "t=1700000000",
		"non-hex v1":     "t=1700000000,v1=not-hex",
		"garbage":        "nonsense",
		"wrong scheme":   "t=1700000000,v0=" + strings.TrimPrefix(v1, "v1="),
		"empty v1 value": "t=1700000000,v1=",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if VerifySignature(body, header, testSecret) {
				t.Errorf("header %q should not verify", header)
			}
		})
	}
}

func TestSignature_AnyOfMultipleV1(t *testing.T) {
	body := []byte(`{"id":"evt_rotate"}`)
	ts := time.Unix(1700000000, 0)
	good := strings.TrimPrefix(SignPayload(body, testSecret, ts), "t=1700000000,")
	stale := strings.TrimPrefix(SignPayload(body, "whsec_old", ts), "t=1700000000,")

	header := "t=1700000000," + stale + "," + good
	if !VerifySignature(body, header, testSecret) {
		t.Error("header with one matching v1 among several should verify")
	}
}

func TestParseSignatureHeader(t *testing.T) {
	sh, err := ParseSignatureHeader("t=1700000000, v1=abc,v1=def,v0=zzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.Timestamp != "1700000000" {
		t.Errorf("expected timestamp 1700000000, got %q", sh.Timestamp)
	}
	if len(sh.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sh.Signatures))
	}

	ts, err := sh.Time()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("unexpected time %v", ts)
	}

	if _, err := ParseSignatureHeader("v1=abc"); err != ErrMalformedSignature {
		t.Errorf("expected ErrMalformedSignature, got %v", err)
	}
}
