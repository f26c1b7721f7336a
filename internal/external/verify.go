package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"balanceguard/internal/types"
)

// DefaultSignatureTolerance bounds how far a webhook timestamp may drift from
// the receiving clock before the delivery is treated as a replay.
const DefaultSignatureTolerance = 300 * time.Second

// signedPayload builds the exact byte sequence Stripe signs: the timestamp,
// a dot, and the raw body. The body must be the untouched request bytes;
// re-serialized JSON will not verify.
func signedPayload(timestamp string, payload []byte) []byte {
	buf := make([]byte, 0, len(timestamp)+1+len(payload))
	buf = append(buf, timestamp...)
	buf = append(buf, '.')
	buf = append(buf, payload...)
	return buf
}

// ComputeStripeSignature returns the hex HMAC-SHA256 of "{t}.{body}" under
// the shared secret. Exported so tests can mint valid headers.
func ComputeStripeSignature(secret string, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signedPayload(timestamp, payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyStripeSignature checks a Stripe-Signature header against the raw
// request body. It is a pure function: no I/O, no clock reads, fully
// deterministic given its inputs.
//
// The header is a comma-separated list of k=v pairs carrying a timestamp
// ("t") and one or more hex signatures under the "v1" scheme. Verification
// succeeds when the timestamp is within tolerance of now AND any v1 value
// timing-safe-equals HMAC_SHA256(secret, "{t}.{body}").
//
// Each failure mode returns a distinct error code:
//
//	WEBHOOK_SIGNATURE_MISSING            header absent
//	WEBHOOK_SIGNATURE_MALFORMED          no parsable t / no v1 entries
//	WEBHOOK_TIMESTAMP_OUT_OF_TOLERANCE   |now - t| > tolerance
//	WEBHOOK_SIGNATURE_MISMATCH           no v1 entry matches
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return types.NewAppError(
			types.ErrCodeWebhookSignatureMissing,
			"stripe-signature header is missing",
			nil,
		)
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeWebhookSignatureMalformed,
			"stripe-signature header is malformed",
			err,
		)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeWebhookSignatureMalformed,
			"stripe-signature timestamp is not an integer",
			err,
		)
	}

	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(tolerance/time.Second) {
		return types.NewAppError(
			types.ErrCodeWebhookTimestampTolerance,
			"stripe-signature timestamp is outside the tolerance window",
			nil,
		)
	}

	expected := ComputeStripeSignature(secret, timestamp, payload)
	expectedBytes, _ := hex.DecodeString(expected)
	for _, sig := range signatures {
		sigBytes, decodeErr := hex.DecodeString(sig)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(sigBytes, expectedBytes) {
			return nil
		}
	}

	return types.NewAppError(
		types.ErrCodeWebhookSignatureMismatch,
		"no signature in the header matches the payload",
		nil,
	)
}

// parseSignatureHeader splits the comma-separated k=v pairs and extracts the
// timestamp and the v1 signature list. Unknown schemes (v0, future versions)
// are skipped, matching Stripe's own verification guidance.
func parseSignatureHeader(header string) (timestamp string, signatures []string, err error) {
	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}

	if timestamp == "" {
		return "", nil, fmt.Errorf("missing t component")
	}
	if len(signatures) == 0 {
		return "", nil, fmt.Errorf("missing v1 component")
	}
	return timestamp, signatures, nil
}
