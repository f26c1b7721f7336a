package types

import "log/slog"

// secretMask replaces secret material in every rendered form.
const secretMask = "[secret]"

// SecretString holds credential material loaded from the environment, such
// as the database DSN, the rate limit Redis URL, and the Stripe webhook
// signing secret. It masks itself on every rendering path a config value can
// take in this service: fmt via Stringer, encoding/json, and slog record
// attributes. Call Unmask only where the plaintext leaves the process, so
// that every such site stays greppable.
type SecretString string

func (s SecretString) String() string { return secretMask }

// MarshalJSON masks the value so serialized config and response payloads
// never carry it.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + secretMask + `"`), nil
}

// LogValue masks the value when a SecretString is passed as a slog attr.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(secretMask)
}

// Unmask returns the plaintext.
func (s SecretString) Unmask() string {
	return string(s)
}
