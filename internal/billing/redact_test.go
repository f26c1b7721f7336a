package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPayloadStripsCustomerPII(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "charge.succeeded",
		"data": {
			"object": {
				"id": "ch_1",
				"amount": 1500,
				"receipt_email": "buyer@example.com",
				"billing_details": {"name": "Ada Lovelace", "address": {"city": "London"}},
				"metadata": {"pack_ref": "pack_small"}
			}
		}
	}`)

	redacted := RedactPayload(payload)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(redacted, &envelope))

	assert.NotContains(t, string(redacted), "buyer@example.com")
	assert.NotContains(t, string(redacted), "Ada Lovelace")
	assert.NotContains(t, string(redacted), "billing_details")

	assert.Contains(t, string(redacted), `"ch_1"`)
	assert.Contains(t, string(redacted), `"pack_ref"`)
	assert.Contains(t, string(redacted), `"evt_1"`)
}

func TestRedactPayloadPassesThroughUnparseable(t *testing.T) {
	payload := []byte(`not json at all`)
	assert.Equal(t, payload, RedactPayload(payload))
}

func TestRedactPayloadWithoutDataObject(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)
	assert.Equal(t, payload, RedactPayload(payload))
}
