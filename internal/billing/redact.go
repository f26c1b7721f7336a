package billing

import "encoding/json"

// Keys removed from the stored copy of a webhook payload. The ledger keeps
// the money facts; customer contact details stay out of the database.
var redactedObjectKeys = []string{
	"billing_details",
	"customer_address",
	"customer_email",
	"customer_name",
	"customer_phone",
	"customer_shipping",
	"receipt_email",
	"shipping",
}

// RedactPayload strips customer PII from the data object of a webhook
// payload before it is persisted. A payload that does not parse is stored
// as-is; claim-time storage must never block on payload shape.
func RedactPayload(payload []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return payload
	}
	dataRaw, ok := envelope["data"]
	if !ok {
		return payload
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return payload
	}
	objectRaw, ok := data["object"]
	if !ok {
		return payload
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(objectRaw, &object); err != nil {
		return payload
	}
	for _, key := range redactedObjectKeys {
		delete(object, key)
	}

	newObject, err := json.Marshal(object)
	if err != nil {
		return payload
	}
	data["object"] = newObject
	newData, err := json.Marshal(data)
	if err != nil {
		return payload
	}
	envelope["data"] = newData
	redacted, err := json.Marshal(envelope)
	if err != nil {
		return payload
	}
	return redacted
}
