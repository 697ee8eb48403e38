package models

import "encoding/json"

// UserIdentity identifies the logged-in user and their organization.
// Both fields are required to build API URLs after login.
type UserIdentity struct {
	UserID string `json:"id"`
	OrgID  string `json:"organizationId"`
}

// Connection represents a single metering point under the account's
// shipping address.
type Connection struct {
	MarketSegment string `json:"marketSegment"`
	ConnectionID  string `json:"connectionId"`
}

// UsageValue is one time bucket from the usage endpoint. Time is kept as
// the server's raw string; response timestamps are UTC even though request
// timestamps are provider-local.
type UsageValue struct {
	Time               string  `json:"time"`
	ConsumptionPeak    float64 `json:"consumptionPeak"`
	ConsumptionOffPeak float64 `json:"consumptionOffPeak"`
}

// UsageRecord is one usage response payload, tagged after retrieval with
// the market segment of the connection that produced it. The full server
// payload is carried through untouched: re-serializing a record emits
// every field the server sent, merged with the market tag. Values is a
// typed view of the payload's "values" for projection; the server may
// include bucket fields beyond the two consumption numbers, and those
// survive in the payload even though the view does not model them.
type UsageRecord struct {
	Market string
	Values []UsageValue

	payload map[string]json.RawMessage
}

// UnmarshalJSON keeps the raw payload alongside the typed values view.
func (r *UsageRecord) UnmarshalJSON(data []byte) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	r.Market = ""
	if raw, ok := payload["market"]; ok {
		if err := json.Unmarshal(raw, &r.Market); err != nil {
			return err
		}
		delete(payload, "market")
	}

	r.Values = nil
	if raw, ok := payload["values"]; ok {
		if err := json.Unmarshal(raw, &r.Values); err != nil {
			return err
		}
	}

	r.payload = payload
	return nil
}

// MarshalJSON emits the full server payload merged with the market field.
// Records built by hand (without a captured payload) fall back to the
// typed values view.
func (r UsageRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.payload)+2)
	for k, raw := range r.payload {
		out[k] = raw
	}

	if _, ok := out["values"]; !ok {
		raw, err := json.Marshal(r.Values)
		if err != nil {
			return nil, err
		}
		out["values"] = raw
	}

	raw, err := json.Marshal(r.Market)
	if err != nil {
		return nil, err
	}
	out["market"] = raw

	return json.Marshal(out)
}

// UsageBucket is one archived usage bucket as stored in the local database.
type UsageBucket struct {
	ID                 int     `json:"id"`
	Market             string  `json:"market"`
	Time               string  `json:"time"` // UTC, "2006-01-02 15:04:05"
	Resolution         string  `json:"resolution"`
	ConsumptionPeak    float64 `json:"consumptionPeak"`
	ConsumptionOffPeak float64 `json:"consumptionOffPeak"`
}

// OutputPoint is a single time-series write derived from one side (peak or
// off-peak) of a usage bucket. Regenerated on every run, never stored.
type OutputPoint struct {
	Measurement string  `json:"measurement"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	Timestamp   int64   `json:"timestamp"` // epoch seconds
}
