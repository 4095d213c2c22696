package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

// ErrInvalidEvent is returned when the payload does not decode into an Event.
var ErrInvalidEvent = errors.New("invalid event payload")

// Event is the invocation input. Bucket and Key are the primary form;
// an S3 notification (Records) is accepted as a fallback.
type Event struct {
	Bucket  string                 `json:"bucket"`
	Key     string                 `json:"key"`
	Records []events.S3EventRecord `json:"Records,omitempty"`
}

// DecodeEvent parses a raw invocation payload. An empty payload decodes to
// an empty Event, which then fails validation.
func DecodeEvent(payload []byte) (Event, error) {
	var event Event
	if len(bytes.TrimSpace(payload)) == 0 {
		return event, nil
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return event, nil
}

// Target returns the bucket and key to process. Explicit fields win over
// the first S3 record; notification keys arrive URL encoded.
func (e Event) Target() (bucket, key string) {
	bucket, key = e.Bucket, e.Key
	if len(e.Records) == 0 {
		return bucket, key
	}

	rec := e.Records[0].S3
	if bucket == "" {
		bucket = rec.Bucket.Name
	}
	if key == "" {
		key = rec.Object.URLDecodedKey
		if key == "" {
			key = rec.Object.Key
			if decoded, err := url.QueryUnescape(key); err == nil {
				key = decoded
			}
		}
	}
	return bucket, key
}

// Response is the envelope returned for every invocation.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// Body is either {"vector": [...]} on success or an "Error: ..." string.
type Body struct {
	Vector  []float64
	Message string
}

type vectorBody struct {
	Vector []float64 `json:"vector"`
}

func (b Body) MarshalJSON() ([]byte, error) {
	if b.Vector != nil {
		return json.Marshal(vectorBody{Vector: b.Vector})
	}
	return json.Marshal(b.Message)
}

func (b *Body) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Message)
	}
	var vb vectorBody
	if err := json.Unmarshal(data, &vb); err != nil {
		return fmt.Errorf("body is neither a message nor a vector: %w", err)
	}
	b.Vector = vb.Vector
	return nil
}

func success(vector []float64) Response {
	if vector == nil {
		vector = []float64{}
	}
	return Response{StatusCode: 200, Body: Body{Vector: vector}}
}

func failure(status int, message string) Response {
	return Response{StatusCode: status, Body: Body{Message: "Error: " + message}}
}
