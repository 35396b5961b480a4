package changelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Envelope is the DynamoDB stream record shape delivered by the change
// log: the same JSON the Kinesis streaming destination writes into each
// record's data blob. Only the fields the service reads or writes are
// modelled; everything else is ignored on decode.
type Envelope struct {
	EventID     string       `json:"eventID,omitempty"`
	EventName   string       `json:"eventName,omitempty"`
	EventSource string       `json:"eventSource,omitempty"`
	TableName   string       `json:"tableName,omitempty"`
	AWSRegion   string       `json:"awsRegion,omitempty"`
	Dynamodb    StreamRecord `json:"dynamodb"`
}

// StreamRecord is the "dynamodb" section of an Envelope.
type StreamRecord struct {
	ApproximateCreationDateTime json.Number               `json:"ApproximateCreationDateTime,omitempty"`
	Keys                        map[string]AttributeValue `json:"Keys"`
	NewImage                    map[string]AttributeValue `json:"NewImage,omitempty"`
	OldImage                    map[string]AttributeValue `json:"OldImage,omitempty"`
}

// AttributeValue is a DynamoDB-JSON scalar. Keys are strings or numbers.
type AttributeValue struct {
	S *string `json:"S,omitempty"`
	N *string `json:"N,omitempty"`
}

// StringValue builds an "S" attribute.
func StringValue(s string) AttributeValue { return AttributeValue{S: &s} }

// NumberValue builds an "N" attribute.
func NumberValue(f float64) AttributeValue {
	n := strconv.FormatFloat(f, 'f', -1, 64)
	return AttributeValue{N: &n}
}

var (
	errNoKeys    = errors.New("envelope has no dynamodb.Keys")
	errKeyAbsent = errors.New("key attribute absent")
	errKeyType   = errors.New("key attribute is not a string")
)

// ParseKey extracts the primary key named keyAttr from a raw envelope.
func ParseKey(data []byte, keyAttr string) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", Parse("decode envelope", err)
	}
	return env.Key(keyAttr)
}

// Key returns the primary key named keyAttr.
func (e Envelope) Key(keyAttr string) (string, error) {
	if len(e.Dynamodb.Keys) == 0 {
		return "", Parse("decode envelope", errNoKeys)
	}
	av, ok := e.Dynamodb.Keys[keyAttr]
	if !ok {
		return "", Parse("decode envelope", fmt.Errorf("%w: %q", errKeyAbsent, keyAttr))
	}
	// Items are stored and looked up under string keys only.
	if av.S == nil {
		return "", Parse("decode envelope", fmt.Errorf("%w: %q", errKeyType, keyAttr))
	}
	return *av.S, nil
}

// NewEnvelope builds the envelope for a write of item into table. It is
// used by backends that have no native change capture.
func NewEnvelope(eventName, table, keyAttr, valueAttr string, item Item, at time.Time) Envelope {
	image := map[string]AttributeValue{keyAttr: StringValue(item.ID)}
	if item.Value != nil {
		image[valueAttr] = NumberValue(*item.Value)
	}
	return Envelope{
		EventName:   eventName,
		EventSource: "aws:dynamodb",
		TableName:   table,
		Dynamodb: StreamRecord{
			ApproximateCreationDateTime: json.Number(strconv.FormatInt(at.UnixMilli(), 10)),
			Keys:                        map[string]AttributeValue{keyAttr: StringValue(item.ID)},
			NewImage:                    image,
		},
	}
}

// Encode renders e as JSON.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
