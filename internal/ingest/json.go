package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/miradorstack/mirador-forecast/internal/models"
)

// ErrEmptyBody is returned when a JSON payload carries nothing to decode.
var ErrEmptyBody = errors.New("empty request body")

// ReadJSON decodes records from a JSON array, an object with a "records"
// array, or a single record object.
func ReadJSON(r io.Reader) ([]models.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	return ParseJSON(data)
}

// ParseJSON is ReadJSON over an in-memory payload.
func ParseJSON(data []byte) ([]models.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}

	switch data[0] {
	case '[':
		var records []models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return records, nil
	case '{':
		var envelope struct {
			Records json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		if len(envelope.Records) != 0 {
			var records []models.Record
			if err := json.Unmarshal(envelope.Records, &records); err != nil {
				return nil, fmt.Errorf("decode records: %w", err)
			}
			return records, nil
		}
		var record models.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return []models.Record{record}, nil
	default:
		return nil, fmt.Errorf("decode body: expected JSON array or object")
	}
}
