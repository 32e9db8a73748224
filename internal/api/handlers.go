package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-forecast/internal/ingest"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// FromProtoPredictRequest maps {"records": [...]} into domain records.
func FromProtoPredictRequest(req *structpb.Struct) ([]models.Record, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	value, ok := req.GetFields()["records"]
	if !ok {
		return nil, fmt.Errorf("records field is required")
	}
	list := value.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("records must be a list")
	}
	if len(list.GetValues()) == 0 {
		return []models.Record{}, nil
	}
	data, err := json.Marshal(list.AsSlice())
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return ingest.ParseJSON(data)
}

// ToProtoPredictResponse converts a scored batch into the gRPC response.
func ToProtoPredictResponse(res models.ForecastResult) (*structpb.Struct, error) {
	var records []any
	if len(res.Payload) > 0 {
		if err := json.Unmarshal(res.Payload, &records); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if records == nil {
		records = []any{}
	}
	return structpb.NewStruct(map[string]any{
		"batch_id":            res.BatchID,
		"rows":                res.Rows,
		"cached":              res.Cached,
		"unknown_store_types": res.UnknownStoreTypes,
		"records":             records,
	})
}

// ToProtoPredictRequest builds a Predict request from domain records.
func ToProtoPredictRequest(records []models.Record) (*structpb.Struct, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if list == nil {
		list = []any{}
	}
	return structpb.NewStruct(map[string]any{"records": list})
}

// ServingStatus is reported by both health endpoints.
const ServingStatus = "SERVING"

// HealthResponse is the HealthCheck reply.
func HealthResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"status": structpb.NewStringValue(ServingStatus),
	}}
}
