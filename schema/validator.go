package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed ingest_request.schema.json
var ingestRequestSchemaJSON string

// IngestRequest is a validated ingestion trigger body. Nil fields were absent.
type IngestRequest struct {
	TimeRangeHours      *int
	PostCount           *int
	InstructionTemplate string
	From                *time.Time
	To                  *time.Time
}

type rawIngestRequest struct {
	TimeRangeHours      *int    `json:"timeRangeHours,omitempty"`
	TimeRange           *int    `json:"timeRange,omitempty"`
	PostCount           *int    `json:"postCount,omitempty"`
	InstructionTemplate *string `json:"instructionTemplate,omitempty"`
	CustomPrompt        *string `json:"customPrompt,omitempty"`
	From                *string `json:"from,omitempty"`
	To                  *string `json:"to,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateIngestRequest checks payload against the ingest request schema and
// folds the legacy field names into their current ones.
func ValidateIngestRequest(payload json.RawMessage) (*IngestRequest, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var raw rawIngestRequest
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return resolveSemantics(&raw)
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("ingest_request.schema.json", strings.NewReader(ingestRequestSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("ingest_request.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func resolveSemantics(raw *rawIngestRequest) (*IngestRequest, error) {
	if raw == nil {
		return nil, fmt.Errorf("payload is nil")
	}

	req := &IngestRequest{PostCount: raw.PostCount}

	switch {
	case raw.TimeRangeHours != nil && raw.TimeRange != nil && *raw.TimeRangeHours != *raw.TimeRange:
		return nil, fmt.Errorf("timeRangeHours and timeRange disagree")
	case raw.TimeRangeHours != nil:
		req.TimeRangeHours = raw.TimeRangeHours
	default:
		req.TimeRangeHours = raw.TimeRange
	}

	switch {
	case raw.InstructionTemplate != nil && raw.CustomPrompt != nil && *raw.InstructionTemplate != *raw.CustomPrompt:
		return nil, fmt.Errorf("instructionTemplate and customPrompt disagree")
	case raw.InstructionTemplate != nil:
		req.InstructionTemplate = *raw.InstructionTemplate
	case raw.CustomPrompt != nil:
		req.InstructionTemplate = *raw.CustomPrompt
	}

	var err error
	if req.From, err = parseInstant("from", raw.From); err != nil {
		return nil, err
	}
	if req.To, err = parseInstant("to", raw.To); err != nil {
		return nil, err
	}
	if req.From != nil && req.To != nil && !req.From.Before(*req.To) {
		return nil, fmt.Errorf("from must be before to")
	}

	return req, nil
}

func parseInstant(fieldName string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*value))
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", fieldName, err)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
