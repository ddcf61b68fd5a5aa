package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmyui/experimentation/internal/domain"
)

// JSONExposureParser implements MessageParser for JSON-formatted exposure messages
type JSONExposureParser struct{}

// NewJSONExposureParser creates a new JSON exposure parser
func NewJSONExposureParser() *JSONExposureParser {
	return &JSONExposureParser{}
}

// Parse parses a JSON message body into an ExposureRecord
func (p *JSONExposureParser) Parse(body []byte) (*domain.ExposureRecord, error) {
	var record domain.ExposureRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	if record.ExperimentID == "" {
		return nil, fmt.Errorf("message is missing experiment_id")
	}
	if record.UserID == "" {
		return nil, fmt.Errorf("message is missing user_id")
	}
	if record.VariantName == "" {
		return nil, fmt.Errorf("message is missing variant_name")
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().Unix()
	}

	record.ProcessedAt = time.Now()
	record.Version = uint64(time.Now().UnixNano())

	return &record, nil
}
