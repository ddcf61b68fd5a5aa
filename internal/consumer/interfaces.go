package consumer

import (
	"github.com/cmyui/experimentation/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into
// exposure records
type MessageParser interface {
	Parse(body []byte) (*domain.ExposureRecord, error)
}
