package postgres

import (
	"encoding/json"

	"chat-stream-engine/internal/domain/model"
)

// encodeOptions renders the options column; nil options are stored as '{}'.
func encodeOptions(opts model.ChatOptions) ([]byte, error) {
	if opts == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(opts)
}
