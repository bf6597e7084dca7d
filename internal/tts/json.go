package tts

import (
	"encoding/json"
	"fmt"
	"io"
)

// decodeJSON decodes a JSON stream into the target.
func decodeJSON(r io.Reader, target any) error {
	err := json.NewDecoder(r).Decode(target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
