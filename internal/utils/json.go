package utils

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalLenient decodes JSON into v, giving malformed input one repair
// attempt before failing. Stream adapters use this on wire frames: a frame
// that cannot be decoded even after repair is skipped, never raised.
func UnmarshalLenient(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}
