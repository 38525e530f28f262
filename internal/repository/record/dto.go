package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	domrec "github.com/kailas-cloud/docsync/internal/domain/record"
)

// storedRecord is the JSON layout of a record under its key. Fields use extended JSON
// so ids, times and references keep their types across the round trip.
type storedRecord struct {
	ID     string         `json:"_id"`
	Fields map[string]any `json:"fields"`
}

func encodeRecord(rec *domrec.Record) ([]byte, error) {
	fields, _ := domrec.ToExtended(rec.Fields).(map[string]any)
	data, err := json.Marshal(storedRecord{ID: rec.ID.Hex(), Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	return data, nil
}

func decodeRecord(collection string, data []byte) (*domrec.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var sr storedRecord
	if err := dec.Decode(&sr); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	id, err := domrec.ParseObjectID(sr.ID)
	if err != nil {
		return nil, fmt.Errorf("stored record id: %w", err)
	}
	fields, _ := domrec.FromExtended(sr.Fields).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return &domrec.Record{ID: id, Collection: collection, Fields: fields}, nil
}
