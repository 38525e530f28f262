package generation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
)

// BulkItem is one document of a bulk upsert.
type BulkItem struct {
	ID  string
	Doc any
}

// EncodeBulk renders items as newline-delimited action/document pairs addressed to
// the full index name of o.
func EncodeBulk(o endpoint.Options, items []BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, it := range items {
		action := map[string]map[string]string{
			"index": {"_index": o.FullIndexName(), "_type": o.Type, "_id": it.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action %s: %w", it.ID, err)
		}
		if err := enc.Encode(it.Doc); err != nil {
			return nil, fmt.Errorf("encode bulk document %s: %w", it.ID, err)
		}
	}
	return buf.Bytes(), nil
}
