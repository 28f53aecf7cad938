package sqlite

import (
	"encoding/json"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// encodedColumns holds the JSON text columns of a record.
type encodedColumns struct {
	metadata  string
	llmKeys   string
	embedKeys string
	embedding string
}

// encodeColumns marshals the structured fields of a record to JSON strings.
func encodeColumns(record *storage.Record) (*encodedColumns, error) {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	var cols encodedColumns
	for _, f := range []struct {
		dst *string
		src interface{}
	}{
		{&cols.metadata, metadata},
		{&cols.llmKeys, nonNil(record.ExcludedLLMKeys)},
		{&cols.embedKeys, nonNil(record.ExcludedEmbedKeys)},
		{&cols.embedding, record.Embedding},
	} {
		b, err := json.Marshal(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = string(b)
	}

	return &cols, nil
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
