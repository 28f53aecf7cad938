package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// buildWhereClause builds the search WHERE clause with placeholders starting
// at startIndex.
func buildWhereClause(opts *storage.SearchOptions, startIndex int) (string, []interface{}, error) {
	conditions := []string{"searchable"}
	args := []interface{}{}
	argIndex := startIndex

	if len(opts.Filters) > 0 {
		filterJSON, err := json.Marshal(opts.Filters)
		if err != nil {
			return "", nil, fmt.Errorf("encode filters: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("metadata @> $%d::jsonb", argIndex))
		args = append(args, string(filterJSON))
		argIndex++
	}

	if len(opts.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", argIndex))
		args = append(args, pq.Array(opts.IDs))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

type encodedColumns struct {
	metadata  string
	llmKeys   string
	embedKeys string
}

func encodeColumns(record *storage.Record) (*encodedColumns, error) {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	m, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	l, err := json.Marshal(orEmpty(record.ExcludedLLMKeys))
	if err != nil {
		return nil, err
	}
	e, err := json.Marshal(orEmpty(record.ExcludedEmbedKeys))
	if err != nil {
		return nil, err
	}
	return &encodedColumns{metadata: string(m), llmKeys: string(l), embedKeys: string(e)}, nil
}

func orEmpty(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a record; with hasScore a trailing similarity column is read.
func scanRecord(scanner rowScanner, hasScore bool) (*storage.Record, error) {
	var record storage.Record
	var metadataJSON, llmKeysJSON, embedKeysJSON []byte
	var embeddingStr string

	dest := []interface{}{
		&record.ID,
		&record.Text,
		&metadataJSON,
		&llmKeysJSON,
		&embedKeysJSON,
		&embeddingStr,
		&record.Searchable,
		&record.CreatedAt,
	}
	if hasScore {
		dest = append(dest, &record.Score)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	embedding, err := storage.ParseVector(embeddingStr)
	if err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	record.Embedding = embedding

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if record.Metadata == nil {
		record.Metadata = map[string]interface{}{}
	}
	if len(llmKeysJSON) > 0 {
		if err := json.Unmarshal(llmKeysJSON, &record.ExcludedLLMKeys); err != nil {
			return nil, fmt.Errorf("parse excluded_llm_keys: %w", err)
		}
	}
	if len(embedKeysJSON) > 0 {
		if err := json.Unmarshal(embedKeysJSON, &record.ExcludedEmbedKeys); err != nil {
			return nil, fmt.Errorf("parse excluded_embed_keys: %w", err)
		}
	}

	return &record, nil
}
