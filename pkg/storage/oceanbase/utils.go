package oceanbase

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// buildWhereClause builds the search WHERE clause.
//
// Filter keys are passed as JSON path arguments, never spliced into SQL.
func buildWhereClause(opts *storage.SearchOptions) (string, []interface{}) {
	conditions := []string{"searchable = 1"}
	args := []interface{}{}

	keys := make([]string, 0, len(opts.Filters))
	for k := range opts.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conditions = append(conditions, "JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?")
		args = append(args, jsonPath(k), fmt.Sprint(opts.Filters[k]))
	}

	if len(opts.IDs) > 0 {
		in, idArgs := inClause(opts.IDs)
		conditions = append(conditions, "id IN "+in)
		args = append(args, idArgs...)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// jsonPath quotes a metadata key as a JSON path member.
func jsonPath(key string) string {
	quoted, _ := json.Marshal(key)
	return "$." + string(quoted)
}

func inClause(ids []string) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(marks, ", ") + ")", args
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
	llmKeys := record.ExcludedLLMKeys
	if llmKeys == nil {
		llmKeys = []string{}
	}
	embedKeys := record.ExcludedEmbedKeys
	if embedKeys == nil {
		embedKeys = []string{}
	}

	var cols encodedColumns
	for dst, src := range map[*string]interface{}{
		&cols.metadata:  metadata,
		&cols.llmKeys:   llmKeys,
		&cols.embedKeys: embedKeys,
	} {
		b, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		*dst = string(b)
	}
	return &cols, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a record; with hasScore a trailing similarity column is read.
func scanRecord(scanner rowScanner, hasScore bool) (*storage.Record, error) {
	var record storage.Record
	var metadataStr, llmKeysStr, embedKeysStr, embeddingStr sql.NullString

	dest := []interface{}{
		&record.ID,
		&record.Text,
		&metadataStr,
		&llmKeysStr,
		&embedKeysStr,
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

	if embeddingStr.Valid {
		embedding, err := storage.ParseVector(embeddingStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		record.Embedding = embedding
	}

	for _, f := range []struct {
		name string
		src  sql.NullString
		dst  interface{}
	}{
		{"metadata", metadataStr, &record.Metadata},
		{"excluded_llm_keys", llmKeysStr, &record.ExcludedLLMKeys},
		{"excluded_embed_keys", embedKeysStr, &record.ExcludedEmbedKeys},
	} {
		if !f.src.Valid || f.src.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.src.String), f.dst); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	if record.Metadata == nil {
		record.Metadata = map[string]interface{}{}
	}

	return &record, nil
}
