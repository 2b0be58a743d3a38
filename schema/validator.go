package postschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/KurimiTokisakiQAQ/kd/internal/source"
)

//go:embed source_post.schema.json
var sourcePostSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateSourcePostPayload checks a hand-submitted post against the source
// row schema and converts it to a Post. Counter fields may arrive as strings
// or integers; they are kept as raw strings the way polled rows are.
func ValidateSourcePostPayload(payload json.RawMessage) (*source.Post, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload is not a JSON object")
	}

	id, err := fieldInt64(fields, "id")
	if err != nil {
		return nil, err
	}

	post := &source.Post{
		ID:           id,
		WorkID:       fieldString(fields, "work_id"),
		WorkURL:      fieldString(fields, "work_url"),
		WorkTitle:    fieldString(fields, "work_title"),
		WorkContent:  fieldString(fields, "work_content"),
		PublishTime:  fieldString(fields, "publish_time"),
		CrawledTime:  fieldString(fields, "crawled_time"),
		AccountName:  fieldString(fields, "account_name"),
		Source:       fieldString(fields, "source"),
		LikeCnt:      fieldString(fields, "like_cnt"),
		ReplyCnt:     fieldString(fields, "reply_cnt"),
		ForwardCnt:   fieldString(fields, "forward_cnt"),
		ContentSenti: fieldString(fields, "content_senti"),
		OCRContent:   fieldString(fields, "ocr_content"),
	}

	if strings.TrimSpace(post.Source) == "" {
		return nil, fmt.Errorf("source must not be empty")
	}
	return post, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("source_post.schema.json", strings.NewReader(sourcePostSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("source_post.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func fieldString(fields map[string]any, key string) string {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fieldInt64(fields map[string]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	number, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	value, err := number.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}
