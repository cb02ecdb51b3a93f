// Package serializers renders stored records as the JSON the catalogue UI consumes.
package serializers

import (
	"time"

	json "github.com/goccy/go-json"

	"cds-ils/internal/entities"
)

// Links builds the links block of a record.
type Links func(pid string) map[string]string

// LiteratureLinks points at the literature API.
func LiteratureLinks(pid string) map[string]string {
	return map[string]string{"self": "/api/literature/" + pid}
}

// RecordSerializer turns records into their intermediate JSON form.
type RecordSerializer interface {
	TransformRecord(rec *entities.LiteratureRecord) map[string]interface{}
	TransformSearchHit(rec *entities.LiteratureRecord) map[string]interface{}
}

// ILSJSONSerializer is the plain record shape: id, timestamps, links and a
// copy of the metadata, so callers may modify the output freely.
type ILSJSONSerializer struct {
	links Links
}

func NewILSJSONSerializer(links Links) *ILSJSONSerializer {
	if links == nil {
		links = LiteratureLinks
	}
	return &ILSJSONSerializer{links: links}
}

func (s *ILSJSONSerializer) TransformRecord(rec *entities.LiteratureRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":       rec.PID,
		"created":  rec.Created.UTC().Format(time.RFC3339),
		"updated":  rec.Updated.UTC().Format(time.RFC3339),
		"links":    s.links(rec.PID),
		"metadata": copyMap(rec.Metadata),
	}
}

func (s *ILSJSONSerializer) TransformSearchHit(rec *entities.LiteratureRecord) map[string]interface{} {
	return s.TransformRecord(rec)
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// JSONSerializer encodes what a RecordSerializer produces.
type JSONSerializer struct {
	serializer RecordSerializer
}

func NewJSONSerializer(serializer RecordSerializer) *JSONSerializer {
	return &JSONSerializer{serializer: serializer}
}

func (s *JSONSerializer) SerializeRecord(rec *entities.LiteratureRecord) ([]byte, error) {
	return json.Marshal(s.serializer.TransformRecord(rec))
}

type searchHits struct {
	Hits  []map[string]interface{} `json:"hits"`
	Total uint64                   `json:"total"`
}

type searchResult struct {
	Hits  searchHits        `json:"hits"`
	Links map[string]string `json:"links"`
}

// SerializeSearch renders one page of hits with the total count of matches.
func (s *JSONSerializer) SerializeSearch(records []entities.LiteratureRecord, total uint64, self string) ([]byte, error) {
	hits := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		hits = append(hits, s.serializer.TransformSearchHit(&records[i]))
	}
	return json.Marshal(searchResult{
		Hits:  searchHits{Hits: hits, Total: total},
		Links: map[string]string{"self": self},
	})
}
