package serializers

import "cds-ils/internal/entities"

// LiteratureJSONSerializer is the parent serializer plus EZProxy rewriting of
// the electronic items that require a CERN login.
type LiteratureJSONSerializer struct {
	parent   RecordSerializer
	proxyURL string
}

func NewLiteratureJSONSerializer(parent RecordSerializer, proxyURL string) *LiteratureJSONSerializer {
	if proxyURL == "" {
		proxyURL = DefaultEZProxyURL
	}
	return &LiteratureJSONSerializer{parent: parent, proxyURL: proxyURL}
}

func (s *LiteratureJSONSerializer) TransformRecord(rec *entities.LiteratureRecord) map[string]interface{} {
	return s.formatEItems(s.parent.TransformRecord(rec))
}

func (s *LiteratureJSONSerializer) TransformSearchHit(rec *entities.LiteratureRecord) map[string]interface{} {
	return s.formatEItems(s.parent.TransformSearchHit(rec))
}

func (s *LiteratureJSONSerializer) formatEItems(out map[string]interface{}) map[string]interface{} {
	metadata, ok := out["metadata"].(map[string]interface{})
	if !ok {
		return out
	}
	for _, hit := range eitemHits(metadata) {
		if eitem, ok := hit.(map[string]interface{}); ok {
			FormatLoginRequiredURLs(eitem, s.proxyURL)
		}
	}
	return out
}
