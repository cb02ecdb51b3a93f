package serializers

import "strings"

// DefaultEZProxyURL wraps a resource URL in the CERN EZProxy login.
const DefaultEZProxyURL = "https://ezproxy.cern.ch/login?url={url}"

// FormatLoginRequiredURLs rewrites, in place, the value of every url of eitem
// flagged login_required so it goes through proxyURL. The {url} placeholder
// receives the original value unescaped. Missing or malformed fields are left alone.
func FormatLoginRequiredURLs(eitem map[string]interface{}, proxyURL string) {
	urls, ok := eitem["urls"].([]interface{})
	if !ok {
		return
	}
	for _, raw := range urls {
		url, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if required, _ := url["login_required"].(bool); !required {
			continue
		}
		value, ok := url["value"].(string)
		if !ok {
			continue
		}
		url["value"] = strings.ReplaceAll(proxyURL, "{url}", value)
	}
}

// eitemHits returns metadata.eitems.hits, or nil when any level is missing.
func eitemHits(metadata map[string]interface{}) []interface{} {
	eitems, ok := metadata["eitems"].(map[string]interface{})
	if !ok {
		return nil
	}
	hits, _ := eitems["hits"].([]interface{})
	return hits
}
