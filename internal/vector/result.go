package vector

import (
	"encoding/json"
	"regexp"
	"strings"

	"codewiki/internal/wikierr"
)

// Result wraps a backend search response and offers the extraction
// helpers the callers need.
type Result struct {
	Raw  map[string]interface{}
	hits []map[string]interface{}
}

// ParseResult decodes a raw ES/OS search response.
func ParseResult(data []byte) (*Result, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wikierr.Wrap(wikierr.KindTransient, err, "decode search response")
	}
	return NewResult(raw), nil
}

// NewResult wraps an already-decoded response body.
func NewResult(raw map[string]interface{}) *Result {
	r := &Result{Raw: raw}
	if outer, ok := raw["hits"].(map[string]interface{}); ok {
		if inner, ok := outer["hits"].([]interface{}); ok {
			for _, h := range inner {
				if hit, ok := h.(map[string]interface{}); ok {
					r.hits = append(r.hits, hit)
				}
			}
		}
	}
	return r
}

// Total returns the hit count.
func (r *Result) Total() int {
	outer, ok := r.Raw["hits"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch t := outer["total"].(type) {
	case map[string]interface{}:
		if v, ok := t["value"].(float64); ok {
			return int(v)
		}
	case float64:
		return int(t)
	}
	return 0
}

// ChunkIDs returns the ids of all hits in rank order.
func (r *Result) ChunkIDs() []string {
	var ids []string
	for _, hit := range r.hits {
		if id, ok := hit["_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Source returns the stored document of the hit with the given id.
func (r *Result) Source(id string) map[string]interface{} {
	for _, hit := range r.hits {
		if hit["_id"] == id {
			if src, ok := hit["_source"].(map[string]interface{}); ok {
				return src
			}
		}
	}
	return nil
}

// Fields returns the requested fields of every hit, keyed by id.
func (r *Result) Fields(names []string) map[string]map[string]interface{} {
	out := map[string]map[string]interface{}{}
	for _, hit := range r.hits {
		id, _ := hit["_id"].(string)
		if id == "" {
			continue
		}
		src, _ := hit["_source"].(map[string]interface{})
		row := map[string]interface{}{}
		for _, name := range names {
			if src != nil {
				if v, ok := src[name]; ok {
					row[name] = v
				}
			}
		}
		out[id] = row
	}
	return out
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)

// Highlight returns highlight snippets per hit id. When the backend
// produced none, English content is sentence-split and each keyword is
// wrapped in <em> tags.
func (r *Result) Highlight(field string, keywords []string) map[string]string {
	out := map[string]string{}
	for _, hit := range r.hits {
		id, _ := hit["_id"].(string)
		if id == "" {
			continue
		}
		if hl, ok := hit["highlight"].(map[string]interface{}); ok {
			if frags, ok := hl[field].([]interface{}); ok && len(frags) > 0 {
				var parts []string
				for _, f := range frags {
					if s, ok := f.(string); ok {
						parts = append(parts, s)
					}
				}
				out[id] = strings.Join(parts, "...")
				continue
			}
		}
		src, _ := hit["_source"].(map[string]interface{})
		content, _ := src[field].(string)
		if content == "" {
			continue
		}
		if snippet := synthesizeHighlight(content, keywords); snippet != "" {
			out[id] = snippet
		}
	}
	return out
}

// synthesizeHighlight keeps the sentences containing any keyword and wraps
// the keywords in <em> tags.
func synthesizeHighlight(content string, keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	sentences := sentenceSplitRe.Split(content, -1)
	var kept []string
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		matched := false
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		marked := sentence
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(kw))
			if err != nil {
				continue
			}
			marked = re.ReplaceAllStringFunc(marked, func(m string) string {
				return "<em>" + m + "</em>"
			})
		}
		kept = append(kept, strings.TrimSpace(marked))
	}
	return strings.Join(kept, "...")
}

// Aggregation returns bucket keys and counts for one aggregated field.
func (r *Result) Aggregation(field string) map[string]int {
	aggs, ok := r.Raw["aggregations"].(map[string]interface{})
	if !ok {
		return nil
	}
	agg, ok := aggs["agg_"+field].(map[string]interface{})
	if !ok {
		return nil
	}
	buckets, ok := agg["buckets"].([]interface{})
	if !ok {
		return nil
	}
	out := map[string]int{}
	for _, b := range buckets {
		bucket, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := bucket["key"].(string)
		count, _ := bucket["doc_count"].(float64)
		if key != "" {
			out[key] = int(count)
		}
	}
	return out
}
