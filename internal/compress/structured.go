package compress

import (
	"encoding/json"
	"encoding/xml"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlCompressor parses the document and re-emits the skeleton: scalar
// values become null, sequences keep only their first element as an
// exemplar. Parse failures fall back to non-empty lines.
type yamlCompressor struct{}

func (yamlCompressor) Compress(text string) string {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nonEmptyLines(text)
	}
	stripYAMLValues(&doc)
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nonEmptyLines(text)
	}
	return strings.TrimRight(string(out), "\n")
}

func stripYAMLValues(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			stripYAMLValues(c)
		}
	case yaml.MappingNode:
		// Content alternates key, value; keys survive untouched.
		for i := 1; i < len(n.Content); i += 2 {
			stripYAMLValues(n.Content[i])
		}
	case yaml.SequenceNode:
		if len(n.Content) > 1 {
			n.Content = n.Content[:1]
		}
		for _, c := range n.Content {
			stripYAMLValues(c)
		}
	case yaml.ScalarNode:
		n.Tag = "!!null"
		n.Value = "null"
		n.Style = 0
	}
}

// jsonCompressor parses the document and strips leaf values, keeping the
// key skeleton. Parse failures fall back to non-empty lines.
type jsonCompressor struct{}

func (jsonCompressor) Compress(text string) string {
	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nonEmptyLines(text)
	}
	stripped := stripJSONValues(doc)
	out, err := json.MarshalIndent(stripped, "", "  ")
	if err != nil {
		return nonEmptyLines(text)
	}
	return string(out)
}

func stripJSONValues(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = stripJSONValues(item)
		}
		return out
	case []interface{}:
		if len(val) == 0 {
			return val
		}
		return []interface{}{stripJSONValues(val[0])}
	default:
		return nil
	}
}

// markupCompressor covers HTML and XML: the element skeleton survives, text
// and tail content is removed. Parse failures fall back to non-empty lines.
type markupCompressor struct{}

func (markupCompressor) Compress(text string) string {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var sb strings.Builder
	depth := 0
	parsedAny := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			if !parsedAny {
				return nonEmptyLines(text)
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			parsedAny = true
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("<" + t.Name.Local)
			for _, attr := range t.Attr {
				sb.WriteString(" " + attr.Name.Local + `=""`)
			}
			sb.WriteString(">\n")
			depth++
		case xml.EndElement:
			if depth > 0 {
				depth--
			}
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("</" + t.Name.Local + ">\n")
		case xml.Comment:
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("<!--" + string(t) + "-->\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
