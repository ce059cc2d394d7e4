package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"codewiki/internal/wikierr"
)

// OSStore talks to an OpenSearch 2.x cluster. OpenSearch has no top-level
// knn section: when a dense clause is present the body's query is replaced
// with a knn query object carrying the original query as its filter.
type OSStore struct {
	client     *restClient
	mappingDir string
	mapping    string
	vectorSize int
}

// NewOSStore builds the OpenSearch backend.
func NewOSStore(hosts []string, username, password, mappingDir, mapping string, vectorSize int) *OSStore {
	return &OSStore{
		client:     newRESTClient("opensearch", hosts, username, password),
		mappingDir: mappingDir,
		mapping:    mapping,
		vectorSize: vectorSize,
	}
}

func (s *OSStore) CreateSpace(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		vectorSize = s.vectorSize
	}
	body := LoadMapping(s.mappingDir, s.mapping, vectorSize)
	adaptMappingForOpenSearch(body, vectorSize)
	_, err := s.client.do(ctx, "create_space", http.MethodPut, "/"+url.PathEscape(name), body)
	return err
}

// adaptMappingForOpenSearch rewrites ES dense_vector properties to the
// OpenSearch knn_vector type and enables the index knn setting.
func adaptMappingForOpenSearch(body map[string]interface{}, vectorSize int) {
	settings, _ := body["settings"].(map[string]interface{})
	if settings == nil {
		settings = map[string]interface{}{}
		body["settings"] = settings
	}
	settings["index.knn"] = true

	mappings, _ := body["mappings"].(map[string]interface{})
	if mappings == nil {
		return
	}
	props, _ := mappings["properties"].(map[string]interface{})
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok || prop["type"] != "dense_vector" {
			continue
		}
		dims := vectorSize
		if d, ok := prop["dims"].(float64); ok {
			dims = int(d)
		}
		props[name] = map[string]interface{}{
			"type":      "knn_vector",
			"dimension": dims,
		}
	}
}

func (s *OSStore) DeleteSpace(ctx context.Context, name string) error {
	_, err := s.client.do(ctx, "delete_space", http.MethodDelete, "/"+url.PathEscape(name), nil)
	return err
}

func (s *OSStore) SpaceExists(ctx context.Context, name string) (bool, error) {
	if err := s.client.ensureConnected(ctx); err != nil {
		return false, err
	}
	_, err := s.client.doOnce(ctx, http.MethodHead, "/"+url.PathEscape(name), nil)
	if err != nil {
		if strings.Contains(err.Error(), "status 404") {
			return false, nil
		}
		return false, wikierr.Wrap(wikierr.KindTransient, err, "opensearch exists check")
	}
	return true, nil
}

func (s *OSStore) InsertRecords(ctx context.Context, space string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	payload, err := bulkPayload(space, records)
	if err != nil {
		return err
	}
	return s.client.doBulk(ctx, "insert", "/_bulk?refresh=true", payload)
}

func (s *OSStore) UpdateRecords(ctx context.Context, space string, cond Condition, spec UpdateSpec) (int, error) {
	body := map[string]interface{}{
		"query":  conditionQuery(&cond),
		"script": updateScript(spec),
	}
	data, err := s.client.do(ctx, "update", http.MethodPost,
		"/"+url.PathEscape(space)+"/_update_by_query?refresh=true", body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Updated int `json:"updated"`
	}
	json.Unmarshal(data, &resp)
	return resp.Updated, nil
}

func (s *OSStore) DeleteRecords(ctx context.Context, space string, cond Condition) (int, error) {
	body := map[string]interface{}{"query": conditionQuery(&cond)}
	data, err := s.client.do(ctx, "delete", http.MethodPost,
		"/"+url.PathEscape(space)+"/_delete_by_query?refresh=true", body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	json.Unmarshal(data, &resp)
	return resp.Deleted, nil
}

func (s *OSStore) GetRecord(ctx context.Context, spaces []string, id string) (Record, error) {
	for _, space := range spaces {
		data, err := s.client.do(ctx, "get", http.MethodGet,
			"/"+url.PathEscape(space)+"/_doc/"+url.PathEscape(id), nil)
		if err != nil {
			if strings.Contains(err.Error(), "status 404") {
				continue
			}
			return nil, err
		}
		var resp struct {
			Found  bool   `json:"found"`
			Source Record `json:"_source"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, wikierr.Wrap(wikierr.KindTransient, err, "decode get response")
		}
		if resp.Found {
			if resp.Source == nil {
				resp.Source = Record{}
			}
			resp.Source["id"] = id
			return resp.Source, nil
		}
	}
	return nil, nil
}

func (s *OSStore) Search(ctx context.Context, spaces []string, req SearchRequest) (*Result, error) {
	body, err := BuildOSBody(req)
	if err != nil {
		return nil, err
	}
	path := "/" + url.PathEscape(strings.Join(spaces, ",")) + "/_search"
	data, err := s.client.do(ctx, "search", http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return ParseResult(data)
}

func (s *OSStore) Close() error {
	s.client.close()
	return nil
}

// BuildOSBody renders the OpenSearch search body. A dense clause replaces
// the query with a knn object; the text/filter query moves into its
// filter slot.
func BuildOSBody(req SearchRequest) (map[string]interface{}, error) {
	body, dense, denseBoost, err := buildBody(req)
	if err != nil {
		return nil, err
	}
	if dense == nil {
		return body, nil
	}

	k := dense.TopN
	if k <= 0 {
		k = 10
	}
	knn := map[string]interface{}{
		"vector": dense.Vector,
		"k":      k,
	}
	if prev, ok := body["query"].(map[string]interface{}); ok {
		if _, isMatchAll := prev["match_all"]; !isMatchAll {
			knn["filter"] = prev
		}
	}
	if denseBoost > 0 {
		knn["boost"] = denseBoost
	}
	body["query"] = map[string]interface{}{
		"knn": map[string]interface{}{dense.Column: knn},
	}
	return body, nil
}
