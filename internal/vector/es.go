package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"codewiki/internal/wikierr"
)

// ESStore talks to an Elasticsearch 8.x cluster over its REST API. KNN is
// attached as the top-level knn section of the search body.
type ESStore struct {
	client     *restClient
	mappingDir string
	mapping    string
	vectorSize int
}

// NewESStore builds the Elasticsearch backend.
func NewESStore(hosts []string, username, password, mappingDir, mapping string, vectorSize int) *ESStore {
	return &ESStore{
		client:     newRESTClient("elasticsearch", hosts, username, password),
		mappingDir: mappingDir,
		mapping:    mapping,
		vectorSize: vectorSize,
	}
}

func (s *ESStore) CreateSpace(ctx context.Context, name string, vectorSize int) error {
	if vectorSize <= 0 {
		vectorSize = s.vectorSize
	}
	body := LoadMapping(s.mappingDir, s.mapping, vectorSize)
	_, err := s.client.do(ctx, "create_space", http.MethodPut, "/"+url.PathEscape(name), body)
	return err
}

func (s *ESStore) DeleteSpace(ctx context.Context, name string) error {
	_, err := s.client.do(ctx, "delete_space", http.MethodDelete, "/"+url.PathEscape(name), nil)
	return err
}

func (s *ESStore) SpaceExists(ctx context.Context, name string) (bool, error) {
	if err := s.client.ensureConnected(ctx); err != nil {
		return false, err
	}
	_, err := s.client.doOnce(ctx, http.MethodHead, "/"+url.PathEscape(name), nil)
	if err != nil {
		if strings.Contains(err.Error(), "status 404") {
			return false, nil
		}
		return false, wikierr.Wrap(wikierr.KindTransient, err, "elasticsearch exists check")
	}
	return true, nil
}

func (s *ESStore) InsertRecords(ctx context.Context, space string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	payload, err := bulkPayload(space, records)
	if err != nil {
		return err
	}
	return s.client.doBulk(ctx, "insert", "/_bulk?refresh=true", payload)
}

func (s *ESStore) UpdateRecords(ctx context.Context, space string, cond Condition, spec UpdateSpec) (int, error) {
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

func (s *ESStore) DeleteRecords(ctx context.Context, space string, cond Condition) (int, error) {
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

func (s *ESStore) GetRecord(ctx context.Context, spaces []string, id string) (Record, error) {
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

func (s *ESStore) Search(ctx context.Context, spaces []string, req SearchRequest) (*Result, error) {
	body, err := BuildESBody(req)
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

func (s *ESStore) Close() error {
	s.client.close()
	return nil
}

// BuildESBody renders the full ES 8.x search body, with KNN as a sibling
// of query when a dense clause is present.
func BuildESBody(req SearchRequest) (map[string]interface{}, error) {
	body, dense, denseBoost, err := buildBody(req)
	if err != nil {
		return nil, err
	}
	if dense != nil {
		k := dense.TopN
		if k <= 0 {
			k = 10
		}
		knn := map[string]interface{}{
			"field":          dense.Column,
			"query_vector":   dense.Vector,
			"k":              k,
			"num_candidates": k * 10,
		}
		if denseBoost > 0 {
			knn["boost"] = denseBoost
		}
		if sim, ok := dense.Extra["similarity"]; ok {
			knn["similarity"] = sim
		}
		body["knn"] = knn
	}
	return body, nil
}

// conditionQuery renders a Condition as a standalone bool query.
func conditionQuery(cond *Condition) map[string]interface{} {
	filters := buildFilter(cond)
	if len(filters) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"filter": filters},
	}
}

// updateScript renders an UpdateSpec as a painless script body.
func updateScript(spec UpdateSpec) map[string]interface{} {
	if spec.Script != "" {
		return map[string]interface{}{"source": spec.Script, "lang": "painless"}
	}
	var lines []string
	params := map[string]interface{}{}
	for field, value := range spec.Set {
		key := "set_" + field
		lines = append(lines, "ctx._source['"+field+"'] = params."+key+";")
		params[key] = value
	}
	for _, field := range spec.Remove {
		lines = append(lines, "ctx._source.remove('"+field+"');")
	}
	for field, value := range spec.ArrayAdd {
		key := "add_" + field
		lines = append(lines,
			"if (ctx._source['"+field+"'] == null) { ctx._source['"+field+"'] = []; } "+
				"if (!ctx._source['"+field+"'].contains(params."+key+")) { ctx._source['"+field+"'].add(params."+key+"); }")
		params[key] = value
	}
	for field, value := range spec.ArrayRemove {
		key := "rm_" + field
		lines = append(lines,
			"if (ctx._source['"+field+"'] != null) { ctx._source['"+field+"'].removeIf(v -> v == params."+key+"); }")
		params[key] = value
	}
	return map[string]interface{}{
		"source": strings.Join(lines, " "),
		"lang":   "painless",
		"params": params,
	}
}
