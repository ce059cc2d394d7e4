package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fusedRequest() SearchRequest {
	return SearchRequest{
		Limit: 10,
		MatchExprs: []MatchExpr{
			MatchTextExpr{
				Fields: []string{"title_tks"},
				Text:   "alpha",
				TopN:   10,
				Extra:  map[string]string{"minimum_should_match": "30%"},
			},
			MatchDenseExpr{Column: "embedding", Vector: []float32{1, 0}, TopN: 10},
			FusionExpr{Method: "weighted_sum", TopN: 10, Params: map[string]string{"weights": "0.3,0.7"}},
		},
	}
}

func TestBuildESBodyWeightedFusion(t *testing.T) {
	body, err := BuildESBody(fusedRequest())
	require.NoError(t, err)

	// The text clause's boost is 1 - dense weight.
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	must := boolQuery["must"].([]interface{})
	require.Len(t, must, 1)
	match := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.InDelta(t, 0.3, match["boost"], 1e-9)
	assert.Equal(t, "30%", match["minimum_should_match"])

	knn := body["knn"].(map[string]interface{})
	assert.Equal(t, "embedding", knn["field"])
	assert.Equal(t, 10, knn["k"])
	assert.InDelta(t, 0.7, knn["boost"], 1e-9)
	assert.Equal(t, 10, body["size"])
}

func TestBuildESBodyTextOnlyHasNoBoost(t *testing.T) {
	body, err := BuildESBody(SearchRequest{
		MatchExprs: []MatchExpr{
			MatchTextExpr{Fields: []string{"content"}, Text: "alpha"},
		},
	})
	require.NoError(t, err)
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	match := boolQuery["must"].([]interface{})[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	_, hasBoost := match["boost"]
	assert.False(t, hasBoost)
	_, hasKNN := body["knn"]
	assert.False(t, hasKNN)
}

func TestBuildOSBodyReplacesQueryWithKNN(t *testing.T) {
	body, err := BuildOSBody(fusedRequest())
	require.NoError(t, err)

	query := body["query"].(map[string]interface{})
	knnWrap, ok := query["knn"].(map[string]interface{})
	require.True(t, ok, "query must be replaced with a knn object")
	knn := knnWrap["embedding"].(map[string]interface{})
	assert.Equal(t, 10, knn["k"])
	assert.InDelta(t, 0.7, knn["boost"], 1e-9)
	// The original text query becomes the knn filter.
	filter := knn["filter"].(map[string]interface{})
	assert.Contains(t, filter, "bool")
	_, hasTopLevelKNN := body["knn"]
	assert.False(t, hasTopLevelKNN)
}

func TestBuildBodyConditionFilters(t *testing.T) {
	body, _, _, err := buildBody(SearchRequest{
		Condition: &Condition{
			Terms:         map[string]interface{}{"kind": "content", "tags": []string{"a", "b"}},
			Exists:        []string{"embedding"},
			MustNotExists: []string{"deleted_at"},
		},
	})
	require.NoError(t, err)
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]interface{})
	assert.Len(t, filters, 4)
}

func TestFusionWeightsDefaults(t *testing.T) {
	text, dense := (FusionExpr{}).Weights()
	assert.Equal(t, 0.5, text)
	assert.Equal(t, 0.5, dense)

	text, dense = (FusionExpr{Params: map[string]string{"weights": "0.2,0.8"}}).Weights()
	assert.Equal(t, 0.2, text)
	assert.Equal(t, 0.8, dense)

	text, dense = (FusionExpr{Params: map[string]string{"weights": "garbage"}}).Weights()
	assert.Equal(t, 0.5, text)
	assert.Equal(t, 0.5, dense)
}

func TestBuildBodySortAndAggs(t *testing.T) {
	body, _, _, err := buildBody(SearchRequest{
		OrderBy:   []SortField{{Field: "created_at", Order: "desc", Mode: "max", UnmappedType: "date"}},
		AggFields: []string{"kind"},
		Offset:    5,
		Limit:     20,
	})
	require.NoError(t, err)

	sorts := body["sort"].([]interface{})
	spec := sorts[0].(map[string]interface{})["created_at"].(map[string]interface{})
	assert.Equal(t, "desc", spec["order"])
	assert.Equal(t, "max", spec["mode"])
	assert.Equal(t, "date", spec["unmapped_type"])

	aggs := body["aggs"].(map[string]interface{})
	assert.Contains(t, aggs, "agg_kind")
	assert.Equal(t, 5, body["from"])
	assert.Equal(t, 20, body["size"])
}
