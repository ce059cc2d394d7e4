package vector

import (
	"codewiki/internal/wikierr"
)

// buildFilter translates a Condition into ES-style bool filter clauses.
func buildFilter(cond *Condition) []interface{} {
	if cond == nil {
		return nil
	}
	var filters []interface{}
	if cond.ID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"id": cond.ID},
		})
	}
	for field, value := range cond.Terms {
		if vs, ok := value.([]interface{}); ok {
			filters = append(filters, map[string]interface{}{
				"terms": map[string]interface{}{field: vs},
			})
			continue
		}
		if vs, ok := value.([]string); ok {
			filters = append(filters, map[string]interface{}{
				"terms": map[string]interface{}{field: vs},
			})
			continue
		}
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{field: value},
		})
	}
	for _, field := range cond.Exists {
		filters = append(filters, map[string]interface{}{
			"exists": map[string]interface{}{"field": field},
		})
	}
	for _, field := range cond.MustNotExists {
		filters = append(filters, map[string]interface{}{
			"bool": map[string]interface{}{
				"must_not": map[string]interface{}{
					"exists": map[string]interface{}{"field": field},
				},
			},
		})
	}
	return filters
}

// splitExprs separates a request's match expressions by kind.
func splitExprs(exprs []MatchExpr) (text *MatchTextExpr, dense *MatchDenseExpr, fusion *FusionExpr, raw []map[string]interface{}, err error) {
	for _, e := range exprs {
		switch v := e.(type) {
		case MatchTextExpr:
			text = &v
		case MatchDenseExpr:
			dense = &v
		case FusionExpr:
			fusion = &v
		case MatchSparseExpr:
			raw = append(raw, v.Raw)
		case MatchTensorExpr:
			raw = append(raw, v.Raw)
		default:
			return nil, nil, nil, nil, wikierr.New(wikierr.KindValidation, "unsupported match expression %T", e)
		}
	}
	return text, dense, fusion, raw, nil
}

// textQuery builds the multi-field boolean clause for a text match. boost
// of 0 omits the boost key.
func textQuery(t *MatchTextExpr, boost float64) map[string]interface{} {
	match := map[string]interface{}{
		"query":  t.Text,
		"fields": t.Fields,
		"type":   "best_fields",
	}
	if msm, ok := t.Extra["minimum_should_match"]; ok {
		match["minimum_should_match"] = msm
	}
	if boost > 0 {
		match["boost"] = boost
	}
	return map[string]interface{}{"multi_match": match}
}

// buildBody assembles the parts of a search body shared by ES and OS:
// query (without KNN), highlight, sort, paging, and aggregations. KNN
// attachment differs per backend and is handled by the caller.
func buildBody(req SearchRequest) (body map[string]interface{}, dense *MatchDenseExpr, denseBoost float64, err error) {
	text, dense, fusion, rawClauses, err := splitExprs(req.MatchExprs)
	if err != nil {
		return nil, nil, 0, err
	}

	textBoost := 0.0
	denseBoost = 0.0
	if fusion != nil && fusion.Method == "weighted_sum" && text != nil && dense != nil {
		_, denseWeight := fusion.Weights()
		denseBoost = denseWeight
		textBoost = 1 - denseWeight
	}

	boolQuery := map[string]interface{}{}
	var must []interface{}
	if text != nil {
		must = append(must, textQuery(text, textBoost))
	}
	for _, clause := range rawClauses {
		must = append(must, clause)
	}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if filters := buildFilter(req.Condition); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body = map[string]interface{}{}
	if len(boolQuery) > 0 {
		body["query"] = map[string]interface{}{"bool": boolQuery}
	} else {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	if len(req.SelectFields) > 0 {
		body["_source"] = req.SelectFields
	}
	if len(req.HighlightFields) > 0 {
		fields := map[string]interface{}{}
		for _, f := range req.HighlightFields {
			fields[f] = map[string]interface{}{}
		}
		body["highlight"] = map[string]interface{}{"fields": fields}
	}
	if len(req.OrderBy) > 0 {
		var sorts []interface{}
		for _, s := range req.OrderBy {
			spec := map[string]interface{}{"order": s.Order}
			if s.Mode != "" {
				spec["mode"] = s.Mode
			}
			if s.UnmappedType != "" {
				spec["unmapped_type"] = s.UnmappedType
			}
			if s.NumericType != "" {
				spec["numeric_type"] = s.NumericType
			}
			sorts = append(sorts, map[string]interface{}{s.Field: spec})
		}
		body["sort"] = sorts
	}
	if req.Offset > 0 {
		body["from"] = req.Offset
	}
	if req.Limit > 0 {
		body["size"] = req.Limit
	}
	if len(req.AggFields) > 0 {
		aggs := map[string]interface{}{}
		for _, f := range req.AggFields {
			aggs["agg_"+f] = map[string]interface{}{
				"terms": map[string]interface{}{"field": f, "size": 1000},
			}
		}
		body["aggs"] = aggs
	}
	if len(req.RankFeature) > 0 {
		body["rank_feature"] = req.RankFeature
	}
	return body, dense, denseBoost, nil
}
