package query_test

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/jonesrussell/esodm/query"
	"github.com/jonesrussell/esodm/schema"
)

func filterJSON(t *testing.T, c *query.Criteria) string {
	t.Helper()

	doc, err := query.NewCompiler().CompileFilter(c)
	if err != nil {
		t.Fatalf("CompileFilter() error = %v", err)
	}
	out, err := doc.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	return out
}

// --- Single criteria ---

func TestCompileQuery_Is(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("name").Is("flobb"))
	want := `{"query_string":{"query":"flobb","fields":["name^1.0"]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_IsWithBoost(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("name").Is("flobb").Boost(1.5))
	want := `{"query_string":{"query":"flobb","fields":["name^1.5"]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_Between(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("age").Between(18, 65))
	want := `{"range":{"age":{"from":18,"to":65,"include_lower":true,"include_upper":true}}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_Contains(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("title").Contains("search"))
	want := `{"match":{"title":{"query":"search"}}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_In(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("status").In("open", "pending"))
	want := `{"terms":{"status":["open","pending"]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_Exists(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("email").Exists())
	want := `{"exists":{"field":"email"}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

// --- Chains ---

func TestCompileQuery_AndChainUsesMust(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("a").Is("1").And("b").Is("2"))
	want := `{"bool":{"must":[` +
		`{"query_string":{"query":"1","fields":["a^1.0"]}},` +
		`{"query_string":{"query":"2","fields":["b^1.0"]}}]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_OrChainUsesShould(t *testing.T) {
	t.Helper()

	criteria := query.Where("birth-date").Between("09.11.1989", "09.11.1990").
		Or("birth-date").Is("28.12.2019")
	got := compileJSON(t, criteria)
	want := `{"bool":{"should":[` +
		`{"range":{"birth-date":{"from":"09.11.1989","to":"09.11.1990","include_lower":true,"include_upper":true}}},` +
		`{"query_string":{"query":"28.12.2019","fields":["birth-date^1.0"]}}]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileQuery_MixedConjunctionsFail(t *testing.T) {
	t.Helper()

	criteria := query.Where("a").Is("1").And("b").Is("2").Or("c").Is("3")
	_, err := query.NewCompiler().CompileQuery(criteria)
	if !errors.Is(err, query.ErrInvalidCriteria) {
		t.Errorf("CompileQuery() error = %v, want ErrInvalidCriteria", err)
	}
}

func TestCompileQuery_SubCriteriaAllowsMixedShape(t *testing.T) {
	t.Helper()

	criteria := query.Where("a").Is("1").
		AndSub(query.Where("b").Is("2").Or("c").Is("3"))
	got := compileJSON(t, criteria)
	want := `{"bool":{"must":[` +
		`{"query_string":{"query":"1","fields":["a^1.0"]}},` +
		`{"bool":{"should":[` +
		`{"query_string":{"query":"2","fields":["b^1.0"]}},` +
		`{"query_string":{"query":"3","fields":["c^1.0"]}}]}}]}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

// --- Malformed criteria ---

func TestCompileQuery_EmptyCriteriaFails(t *testing.T) {
	t.Helper()

	_, err := query.NewCompiler().CompileQuery(nil)
	if !errors.Is(err, query.ErrInvalidCriteria) {
		t.Errorf("CompileQuery(nil) error = %v, want ErrInvalidCriteria", err)
	}
}

func TestCompileQuery_MissingOperatorFails(t *testing.T) {
	t.Helper()

	_, err := query.NewCompiler().CompileQuery(query.Where("dangling"))
	if !errors.Is(err, query.ErrInvalidCriteria) {
		t.Errorf("CompileQuery() error = %v, want ErrInvalidCriteria", err)
	}
}

func TestCompileQuery_EmptyInFails(t *testing.T) {
	t.Helper()

	_, err := query.NewCompiler().CompileQuery(query.Where("status").In())
	if !errors.Is(err, query.ErrInvalidCriteria) {
		t.Errorf("CompileQuery() error = %v, want ErrInvalidCriteria", err)
	}
}

// --- Geo shape ---

func pointShape() any {
	return schema.PointGeoJSON(schema.GeoPoint{Lat: 48.0, Lon: 8.0}).Document()
}

func TestCompileQuery_GeoShapeWithin(t *testing.T) {
	t.Helper()

	got := compileJSON(t, query.Where("area").Within(pointShape()))
	want := `{"geo_shape":{"area":{"shape":{"type":"Point","coordinates":[8,48]},"relation":"within"}}}`
	if got != want {
		t.Errorf("CompileQuery() = %s, want %s", got, want)
	}
}

func TestCompileFilter_GeoShapeWrapped(t *testing.T) {
	t.Helper()

	inner := `{"geo_shape":{"area":{"shape":{"type":"Point","coordinates":[8,48]},"relation":"intersects"}}}`
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))

	got := filterJSON(t, query.Where("area").Intersects(pointShape()))
	want := `{"wrapper":{"query":"` + encoded + `"}}`
	if got != want {
		t.Errorf("CompileFilter() = %s, want %s", got, want)
	}
}

func TestCompileFilter_NonGeoClausesUnwrapped(t *testing.T) {
	t.Helper()

	got := filterJSON(t, query.Where("status").Is("open"))
	want := `{"query_string":{"query":"open","fields":["status^1.0"]}}`
	if got != want {
		t.Errorf("CompileFilter() = %s, want %s", got, want)
	}
}
