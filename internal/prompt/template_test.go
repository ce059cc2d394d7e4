package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVariables(t *testing.T) {
	tmpl, err := Parse("Hello {{ name }}, welcome to {{ project }}.")
	require.NoError(t, err)
	out := tmpl.Render(map[string]interface{}{"name": "dev", "project": "wiki"})
	assert.Equal(t, "Hello dev, welcome to wiki.", out)
}

func TestRenderUnknownVariableEmpty(t *testing.T) {
	tmpl, err := Parse("a{{ missing }}b")
	require.NoError(t, err)
	assert.Equal(t, "ab", tmpl.Render(nil))
}

func TestRenderConditional(t *testing.T) {
	src := "start\n{% if readme %}\nhas readme: {{ readme }}\n{% else %}\nno readme\n{% endif %}\nend"
	tmpl, err := Parse(src)
	require.NoError(t, err)

	withReadme := tmpl.Render(map[string]interface{}{"readme": "hi"})
	assert.Equal(t, "start\nhas readme: hi\nend", withReadme)

	without := tmpl.Render(nil)
	assert.Equal(t, "start\nno readme\nend", without)
}

func TestRenderNestedConditional(t *testing.T) {
	src := "{% if a %}A{% if b %}B{% endif %}{% endif %}"
	tmpl, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "AB", tmpl.Render(map[string]interface{}{"a": true, "b": true}))
	assert.Equal(t, "A", tmpl.Render(map[string]interface{}{"a": true}))
	assert.Equal(t, "", tmpl.Render(nil))
}

func TestTruthiness(t *testing.T) {
	tmpl, err := Parse("{% if v %}yes{% endif %}")
	require.NoError(t, err)
	assert.Equal(t, "", tmpl.Render(map[string]interface{}{"v": ""}))
	assert.Equal(t, "", tmpl.Render(map[string]interface{}{"v": 0}))
	assert.Equal(t, "", tmpl.Render(map[string]interface{}{"v": false}))
	assert.Equal(t, "yes", tmpl.Render(map[string]interface{}{"v": "x"}))
	assert.Equal(t, "yes", tmpl.Render(map[string]interface{}{"v": 3}))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("{% if a %}unclosed")
	assert.Error(t, err)
	_, err = Parse("{% endif %}")
	assert.Error(t, err)
	_, err = Parse("{{ open")
	assert.Error(t, err)
	_, err = Parse("{% frobnicate x %}")
	assert.Error(t, err)
}

func TestBracesInProseSurvive(t *testing.T) {
	tmpl, err := Parse(`JSON looks like {"key": "value"} ok`)
	require.NoError(t, err)
	assert.Equal(t, `JSON looks like {"key": "value"} ok`, tmpl.Render(nil))
}

func TestEngineLoadAndCache(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "wiki")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	path := filepath.Join(sub, "overview.md")
	require.NoError(t, os.WriteFile(path, []byte("# {{ title }}"), 0o644))

	engine := NewEngine(dir)
	out, err := engine.Render("wiki", "overview", map[string]interface{}{"title": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "# Hi", out)

	// Cached: a rewrite on disk must not change the parsed template.
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	out, err = engine.Render("wiki", "overview", map[string]interface{}{"title": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "# Hi", out)
}

func TestEngineMissingTemplate(t *testing.T) {
	engine := NewEngine(t.TempDir())
	_, err := engine.Load("wiki", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found or invalid")
}

func TestLoadPlugin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"name":"summarize","description":"d","input_variables":[{"name":"text","required":true},{"name":"tone","default":"neutral"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skprompt.txt"),
		[]byte("Summarize ({{ tone }}): {{ text }}"), 0o644))

	plugin, err := LoadPlugin(dir)
	require.NoError(t, err)
	assert.Equal(t, "summarize", plugin.Config.Name)

	out, err := plugin.Render(map[string]interface{}{"text": "body"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize (neutral): body", out)

	_, err = plugin.Render(nil)
	assert.Error(t, err, "missing required argument must fail")
}
