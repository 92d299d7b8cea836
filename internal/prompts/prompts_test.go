package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault_HasAllTemplates(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.GroundRules, 2)
	assert.Contains(t, c.Classifier, "risk_assessment")
	for _, label := range Labels {
		_, ok := c.Template(label)
		assert.True(t, ok, label)
	}
}

func TestRenderAnswer_IncludesGroundRulesVerbatim(t *testing.T) {
	c := MustDefault()

	for _, label := range Labels {
		tmpl, _ := c.Template(label)
		prompt := c.RenderAnswer(tmpl, "What is a CCJ?", "A CCJ is a county court judgment.")

		assert.Contains(t, prompt, "A CCJ is a county court judgment.", label)
		assert.Contains(t, prompt, "What is a CCJ?", label)
		for _, rule := range c.GroundRules {
			assert.Contains(t, prompt, rule, label)
		}
		for _, section := range tmpl.Sections {
			assert.Contains(t, prompt, "- "+section, label)
		}
	}
}

func TestRenderAnswer_SimulationLayout(t *testing.T) {
	c := MustDefault()
	tmpl, _ := c.Template("simulation")
	prompt := c.RenderAnswer(tmpl, "What if I miss a mortgage payment for 3 months?", "ctx")

	for _, want := range []string{"Scenario Summary", "Short-Term Impact", "Medium-Term Impact", "Estimated Risk Level", "Recovery Strategy", "Key Insight"} {
		assert.Contains(t, prompt, want)
	}
	assert.Contains(t, prompt, "what-if scenario")
}

func TestRenderEscalation_HasNoContextAndWarnsOnNumbers(t *testing.T) {
	c := MustDefault()
	tmpl, _ := c.Template("advisory")
	prompt := c.RenderEscalation("advisory", tmpl, "How do I improve my credit file?")

	assert.Contains(t, prompt, "intent: advisory")
	assert.Contains(t, prompt, "How do I improve my credit file?")
	assert.Contains(t, prompt, "Do NOT fabricate exact score numbers.")
	assert.NotContains(t, prompt, "Context:")
}

func TestParse_RejectsMissingTemplate(t *testing.T) {
	_, err := Parse([]byte(`
ground_rules: [a]
classifier: classify
templates:
  explanation: {role: r, instruction: i, sections: [s]}
`))
	assert.ErrorContains(t, err, "advisory")
}

func TestParse_RejectsEmptyGroundRules(t *testing.T) {
	_, err := Parse([]byte(`classifier: x`))
	assert.ErrorContains(t, err, "ground_rules")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalogue, 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Templates, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_OverrideMustKeepGroundRules(t *testing.T) {
	base := MustDefault()
	dir := t.TempDir()

	dropped := *base
	dropped.GroundRules = []string{"Be helpful."}
	data, err := yaml.Marshal(&dropped)
	require.NoError(t, err)
	path := filepath.Join(dir, "dropped.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "ground rule")
	assert.ErrorContains(t, err, "Answer using only the knowledge base context")

	extended := *base
	extended.GroundRules = append([]string{"Use British English."}, base.GroundRules...)
	data, err = yaml.Marshal(&extended)
	require.NoError(t, err)
	path = filepath.Join(dir, "extended.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.GroundRules, len(base.GroundRules)+1)
}
