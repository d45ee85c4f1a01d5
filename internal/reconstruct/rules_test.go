package reconstruct

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, rules.AdHosts)
	assert.Contains(t, rules.APIPathMarkers, "/api/")
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `ad_hosts:
  - sponsored.example
api_path_markers:
  - /internal-api/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sponsored.example"}, rules.AdHosts)
	assert.Equal(t, []string{"/internal-api/"}, rules.APIPathMarkers)
	// Lists the file does not mention keep their defaults.
	assert.NotEmpty(t, rules.AnalyticsPathMarkers)
	assert.NotEmpty(t, rules.EmbedMarkers)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules("/no/such/rules.yaml")
	assert.Error(t, err)
}
