//go:build unit || !integration

package jobconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/jobconf/pkg/config"
	"github.com/bacalhau-project/jobconf/pkg/parser"
)

const markupConf = `<?xml version="1.0"?>
<job_conf>
  <plugins>
    <plugin id="local" type="runner" load="jobconf.runners.local:LocalRunner"/>
  </plugins>
  <destinations default="from_xml">
    <destination id="from_xml" runner="local">
      <param id="queue" from_config="cluster_queue">short</param>
    </destination>
  </destinations>
</job_conf>
`

const structuredConf = `runners:
  local:
    load: jobconf.runners.local:LocalRunner
execution:
  default: from_yaml
  environments:
    from_yaml:
      runner: local
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDiscoverSearchOrder(t *testing.T) {
	dir := t.TempDir()
	settings := settingsIn(dir)

	doc, source, err := Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, source)
	assert.Equal(t, DefaultDocument(settings), doc)

	xmlPath := writeFile(t, dir, "job_conf.xml", markupConf)
	doc, source, err = Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, xmlPath, source)
	assert.Equal(t, "from_xml", doc.Execution.Default)

	ymlPath := writeFile(t, dir, "job_conf.yml", structuredConf)
	doc, source, err = Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, ymlPath, source)
	assert.Equal(t, "from_yaml", doc.Execution.Default)
}

func TestDiscoverConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "job_conf.yml", structuredConf)
	writeFile(t, dir, "custom.xml", markupConf)

	settings := settingsIn(dir)
	settings.JobConfigFile = "custom.xml"
	doc, source, err := Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.xml"), source)
	assert.Equal(t, "from_xml", doc.Execution.Default)

	settings.JobConfigFile = "missing.yml"
	doc, _, err = Discover(settings)
	require.Error(t, err)
	assert.Nil(t, doc)
	var parseErr parser.ConfigParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, filepath.Join(dir, "missing.yml"), parseErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverParamsFromSettings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.xml", markupConf)

	settings := settingsIn(dir)
	settings.JobConfigFile = path
	doc, _, err := Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, "short", doc.Execution.Environments[0].Params["queue"])

	yml := writeFile(t, dir, "settings.yml", "cluster_queue: long\njob_config_file: "+path+"\n")
	loaded, err := config.Load(yml)
	require.NoError(t, err)
	doc, _, err = Discover(loaded)
	require.NoError(t, err)
	assert.Equal(t, "long", doc.Execution.Environments[0].Params["queue"])
}

func TestDiscoverInlineWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "job_conf.yml", structuredConf)

	settings := settingsIn(dir)
	settings.JobConfigFile = "missing.yml"
	settings.JobConfig = map[string]any{
		"runners": map[string]any{"local": map[string]any{"load": "local"}},
		"execution": map[string]any{
			"environments": []any{map[string]any{"id": "inline", "runner": "local"}},
		},
	}
	doc, source, err := Discover(settings)
	require.NoError(t, err)
	assert.Equal(t, parser.InlineSource, source)
	require.Len(t, doc.Execution.Environments, 1)
	assert.Equal(t, "inline", doc.Execution.Environments[0].ID)
}

func TestDiscoverMalformedFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "job_conf.yml", "execution: [\n")

	doc, _, err := Discover(settingsIn(dir))
	require.ErrorAs(t, err, new(parser.ConfigParseError))
	assert.Nil(t, doc)
}
