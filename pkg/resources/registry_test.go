//go:build unit || !integration

package resources

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

const parametersXML = `<parameters>
  <param label="Cores" name="cores" type="integer" min="1" max="64" value="" help="Number of cores"/>
  <param label="Memory" name="memory" type="float" min="0.5" max="256" value=""/>
  <param label="Queue" name="queue" type="select">
    <option value="short">Short</option>
    <option value="long">Long</option>
  </param>
</parameters>`

type staticGroups map[string]string

func (s staticGroups) ResourceGroup(toolID string) (string, bool) {
	group, ok := s[toolID]
	return group, ok
}

func parseParams(t *testing.T) map[string]FieldDefinition {
	params, err := ParseParameters(strings.NewReader(parametersXML))
	require.NoError(t, err)
	return params
}

func TestParseParameters(t *testing.T) {
	params := parseParams(t)
	require.Len(t, params, 3)
	assert.Equal(t, "integer", params["cores"].Attr("type"))
	assert.Equal(t, "Memory", params["memory"].Attr("label"))
	assert.Contains(t, params["queue"].Inner, `<option value="long">Long</option>`)

	_, err := ParseParameters(strings.NewReader(`<parameters><param label="x"/></parameters>`))
	require.Error(t, err)

	_, err = ParseParameters(strings.NewReader(`<parameters><param name="a"/><param name="a"/></parameters>`))
	require.Error(t, err)

	_, err = ParseParameters(strings.NewReader(`<parameters><param`))
	require.Error(t, err)
}

func TestLoadParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_resource_params_conf.xml")
	require.NoError(t, os.WriteFile(path, []byte(parametersXML), 0o600))

	params, err := LoadParameters(path)
	require.NoError(t, err)
	assert.Len(t, params, 3)

	_, err = LoadParameters(filepath.Join(t.TempDir(), "missing.xml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func newRegistry(t *testing.T) *Registry {
	return NewRegistry(&models.Resources{
		Default: "basic",
		Groups: map[string][]string{
			"basic":  {"cores"},
			"all":    {"queue", "cores", "memory"},
			"broken": {"cores", "gpus"},
		},
	}, parseParams(t), staticGroups{"bwa": "all", "bad": "broken", "other": "unknown"})
}

func TestFieldsFor(t *testing.T) {
	r := newRegistry(t)

	fields, err := r.FieldsFor("bwa", ToolTypeDefault)
	require.NoError(t, err)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"queue", "cores", "memory"}, names)

	fields, err = r.FieldsFor("cat1", ToolTypeManageData)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "cores", fields[0].Name())

	fields, err = r.FieldsFor("bwa", "data_source")
	require.NoError(t, err)
	assert.Nil(t, fields)

	fields, err = r.FieldsFor("other", ToolTypeDefault)
	require.NoError(t, err)
	assert.Nil(t, fields)

	_, err = r.FieldsFor("bad", ToolTypeDefault)
	require.ErrorIs(t, err, NewErrResourceGroupFieldMissing("broken", "gpus"))
}

func TestFieldsForWithoutGroups(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	fields, err := r.FieldsFor("bwa", ToolTypeDefault)
	require.NoError(t, err)
	assert.Nil(t, fields)
	assert.Empty(t, r.Groups())
}

func TestConditionalFor(t *testing.T) {
	r := newRegistry(t)

	c, err := r.ConditionalFor("bwa", ToolTypeDefault)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ConditionalName, c.Name)
	require.Len(t, c.Whens, 2)
	assert.Empty(t, c.Whens[0].Fields)
	assert.Len(t, c.Whens[1].Fields, 3)

	out, err := c.XML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<conditional name="__job_resource">`))
	assert.Contains(t, out, `<param name="__job_resource__select" type="select" label="Job Resource Parameters">`)
	assert.Contains(t, out, `<option value="yes">Specify job resource parameters</option>`)

	var decoded struct {
		Whens []struct {
			Value  string            `xml:"value,attr"`
			Fields []FieldDefinition `xml:"param"`
		} `xml:"when"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Whens, 2)
	require.Len(t, decoded.Whens[1].Fields, 3)
	assert.Equal(t, "queue", decoded.Whens[1].Fields[0].Name())
	assert.Equal(t, "64", decoded.Whens[1].Fields[1].Attr("max"))
	assert.Contains(t, decoded.Whens[1].Fields[0].Inner, `<option value="short">Short</option>`)

	c, err = r.ConditionalFor("bwa", "data_source")
	require.NoError(t, err)
	assert.Nil(t, c)
}
