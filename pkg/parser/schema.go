package parser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

const environmentsSchema = `{
  "oneOf": [
    {"type": "array", "items": {"$ref": "#/$defs/Environment"}},
    {"type": "object", "additionalProperties": {"$ref": "#/$defs/Environment"}},
    {"type": "null"}
  ]
}`

// Schema returns the JSON schema of the structured job configuration format.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{AllowAdditionalProperties: true}
	s := r.Reflect(&models.Document{})

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling job configuration schema: %w", err)
	}
	schema := string(data)

	limitTypes := append(models.LimitTypes(),
		models.LegacyLimitPrefix+"user_concurrent_jobs",
		models.LegacyLimitPrefix+"total_concurrent_jobs",
	)

	enumTypes := []struct {
		Path  string
		Enums []string
	}{
		{Path: "$defs.LimitEntry.properties.type", Enums: limitTypes},
		{Path: "$defs.ToolEntry.properties.class", Enums: models.ToolClasses()},
		{Path: "$defs.MetricsConf.properties.src", Enums: models.MetricsSources()},
		{Path: "$defs.Handling.properties.assign.items", Enums: models.AssignmentMethods()},
	}
	for _, enumType := range enumTypes {
		if schema, err = sjson.Set(schema, enumType.Path+".type", "string"); err != nil {
			return nil, err
		}
		if schema, err = sjson.Set(schema, enumType.Path+".enum", enumType.Enums); err != nil {
			return nil, err
		}
	}
	if schema, err = sjson.SetRaw(schema, "$defs.Execution.properties.environments", environmentsSchema); err != nil {
		return nil, err
	}
	return []byte(schema), nil
}

// ValidateStructured checks a structured job configuration document against
// Schema. Every violation is reported.
func ValidateStructured(data []byte) error {
	schema, err := Schema()
	if err != nil {
		return err
	}
	asJSON, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("error converting job configuration to JSON: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(asJSON),
	)
	if err != nil {
		return fmt.Errorf("error validating job configuration: %w", err)
	}
	var errs *multierror.Error
	for _, e := range result.Errors() {
		errs = multierror.Append(errs, errors.New(e.String()))
	}
	return errs.ErrorOrNil()
}
