package parser

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/requirements"
)

// ParseYAML parses a structured job configuration. JSON documents are valid
// input too. An empty document parses to an empty configuration. Params are
// taken literally, so parser options do not apply.
func ParseYAML(r io.Reader, source string) (*models.Document, error) {
	doc := &models.Document{}
	if err := yaml.NewDecoder(r).Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, NewConfigParseError(source, err)
	}
	if err := normalizeStructured(doc); err != nil {
		return nil, NewConfigParseError(source, err)
	}
	return finalize(doc), nil
}

func normalizeStructured(doc *models.Document) error {
	if dynamic, ok := doc.Runners[models.DynamicRunnerID]; ok {
		delete(doc.Runners, models.DynamicRunnerID)
		if dynamic != nil && doc.Dynamic == nil {
			doc.Dynamic = dynamic.Kwds
		}
	}
	for _, env := range doc.Execution.Environments {
		if env == nil {
			continue
		}
		if env.ID == "" && len(env.Tags) == 0 {
			return errors.New("environment requires an id or tags")
		}
		for key, value := range env.Params {
			if !requirements.IsContainerParam(key) {
				continue
			}
			containers, err := requirements.NormalizeContainers(value)
			if err != nil {
				return fmt.Errorf("environment %s: %s: %w", env.ID, key, err)
			}
			env.Params[key] = containers
		}
	}
	for _, limit := range doc.Limits {
		if limit != nil {
			limit.Type = models.NormalizeLimitType(limit.Type)
		}
	}
	return nil
}
