// Package jobmetrics tracks which job metrics plugins run for each
// destination.
package jobmetrics

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/jobconf/pkg/models"
)

// DefaultPlugins are collected for destinations using the default metrics
// when no other default is configured.
func DefaultPlugins() []models.MetricsPlugin {
	return []models.MetricsPlugin{{Type: "core"}}
}

type Registry struct {
	mu            sync.RWMutex
	defaults      []models.MetricsPlugin
	byDestination map[string]destinationConf
}

type destinationConf struct {
	conf    models.MetricsConf
	plugins []models.MetricsPlugin
}

// NewRegistry returns a registry collecting defaults for destinations
// without a configuration of their own. A nil defaults uses DefaultPlugins.
func NewRegistry(defaults []models.MetricsPlugin) *Registry {
	if defaults == nil {
		defaults = DefaultPlugins()
	}
	return &Registry{
		defaults:      defaults,
		byDestination: make(map[string]destinationConf),
	}
}

// SetDestinationConf registers the metrics configuration of a destination.
// Configurations read from a path are loaded immediately.
func (r *Registry) SetDestinationConf(ctx context.Context, destinationID string, conf models.MetricsConf) error {
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("metrics of destination %q: %w", destinationID, err)
	}
	entry := destinationConf{conf: conf.Copy()}
	switch conf.Src {
	case models.MetricsSourceDefault:
		entry.plugins = r.defaults
	case models.MetricsSourceInline:
		for _, plugin := range conf.Plugins {
			entry.plugins = append(entry.plugins, *plugin)
		}
	case models.MetricsSourcePath:
		plugins, err := LoadPlugins(conf.Path)
		if err != nil {
			return fmt.Errorf("metrics of destination %q: %w", destinationID, err)
		}
		entry.plugins = plugins
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDestination[destinationID] = entry
	log.Ctx(ctx).Debug().Str("destination", destinationID).Str("src", string(conf.Src)).
		Int("plugins", len(entry.plugins)).Msg("registered job metrics")
	return nil
}

// ConfFor returns the metrics configuration of a destination.
func (r *Registry) ConfFor(destinationID string) models.MetricsConf {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.byDestination[destinationID]; ok {
		return entry.conf.Copy()
	}
	return models.MetricsConf{Src: models.MetricsSourceDefault}
}

// Plugins returns the metrics plugins run for jobs of a destination.
func (r *Registry) Plugins(destinationID string) []models.MetricsPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byDestination[destinationID]
	if !ok {
		return copyPlugins(r.defaults)
	}
	return copyPlugins(entry.plugins)
}

func (r *Registry) Enabled(destinationID string) bool {
	return len(r.Plugins(destinationID)) > 0
}

func copyPlugins(plugins []models.MetricsPlugin) []models.MetricsPlugin {
	if len(plugins) == 0 {
		return nil
	}
	conf := models.MetricsConf{}
	for i := range plugins {
		conf.Plugins = append(conf.Plugins, &plugins[i])
	}
	out := make([]models.MetricsPlugin, 0, len(plugins))
	for _, plugin := range conf.Copy().Plugins {
		out = append(out, *plugin)
	}
	return out
}

// LoadPlugins reads a metrics plugins file. Markup files hold one element
// per plugin under a job_metrics root; structured files hold a list of
// plugin records.
func LoadPlugins(path string) ([]models.MetricsPlugin, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return parseXMLPlugins(f, path)
	}
	var plugins []models.MetricsPlugin
	if err := yaml.NewDecoder(f).Decode(&plugins); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode metrics plugins %s: %w", path, err)
	}
	for i, plugin := range plugins {
		if plugin.Type == "" {
			return nil, fmt.Errorf("metrics plugin %d in %s has no type", i, path)
		}
	}
	return plugins, nil
}

type pluginElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
}

func parseXMLPlugins(r io.Reader, path string) ([]models.MetricsPlugin, error) {
	var doc struct {
		XMLName xml.Name        `xml:"job_metrics"`
		Plugins []pluginElement `xml:",any"`
	}
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode metrics plugins %s: %w", path, err)
	}
	plugins := make([]models.MetricsPlugin, 0, len(doc.Plugins))
	for _, el := range doc.Plugins {
		plugin := models.MetricsPlugin{Type: el.XMLName.Local}
		for _, a := range el.Attrs {
			if plugin.Params == nil {
				plugin.Params = make(map[string]any, len(el.Attrs))
			}
			plugin.Params[a.Name.Local] = a.Value
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}
