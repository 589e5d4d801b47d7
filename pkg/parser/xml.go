package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bacalhau-project/jobconf/pkg/models"
	"github.com/bacalhau-project/jobconf/pkg/requirements"
)

const dockerSudoParam = "docker_sudo"

// element is a generic markup node. Sections are walked by name instead of
// being bound to fixed structs because params, plugins and metrics carry
// arbitrary attributes.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*element `xml:",any"`
}

func (e *element) name() string {
	return e.XMLName.Local
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *element) attrOr(name, fallback string) string {
	if v, ok := e.attr(name); ok {
		return v
	}
	return fallback
}

func (e *element) requiredAttr(name string) (string, error) {
	v, ok := e.attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("<%s> element is missing required attribute %q", e.name(), name)
	}
	return v, nil
}

func (e *element) attrMap() map[string]string {
	out := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		out[a.Name.Local] = a.Value
	}
	return out
}

func (e *element) child(name string) *element {
	for _, c := range e.Children {
		if c.name() == name {
			return c
		}
	}
	return nil
}

func (e *element) children(name string) []*element {
	var out []*element
	for _, c := range e.Children {
		if c.name() == name {
			out = append(out, c)
		}
	}
	return out
}

func (e *element) text() string {
	return strings.TrimSpace(e.Text)
}

type xmlParser struct {
	options
}

// ParseXML parses a markup job configuration.
func ParseXML(r io.Reader, source string, opts ...Option) (*models.Document, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, NewConfigParseError(source, err)
	}
	p := &xmlParser{options: newOptions(opts)}
	doc, err := p.document(&root)
	if err != nil {
		return nil, NewConfigParseError(source, err)
	}
	return finalize(doc), nil
}

func (p *xmlParser) document(root *element) (*models.Document, error) {
	doc := &models.Document{}
	sections := []func(*element, *models.Document) error{
		p.plugins,
		p.handlers,
		p.destinations,
		p.resources,
		p.tools,
		p.limits,
	}
	for _, section := range sections {
		if err := section(root, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (p *xmlParser) plugins(root *element, doc *models.Document) error {
	section := root.child("plugins")
	if section == nil {
		return nil
	}
	sectionWorkers := section.attrOr("workers", "")
	for _, plugin := range section.children("plugin") {
		if plugin.attrOr("type", "") != "runner" {
			continue
		}
		id, err := plugin.requiredAttr("id")
		if err != nil {
			return err
		}
		kwds, err := p.params(plugin)
		if err != nil {
			return fmt.Errorf("runner %s: %w", id, err)
		}
		for _, a := range plugin.Attrs {
			switch a.Name.Local {
			case "id", "type", "load", "workers":
				continue
			}
			if _, ok := kwds[a.Name.Local]; !ok {
				kwds[a.Name.Local] = a.Value
			}
		}
		if id == models.DynamicRunnerID {
			doc.Dynamic = kwds
			continue
		}
		workers := models.DefaultWorkers
		if raw := plugin.attrOr("workers", sectionWorkers); raw != "" {
			workers, err = strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("runner %s: invalid workers %q", id, raw)
			}
		}
		if doc.Runners == nil {
			doc.Runners = make(map[string]*models.RunnerPlugin)
		}
		if _, exists := doc.Runners[id]; exists {
			return fmt.Errorf("runner %s declared more than once", id)
		}
		doc.Runners[id] = &models.RunnerPlugin{
			ID:      id,
			Load:    plugin.attrOr("load", ""),
			Workers: workers,
			Kwds:    kwds,
		}
	}
	return nil
}

func (p *xmlParser) handlers(root *element, doc *models.Document) error {
	section := root.child("handlers")
	if section == nil {
		return nil
	}
	handling := &models.Handling{
		Assign:  splitList(section.attrOr("assign_with", "")),
		Default: section.attrOr("default", ""),
	}
	for attr, target := range map[string]*int{
		"max_grab":          &handling.MaxGrab,
		"ready_window_size": &handling.ReadyWindowSize,
	} {
		if raw, ok := section.attr(attr); ok && raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("handlers: invalid %s %q", attr, raw)
			}
			*target = v
		}
	}
	for _, handler := range section.children("handler") {
		id, err := handler.requiredAttr("id")
		if err != nil {
			return err
		}
		process := &models.HandlerProcess{Tags: splitList(handler.attrOr("tags", ""))}
		for _, plugin := range handler.children("plugin") {
			pluginID, err := plugin.requiredAttr("id")
			if err != nil {
				return fmt.Errorf("handler %s: %w", id, err)
			}
			process.Plugins = append(process.Plugins, pluginID)
		}
		if handling.Processes == nil {
			handling.Processes = make(map[string]*models.HandlerProcess)
		}
		if _, ok := handling.Processes[id]; !ok {
			handling.Order = append(handling.Order, id)
		}
		handling.Processes[id] = process
	}
	doc.Handling = handling
	return nil
}

func (p *xmlParser) destinations(root *element, doc *models.Document) error {
	section := root.child("destinations")
	if section == nil {
		return nil
	}
	doc.Execution.Default = section.attrOr("default", "")
	for _, dest := range section.children("destination") {
		env, err := p.destination(dest)
		if err != nil {
			return err
		}
		doc.Execution.Environments = append(doc.Execution.Environments, env)
	}
	return nil
}

// destination reads a <destination>. A destination without an id is only
// reachable through its tags, so it must declare at least one.
func (p *xmlParser) destination(dest *element) (*models.Environment, error) {
	id := strings.TrimSpace(dest.attrOr("id", ""))
	env := &models.Environment{
		ID:     id,
		Runner: dest.attrOr("runner", ""),
		URL:    dest.attrOr("url", ""),
		Tags:   splitList(dest.attrOr("tags", "")),
	}
	if id == "" {
		if len(env.Tags) == 0 {
			return nil, errors.New(`<destination> element requires an "id" or "tags" attribute`)
		}
		id = "tagged " + strings.Join(env.Tags, ",")
	}
	var err error
	if env.Params, err = p.params(dest); err != nil {
		return nil, fmt.Errorf("destination %s: %w", id, err)
	}
	if _, ok := env.Params[dockerSudoParam]; !ok {
		env.Params[dockerSudoParam] = "true"
	}
	for _, e := range dest.children("env") {
		v := &models.EnvVar{
			Name:    e.attrOr("id", ""),
			File:    e.attrOr("file", ""),
			Execute: e.attrOr("exec", ""),
		}
		if v.File == "" && v.Execute == "" {
			v.Value = e.text()
			if v.Name == "" {
				return nil, fmt.Errorf("destination %s: <env> with a value requires an id", id)
			}
		}
		if raw, ok := e.attr("raw"); ok {
			v.Raw, _ = parseBoolLike(raw)
		}
		env.Env = append(env.Env, v)
	}
	for _, r := range dest.children("resubmit") {
		env.Resubmit = append(env.Resubmit, &models.ResubmitRule{
			Condition:   r.attrOr("condition", ""),
			Environment: r.attrOr("destination", ""),
			Handler:     r.attrOr("handler", ""),
			Delay:       r.attrOr("delay", ""),
		})
	}
	env.Metrics = metricsConf(dest)
	return env, nil
}

func metricsConf(dest *element) *models.MetricsConf {
	if raw, ok := dest.attr("metrics"); ok {
		if enabled, isBool := parseBoolLike(raw); isBool {
			if enabled {
				return &models.MetricsConf{Src: models.MetricsSourceDefault}
			}
			return &models.MetricsConf{Src: models.MetricsSourceDisabled}
		}
		return &models.MetricsConf{Src: models.MetricsSourcePath, Path: raw}
	}
	section := dest.child("job_metrics")
	if section == nil {
		return &models.MetricsConf{Src: models.MetricsSourceDefault}
	}
	conf := &models.MetricsConf{Src: models.MetricsSourceInline}
	for _, plugin := range section.Children {
		params := make(map[string]any, len(plugin.Attrs))
		for k, v := range plugin.attrMap() {
			params[k] = v
		}
		conf.Plugins = append(conf.Plugins, &models.MetricsPlugin{Type: plugin.name(), Params: params})
	}
	return conf
}

// params collects the <param> children of e. Container params hold a list of
// container descriptions; every other param is textual.
func (p *xmlParser) params(e *element) (map[string]any, error) {
	out := make(map[string]any)
	for _, param := range e.children("param") {
		id, err := param.requiredAttr("id")
		if err != nil {
			return nil, err
		}
		if requirements.IsContainerParam(id) {
			var containers []any
			for _, c := range param.Children {
				desc, err := requirements.NewContainerDescription(c.text(), c.attrMap())
				if err != nil {
					return nil, fmt.Errorf("param %s: %w", id, err)
				}
				containers = append(containers, desc.ToMap())
			}
			out[id] = containers
			continue
		}
		out[id] = p.paramValue(param)
	}
	return out, nil
}

func (p *xmlParser) paramValue(param *element) string {
	value := param.text()
	if name, ok := param.attr("from_environ"); ok && name != "" {
		if v, found := p.lookupEnv(name); found {
			value = v
		}
	}
	if key, ok := param.attr("from_config"); ok && key != "" {
		if v, found := p.configDict[key]; found && v != nil {
			value = fmt.Sprint(v)
		}
	}
	return value
}

func (p *xmlParser) resources(root *element, doc *models.Document) error {
	section := root.child("resources")
	if section == nil {
		return nil
	}
	res := &models.Resources{Default: section.attrOr("default", "")}
	for _, group := range section.children("group") {
		id, err := group.requiredAttr("id")
		if err != nil {
			return err
		}
		if res.Groups == nil {
			res.Groups = make(map[string][]string)
		}
		res.Groups[id] = splitList(group.text())
	}
	doc.Resources = res
	return nil
}

func (p *xmlParser) tools(root *element, doc *models.Document) error {
	section := root.child("tools")
	if section == nil {
		return nil
	}
	for _, tool := range section.children("tool") {
		params, err := p.params(tool)
		if err != nil {
			return fmt.Errorf("tool %s: %w", tool.attrOr("id", tool.attrOr("class", "")), err)
		}
		doc.Tools = append(doc.Tools, &models.ToolEntry{
			ID:          tool.attrOr("id", ""),
			Class:       tool.attrOr("class", ""),
			Handler:     tool.attrOr("handler", ""),
			Environment: tool.attrOr("destination", ""),
			Resources:   tool.attrOr("resources", ""),
			Params:      params,
		})
	}
	return nil
}

func (p *xmlParser) limits(root *element, doc *models.Document) error {
	section := root.child("limits")
	if section == nil {
		return nil
	}
	for _, limit := range section.children("limit") {
		limitType, err := limit.requiredAttr("type")
		if err != nil {
			return err
		}
		doc.Limits = append(doc.Limits, &models.LimitEntry{
			Type:   models.NormalizeLimitType(limitType),
			Value:  limit.text(),
			ID:     limit.attrOr("id", ""),
			Tag:    limit.attrOr("tag", ""),
			Window: limit.attrOr("window", ""),
		})
	}
	return nil
}
