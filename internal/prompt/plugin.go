package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codewiki/internal/wikierr"
)

// PluginArg describes one argument a semantic plugin accepts.
type PluginArg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}

// PluginConfig mirrors a plugin directory's config.json.
type PluginConfig struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Args        []PluginArg `json:"input_variables"`
}

// Plugin is a named prompt loaded from a plugin directory: config.json for
// metadata plus skprompt.txt for the body.
type Plugin struct {
	Config   PluginConfig
	Template *Template
}

// LoadPlugin reads a semantic plugin from dir.
func LoadPlugin(dir string) (*Plugin, error) {
	configPath := filepath.Join(dir, "config.json")
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "plugin config not found: %s", configPath)
	}
	var cfg PluginConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "invalid plugin config: %s", configPath)
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}

	bodyPath := filepath.Join(dir, "skprompt.txt")
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "plugin prompt not found: %s", bodyPath)
	}
	tmpl, err := Parse(string(body))
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "invalid plugin prompt: %s", bodyPath)
	}
	return &Plugin{Config: cfg, Template: tmpl}, nil
}

// Render checks required arguments, applies defaults, and renders the
// plugin body.
func (p *Plugin) Render(params map[string]interface{}) (string, error) {
	merged := make(map[string]interface{}, len(params))
	for k, v := range params {
		merged[k] = v
	}
	for _, arg := range p.Config.Args {
		if _, ok := merged[arg.Name]; ok {
			continue
		}
		if arg.Required {
			return "", wikierr.New(wikierr.KindValidation, "plugin %s: missing required argument %q", p.Config.Name, arg.Name)
		}
		if arg.Default != "" {
			merged[arg.Name] = arg.Default
		}
	}
	return p.Template.Render(merged), nil
}
