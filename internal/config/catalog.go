package config

// CatalogConfig is the contents of catalog.yaml. Entry order is the catalog order.
type CatalogConfig struct {
	Models []ModelEntry `yaml:"models" toml:"models"`
}

type ModelEntry struct {
	Name        string  `yaml:"name" toml:"name"`
	Description string  `yaml:"description,omitempty" toml:"description"`
	Cost        float64 `yaml:"cost" toml:"cost"`
	Speed       float64 `yaml:"speed" toml:"speed"`
	Quality     float64 `yaml:"quality" toml:"quality"`
}

// PolicyConfig is the contents of policy.yaml.
type PolicyConfig struct {
	Weights WeightsConfig `yaml:"weights" toml:"weights"`
}

// WeightsConfig selects the weight source. Exactly one of Rules or Rego is set.
type WeightsConfig struct {
	Rules []WeightRule `yaml:"rules" toml:"rules"`
	// Rego is a path to a module defining data.aegis.dispatch.weights,
	// relative to the config directory unless absolute.
	Rego string `yaml:"rego" toml:"rego"`
}

// WeightRule matches task contexts; empty match fields are wildcards.
type WeightRule struct {
	Match   RuleMatch    `yaml:"match" toml:"match"`
	Weights WeightValues `yaml:"weights" toml:"weights"`
}

type RuleMatch struct {
	Complexity string `yaml:"complexity,omitempty" toml:"complexity"`
	Type       string `yaml:"type,omitempty" toml:"type"`
	Urgency    string `yaml:"urgency,omitempty" toml:"urgency"`
}

type WeightValues struct {
	Cost    float64 `yaml:"cost" toml:"cost"`
	Speed   float64 `yaml:"speed" toml:"speed"`
	Quality float64 `yaml:"quality" toml:"quality"`
}
