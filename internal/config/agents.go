package config

import "time"

// AgentsConfig is the contents of agents.yaml: one binding per catalog model.
type AgentsConfig struct {
	Agents map[string]AgentBinding `yaml:"agents" toml:"agents"`
}

// AgentBinding describes how to build the agent serving a model.
type AgentBinding struct {
	// Type is one of "echo", "static" or "grpc".
	Type    string        `yaml:"type" toml:"type"`
	Reply   string        `yaml:"reply,omitempty" toml:"reply"`
	Address string        `yaml:"address,omitempty" toml:"address"`
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}
