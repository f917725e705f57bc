package database

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration limiting which tables are
// replicated.
type FileConfig struct {
	TargetTables []string `yaml:"target_tables"`
	SkipTables   []string `yaml:"skip_tables"`
}

// ParseFileConfig reads configFile; an empty path yields the zero config.
func ParseFileConfig(configFile string) (FileConfig, error) {
	var config FileConfig
	if configFile == "" {
		return config, nil
	}

	buf, err := os.ReadFile(configFile)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(buf, &config); err != nil {
		return config, fmt.Errorf("cannot parse %q: %w", configFile, err)
	}
	return config, nil
}
