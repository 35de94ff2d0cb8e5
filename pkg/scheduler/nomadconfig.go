package scheduler

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// uploadConfigFileName is the upload-local config file read at the root of
// raw files (§4.5 step 2).
const uploadConfigFileName = "nomad.yaml"

// uploadConfig is the upload-local override read from nomad.yaml, distinct
// from the deployment-wide pkg/config.Config.
type uploadConfig struct {
	SkipMatching bool     `yaml:"skip_matching"`
	Mainfiles    []string `yaml:"mainfiles"`
}

// readUploadConfig reads and parses nomad.yaml from the root of rawRoot, if
// present. A missing file is not an error — it simply means no override.
func readUploadConfig(rawRoot string) (*uploadConfig, error) {
	data, err := os.ReadFile(filepath.Join(rawRoot, uploadConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &uploadConfig{}, nil
		}
		return nil, err
	}
	var cfg uploadConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
