package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
)

// Model kinds understood by the loader
const (
	KindTreeEnsemble = "tree_ensemble"
	KindLinear       = "linear"
)

// DefaultBaseConfidence seeds germination confidence when the artifact
// does not declare one
const DefaultBaseConfidence = 60.0

// Artifact is the serialized, pre-fitted model with its encoders
type Artifact struct {
	Name           string              `json:"name" yaml:"name"`
	Version        string              `json:"version" yaml:"version"`
	Milestone      estimate.Milestone  `json:"milestone" yaml:"milestone"`
	Features       []string            `json:"features" yaml:"features"`
	Encoders       map[string][]string `json:"encoders" yaml:"encoders"`
	BaseConfidence float64             `json:"base_confidence" yaml:"base_confidence"`
	Model          ModelSpec           `json:"model" yaml:"model"`
}

// ModelSpec describes the regressor
type ModelSpec struct {
	Kind string `json:"kind" yaml:"kind"`

	// tree_ensemble
	BaseScore float64 `json:"base_score" yaml:"base_score"`
	Trees     []Tree  `json:"trees" yaml:"trees"`

	// linear
	Intercept    float64   `json:"intercept" yaml:"intercept"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
}

// Tree is a flattened regression tree; node 0 is the root
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is either a split or a leaf. A split sends x[Feature] < Threshold
// to Left and everything else, including NaN, to Right.
type Node struct {
	Feature   int      `json:"feature" yaml:"feature"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Left      int      `json:"left" yaml:"left"`
	Right     int      `json:"right" yaml:"right"`
	Leaf      *float64 `json:"leaf,omitempty" yaml:"leaf,omitempty"`
}

// ReadArtifact decodes a JSON or YAML artifact from path
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(err, path, "read")
	}

	var a Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &a)
	default:
		err = json.Unmarshal(data, &a)
	}
	if err != nil {
		return nil, loadError(err, path, "parse")
	}
	return &a, nil
}

func loadError(err error, path, op string) error {
	return errors.New(err).
		Component("ml").
		Category(errors.CategoryModelLoad).
		Context("path", path).
		Context("operation", op).
		Build()
}
