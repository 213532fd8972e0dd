// Package rules holds the stateless health rules: education content lookup,
// glucose evaluation and BMI classification.
package rules

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var rawContent []byte

type content struct {
	Education map[string][]string `yaml:"education"`
	Tips      struct {
		Normal []string `yaml:"normal"`
		High   []string `yaml:"high"`
		Low    []string `yaml:"low"`
	} `yaml:"tips"`
}

// tables is decoded once at start-up and never written afterwards.
var tables = mustLoad(rawContent)

func mustLoad(b []byte) content {
	var c content
	if err := yaml.Unmarshal(b, &c); err != nil {
		panic(fmt.Sprintf("rules: decode content.yaml: %v", err))
	}
	if len(c.Tips.Normal) == 0 || len(c.Tips.High) == 0 || len(c.Tips.Low) == 0 {
		panic("rules: content.yaml is missing glucose tips")
	}
	normalized := make(map[string][]string, len(c.Education))
	for k, v := range c.Education {
		normalized[strings.ToLower(k)] = v
	}
	c.Education = normalized
	return c
}

// EducationFor returns the tips for a diabetes type, matched case-insensitively.
// Unknown or absent types yield an empty, non-nil list.
func EducationFor(diabetesType *string) []string {
	if diabetesType == nil {
		return []string{}
	}
	return clone(tables.Education[strings.ToLower(*diabetesType)])
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
