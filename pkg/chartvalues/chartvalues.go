// Package chartvalues layers static Helm chart defaults with runtime
// values generated from a service spec, and validates that every runtime
// override already has a static counterpart (§4.4 "no hidden knobs").
package chartvalues

import (
	"fmt"

	goyaml "gopkg.in/yaml.v3"
	syaml "sigs.k8s.io/yaml"

	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
)

// Override is one runtime (key, value) pair generated from the service
// spec, meant to be layered on top of the chart's static defaults.
type Override struct {
	Key   string
	Value string
}

// MissingStaticKeyError reports an override whose key never appears in
// the chart's static values file.
type MissingStaticKeyError struct {
	Key string
}

func (e *MissingStaticKeyError) Error() string {
	return fmt.Sprintf("override key %q has no static default (hidden knob)", e.Key)
}

// ValidateNoHiddenKnobs asserts every override key also appears, at any
// nesting depth, in the chart's static values document.
func ValidateNoHiddenKnobs(details events.EventDetails, staticValuesYAML []byte, overrides []Override) error {
	var static map[string]interface{}
	if err := yamlUnmarshal(staticValuesYAML, &static); err != nil {
		return engineerror.New(details, engineerror.TagTerraformError, "static chart values file is not valid YAML").
			WithUnderlying(err, "static chart values file is not valid YAML")
	}

	flatKeys := flattenKeys(static, "")
	known := make(map[string]bool, len(flatKeys))
	for _, k := range flatKeys {
		known[k] = true
	}

	for _, o := range overrides {
		if !known[o.Key] {
			return &MissingStaticKeyError{Key: o.Key}
		}
	}
	return nil
}

// flattenKeys returns every dotted key path present in a nested values
// document.
func flattenKeys(m map[string]interface{}, prefix string) []string {
	var keys []string
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		keys = append(keys, full)
		if nested, ok := v.(map[string]interface{}); ok {
			keys = append(keys, flattenKeys(nested, full)...)
		}
	}
	return keys
}

func yamlUnmarshal(data []byte, out interface{}) error {
	return syaml.Unmarshal(data, out)
}

// Render layers overrides on top of the static values document and
// returns the merged document as YAML, ready to pass to `helm upgrade
// --values`.
func Render(staticValuesYAML []byte, overrides []Override) ([]byte, error) {
	var merged map[string]interface{}
	if err := yamlUnmarshal(staticValuesYAML, &merged); err != nil {
		return nil, fmt.Errorf("parsing static chart values: %w", err)
	}
	if merged == nil {
		merged = map[string]interface{}{}
	}

	for _, o := range overrides {
		setDotted(merged, o.Key, o.Value)
	}

	out, err := goyaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("rendering merged chart values: %w", err)
	}
	return out, nil
}

// setDotted sets a dotted key path to value, creating intermediate maps
// as needed.
func setDotted(m map[string]interface{}, dottedKey string, value string) {
	parts := splitDotted(dottedKey)
	cur := m
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
}

func splitDotted(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
