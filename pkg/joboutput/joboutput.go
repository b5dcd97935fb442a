// Package joboutput parses the final JSON blob a job emits on stdout into
// a validated set of output variables (§4.4 "Job output protocol").
package joboutput

import (
	"encoding/json"
	"regexp"

	"github.com/deployforge/engine/pkg/engineerror"
	"github.com/deployforge/engine/pkg/events"
)

// keyPattern is the only shape a job output variable name may take.
var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Variable is one validated job output entry.
type Variable struct {
	Value       string
	Sensitive   bool
	Description string
}

type rawVariable struct {
	Value       json.RawMessage `json:"value"`
	Sensitive   *bool           `json:"sensitive"`
	Description *string         `json:"description"`
}

// Parse decodes raw job-output JSON into a map of validated Variable,
// rejecting any key that does not match keyPattern.
func Parse(details events.EventDetails, raw []byte) (map[string]Variable, error) {
	var decoded map[string]rawVariable
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, engineerror.New(details, engineerror.TagOutputVariableValidationError, "job output is not valid JSON").
			WithUnderlying(err, "job output is not valid JSON")
	}

	out := make(map[string]Variable, len(decoded))
	for key, rv := range decoded {
		if !keyPattern.MatchString(key) {
			return nil, engineerror.OutputVariableValidationError(details, key)
		}

		value, err := stringifyValue(rv.Value)
		if err != nil {
			return nil, engineerror.OutputVariableValidationError(details, key)
		}

		variable := Variable{Value: value}
		if rv.Sensitive != nil {
			variable.Sensitive = *rv.Sensitive
		}
		if rv.Description != nil {
			variable.Description = *rv.Description
		}
		out[key] = variable
	}
	return out, nil
}

// stringifyValue coerces a non-string JSON value to its stringification;
// a JSON string value is returned unquoted.
func stringifyValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	rendered, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(rendered), nil
}
