package drafter

import "strings"

// DefaultToneKey is the tone table entry used for departments without their own rules.
const DefaultToneKey = "default"

// ToneRules maps a lowercase department name to its tone and process guidance.
type ToneRules map[string]string

// DefaultToneRules returns the built-in tone table.
func DefaultToneRules() ToneRules {
	return ToneRules{
		"it support":   "Be technical and precise. Give numbered troubleshooting steps, name the exact settings or tools involved, and say what to report back if the steps do not help.",
		"it":           "Be technical and precise. Give numbered troubleshooting steps, name the exact settings or tools involved, and say what to report back if the steps do not help.",
		"hr":           "Be warm and discreet. Never restate personal details in full, point to the relevant policy by name, and offer a private follow-up channel.",
		"finance":      "Be formal and exact. Quote amounts, dates and reference numbers as given, and state the approval step that comes next.",
		"facilities":   "Be practical and friendly. Confirm the location, give a realistic time window, and mention any safety precaution in the meantime.",
		DefaultToneKey: "Be professional and empathetic. Acknowledge the problem, explain the next step clearly, and avoid promises you cannot verify.",
	}
}

// Merge returns a copy of r with overrides applied. Override keys are case-insensitive.
func (r ToneRules) Merge(overrides map[string]string) ToneRules {
	out := make(ToneRules, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// For returns the rules for a department, falling back to the default entry.
func (r ToneRules) For(department string) string {
	if rules, ok := r[strings.ToLower(strings.TrimSpace(department))]; ok {
		return rules
	}
	return r[DefaultToneKey]
}
