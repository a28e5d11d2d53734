package patterns

import "strings"

// DefaultContextKey is the misuse context used for departments without their own entry.
const DefaultContextKey = "default"

// MisuseContexts maps a lowercase department name to what misuse looks like there.
type MisuseContexts map[string]string

// DefaultMisuseContexts returns the built-in misuse context table.
func DefaultMisuseContexts() MisuseContexts {
	return MisuseContexts{
		"it support":      "Requests to bypass security controls, share or reset other people's credentials, disable endpoint protection, install unapproved software, or grant access without manager approval.",
		"it":              "Requests to bypass security controls, share or reset other people's credentials, disable endpoint protection, install unapproved software, or grant access without manager approval.",
		"hr":              "Attempts to obtain another employee's personal records, salary or medical data, or to alter records without authorization.",
		"finance":         "Requests to change payment details outside the verified process, split invoices to dodge approval limits, or expedite payments on unverified instructions.",
		"facilities":      "Requests for building access outside one's role, disabling alarms or cameras, or removing equipment without sign-off.",
		DefaultContextKey: "Requests that violate company policy, try to bypass approvals or security, or use the help desk for purposes unrelated to work.",
	}
}

// Merge returns a copy of m with overrides applied. Override keys are case-insensitive.
func (m MisuseContexts) Merge(overrides map[string]string) MisuseContexts {
	out := make(MisuseContexts, len(m)+len(overrides))
	for k, v := range m {
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

// For returns the context for a department, falling back to the default entry.
func (m MisuseContexts) For(department string) string {
	if ctx, ok := m[strings.ToLower(strings.TrimSpace(department))]; ok {
		return ctx
	}
	return m[DefaultContextKey]
}
