package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (database DSN, API token) and renders as a
// placeholder through fmt and encoding/json. Call Unmask at the point where
// the raw value is handed to a driver.
type SecretString string

// String returns the placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}
