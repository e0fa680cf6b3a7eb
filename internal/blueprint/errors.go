package blueprint

import "fmt"

// MissingRequiredFieldError reports a required check field absent after all merge layers.
// Params: field key, check name, and path of the blueprint being built.
// Returns: typed error for errors.As checks.
type MissingRequiredFieldError struct {
	Field     string
	CheckName string
	Path      string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("check %q path %q: required field %q is missing", e.CheckName, e.Path, e.Field)
}

// InvalidFieldError reports a field value that cannot be converted to its typed form.
// Params: field key, offending value, and reason.
// Returns: typed error for errors.As checks.
type InvalidFieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("field %q has invalid value %v: %s", e.Field, e.Value, e.Reason)
}
