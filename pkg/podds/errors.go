package podds

import "fmt"

// DataIntegrityError reports input that violates an assumption of the rating run:
// out of order matches, impossible odds or goals, a missing transition entry or a
// rating that has collapsed to zero. It is fatal for the league run that raised it.
type DataIntegrityError struct {
	League string
	Season string
	Index  int // position of the offending match in the input, -1 if not match specific
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	loc := ""
	if e.League != "" {
		loc += " league=" + e.League
	}
	if e.Season != "" {
		loc += " season=" + e.Season
	}
	if e.Index >= 0 {
		loc += fmt.Sprintf(" match=%d", e.Index)
	}
	if e.Field != "" {
		loc += " field=" + e.Field
	}
	return fmt.Sprintf("data integrity:%s: %s", loc, e.Reason)
}

func dataError(field, format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Index: -1, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a parameter outside its permitted range.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func configError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
