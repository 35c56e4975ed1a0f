package model

// ValidationResult aggregates the outcome of validating an operation,
// a transaction, or a snapshot. A result with no errors is valid;
// warnings never make a result invalid on their own.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// NewValidationResult creates a passing ValidationResult
func NewValidationResult() ValidationResult {
	return ValidationResult{IsValid: true}
}

// AddError records an error and marks the result invalid
func (v *ValidationResult) AddError(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}

// AddWarning records a warning without affecting validity
func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Merge folds another result into this one. The merged result is valid
// only if both inputs were valid.
func (v *ValidationResult) Merge(other ValidationResult) {
	if !other.IsValid {
		v.IsValid = false
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}
