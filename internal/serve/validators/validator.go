package validators

// Validator accumulates field-level validation errors keyed by the request
// field that failed, so a handler can report every problem in one response.
type Validator struct {
	Errors map[string]any
}

func NewValidator() *Validator {
	return &Validator{Errors: map[string]any{}}
}

// Check records message under key when ok is false.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// CheckError records err under key, preferring message when it is set.
func (v *Validator) CheckError(err error, key, message string) *Validator {
	if err == nil {
		return v
	}
	if message == "" {
		message = err.Error()
	}
	v.AddError(key, message)
	return v
}

func (v *Validator) AddError(key, message string) {
	v.Errors[key] = message
}

func (v *Validator) HasErrors() bool {
	return len(v.Errors) > 0
}
