package validate

// Rule validates one field in the context of its form, so rules like
// confirm-password can read sibling fields.
type Rule func(form *Form, value string) Result

// Field is one input of a form with its current value and inline error.
type Field struct {
	Name  string
	Label string
	Value string
	Error string
	Mask  bool // render value as dots (password fields)
	Rules []Rule
}

// Form binds fields to validation rules. Validation runs on field blur
// for immediate feedback and again on submit; a passing rule clears any
// previously shown error.
type Form struct {
	Fields []*Field
}

// NewForm creates a form from fields in display order.
func NewForm(fields ...*Field) *Form {
	return &Form{Fields: fields}
}

// Field returns the named field, or nil.
func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// Value returns the named field's current value.
func (f *Form) Value(name string) string {
	if field := f.Field(name); field != nil {
		return field.Value
	}
	return ""
}

// SetValue updates the named field's value.
func (f *Form) SetValue(name, value string) {
	if field := f.Field(name); field != nil {
		field.Value = value
	}
}

// Blur validates a single field, updating its inline error. Returns
// whether the field passed.
func (f *Form) Blur(name string) bool {
	field := f.Field(name)
	if field == nil {
		return true
	}
	return f.validateField(field)
}

// Submit validates every field. Returns true only when all pass; the
// caller must not issue a network call otherwise.
func (f *Form) Submit() bool {
	ok := true
	for _, field := range f.Fields {
		if !f.validateField(field) {
			ok = false
		}
	}
	return ok
}

// Reset clears all values and errors.
func (f *Form) Reset() {
	for _, field := range f.Fields {
		field.Value = ""
		field.Error = ""
	}
}

func (f *Form) validateField(field *Field) bool {
	for _, rule := range field.Rules {
		if res := rule(f, field.Value); !res.OK {
			field.Error = res.Message
			return false
		}
	}
	field.Error = ""
	return true
}

// EmailRule wraps Email as a form rule.
func EmailRule() Rule {
	return func(_ *Form, value string) Result {
		return Email(value)
	}
}

// PasswordRule wraps Password as a form rule.
func PasswordRule(fieldName string) Rule {
	return func(_ *Form, value string) Result {
		return Password(value, fieldName)
	}
}

// MatchRule checks that the value matches another field's current value.
func MatchRule(otherField string) Rule {
	return func(form *Form, value string) Result {
		return ConfirmPassword(form.Value(otherField), value)
	}
}
