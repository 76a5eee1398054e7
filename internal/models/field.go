package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldType tags the payload shape of an ApplicationField.
type FieldType string

const (
	FieldText     FieldType = "TEXT"
	FieldSelect   FieldType = "SELECT"
	FieldCheckbox FieldType = "CHECKBOX"
	FieldDate     FieldType = "DATE"
	FieldNumber   FieldType = "NUMBER"
	FieldEmail    FieldType = "EMAIL"
	FieldPhone    FieldType = "PHONE"
)

// DateLayout is the wire format of DATE values.
const DateLayout = "2006-01-02"

// FieldSpec is the type-specific part of a custom field definition.
// Exactly one concrete spec exists per FieldType.
type FieldSpec interface {
	Type() FieldType
	// Validate checks the definition itself.
	Validate() error
	// CheckValue checks a submitted value against the definition.
	CheckValue(v any) error
}

// TextSpec constrains free text.
type TextSpec struct {
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

func (TextSpec) Type() FieldType { return FieldText }

func (s TextSpec) Validate() error {
	if s.MinLength != nil && *s.MinLength < 0 {
		return errors.New("minLength must not be negative")
	}
	if s.MinLength != nil && s.MaxLength != nil && *s.MinLength > *s.MaxLength {
		return errors.New("minLength must not exceed maxLength")
	}
	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("pattern is not a valid regular expression")
		}
	}
	return nil
}

func (s TextSpec) CheckValue(v any) error {
	str, ok := v.(string)
	if !ok {
		return errors.New("must be a string")
	}
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		return fmt.Errorf("must be at least %d characters", *s.MinLength)
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		return fmt.Errorf("must be at most %d characters", *s.MaxLength)
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil || !re.MatchString(str) {
			return errors.New("has an invalid format")
		}
	}
	return nil
}

// EmailSpec accepts a single e-mail address.
type EmailSpec struct{}

func (EmailSpec) Type() FieldType { return FieldEmail }
func (EmailSpec) Validate() error { return nil }

func (EmailSpec) CheckValue(v any) error {
	str, ok := v.(string)
	if !ok {
		return errors.New("must be a string")
	}
	addr, err := mail.ParseAddress(str)
	if err != nil || addr.Address != str {
		return errors.New("must be a valid email address")
	}
	return nil
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)

// PhoneSpec accepts a phone number.
type PhoneSpec struct{}

func (PhoneSpec) Type() FieldType { return FieldPhone }
func (PhoneSpec) Validate() error { return nil }

func (PhoneSpec) CheckValue(v any) error {
	str, ok := v.(string)
	if !ok || !phonePattern.MatchString(str) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

// NumberSpec bounds a numeric value.
type NumberSpec struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (NumberSpec) Type() FieldType { return FieldNumber }

func (s NumberSpec) Validate() error {
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return errors.New("min must not exceed max")
	}
	return nil
}

func (s NumberSpec) CheckValue(v any) error {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return errors.New("must be a number")
		}
		f = parsed
	default:
		return errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a number")
	}
	if s.Min != nil && f < *s.Min {
		return fmt.Errorf("must be at least %v", *s.Min)
	}
	if s.Max != nil && f > *s.Max {
		return fmt.Errorf("must be at most %v", *s.Max)
	}
	return nil
}

// DateSpec bounds a calendar date.
type DateSpec struct {
	NotBefore string `json:"notBefore,omitempty"`
	NotAfter  string `json:"notAfter,omitempty"`
}

func (DateSpec) Type() FieldType { return FieldDate }

func (s DateSpec) Validate() error {
	var lo, hi time.Time
	var err error
	if s.NotBefore != "" {
		if lo, err = time.Parse(DateLayout, s.NotBefore); err != nil {
			return errors.New("notBefore must be YYYY-MM-DD")
		}
	}
	if s.NotAfter != "" {
		if hi, err = time.Parse(DateLayout, s.NotAfter); err != nil {
			return errors.New("notAfter must be YYYY-MM-DD")
		}
	}
	if !lo.IsZero() && !hi.IsZero() && lo.After(hi) {
		return errors.New("notBefore must not be after notAfter")
	}
	return nil
}

func (s DateSpec) CheckValue(v any) error {
	str, ok := v.(string)
	if !ok {
		return errors.New("must be a date (YYYY-MM-DD)")
	}
	d, err := time.Parse(DateLayout, str)
	if err != nil {
		return errors.New("must be a date (YYYY-MM-DD)")
	}
	if s.NotBefore != "" {
		if lo, err := time.Parse(DateLayout, s.NotBefore); err == nil && d.Before(lo) {
			return fmt.Errorf("must not be before %s", s.NotBefore)
		}
	}
	if s.NotAfter != "" {
		if hi, err := time.Parse(DateLayout, s.NotAfter); err == nil && d.After(hi) {
			return fmt.Errorf("must not be after %s", s.NotAfter)
		}
	}
	return nil
}

// SelectSpec restricts the value to listed options.
type SelectSpec struct {
	Options  []string `json:"options"`
	Multiple bool     `json:"multiple,omitempty"`
}

func (SelectSpec) Type() FieldType { return FieldSelect }

func (s SelectSpec) Validate() error {
	if len(s.Options) == 0 {
		return errors.New("at least one option is required")
	}
	seen := make(map[string]struct{}, len(s.Options))
	for _, o := range s.Options {
		if strings.TrimSpace(o) == "" {
			return errors.New("options must not be blank")
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("duplicate option %q", o)
		}
		seen[o] = struct{}{}
	}
	return nil
}

func (s SelectSpec) CheckValue(v any) error {
	if s.Multiple {
		items, ok := v.([]any)
		if !ok {
			return errors.New("must be a list of options")
		}
		for _, item := range items {
			if err := s.checkOne(item); err != nil {
				return err
			}
		}
		return nil
	}
	return s.checkOne(v)
}

func (s SelectSpec) checkOne(v any) error {
	str, ok := v.(string)
	if ok {
		for _, o := range s.Options {
			if o == str {
				return nil
			}
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(s.Options, ", "))
}

// CheckboxSpec accepts a boolean.
type CheckboxSpec struct{}

func (CheckboxSpec) Type() FieldType { return FieldCheckbox }
func (CheckboxSpec) Validate() error { return nil }

func (CheckboxSpec) CheckValue(v any) error {
	if _, ok := v.(bool); !ok {
		return errors.New("must be true or false")
	}
	return nil
}

// NewFieldSpec returns the zero spec for t.
func NewFieldSpec(t FieldType) (FieldSpec, error) {
	switch t {
	case FieldText:
		return &TextSpec{}, nil
	case FieldEmail:
		return &EmailSpec{}, nil
	case FieldPhone:
		return &PhoneSpec{}, nil
	case FieldNumber:
		return &NumberSpec{}, nil
	case FieldDate:
		return &DateSpec{}, nil
	case FieldSelect:
		return &SelectSpec{}, nil
	case FieldCheckbox:
		return &CheckboxSpec{}, nil
	}
	return nil, fmt.Errorf("unknown field type %q", t)
}

// DecodeFieldSpec decodes raw into the concrete spec for t. Keys that do
// not belong to the type are rejected.
func DecodeFieldSpec(t FieldType, raw []byte) (FieldSpec, error) {
	spec, err := NewFieldSpec(t)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(spec); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", strings.ToLower(string(t)), err)
		}
	}
	// Specs are used by value from here on.
	switch s := spec.(type) {
	case *TextSpec:
		return *s, nil
	case *EmailSpec:
		return *s, nil
	case *PhoneSpec:
		return *s, nil
	case *NumberSpec:
		return *s, nil
	case *DateSpec:
		return *s, nil
	case *SelectSpec:
		return *s, nil
	case *CheckboxSpec:
		return *s, nil
	}
	return spec, nil
}

// ApplicationField is a custom form field requested from applicants.
type ApplicationField struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"not null;uniqueIndex:idx_application_fields_order,priority:1" json:"applicationId"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Label         string    `gorm:"size:200;not null" json:"label"`
	Type          FieldType `gorm:"type:varchar(20);not null" json:"type"`
	Required      bool      `gorm:"not null;default:false" json:"required"`
	Order         int       `gorm:"column:display_order;not null;uniqueIndex:idx_application_fields_order,priority:2" json:"order"`
	Config        RawConfig `gorm:"type:text;not null" json:"config"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (ApplicationField) TableName() string {
	return "application_fields"
}

// Spec decodes the stored config for the field's type.
func (f *ApplicationField) Spec() (FieldSpec, error) {
	return DecodeFieldSpec(f.Type, f.Config)
}

// SetSpec stores spec and its type on the field.
func (f *ApplicationField) SetSpec(spec FieldSpec) error {
	b, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	f.Type = spec.Type()
	f.Config = RawConfig(b)
	return nil
}
