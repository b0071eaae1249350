package pipeline

import (
	"fmt"
	"strings"
)

// Inquiry is one customer support request as submitted. Scoped to a single run.
type Inquiry struct {
	Customer string `json:"customer"`
	Person   string `json:"person"`
	Body     string `json:"inquiry"`
}

// NewInquiry trims surrounding whitespace from every field.
func NewInquiry(customer, person, body string) Inquiry {
	return Inquiry{
		Customer: strings.TrimSpace(customer),
		Person:   strings.TrimSpace(person),
		Body:     strings.TrimSpace(body),
	}
}

// ValidationError lists required fields that were left blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Validate requires a customer name and an inquiry body. The contact person is optional.
func (i Inquiry) Validate() error {
	var missing []string
	if strings.TrimSpace(i.Customer) == "" {
		missing = append(missing, "customer")
	}
	if strings.TrimSpace(i.Body) == "" {
		missing = append(missing, "inquiry")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (i Inquiry) resolutionValues() map[string]string {
	return map[string]string{
		"customer": i.Customer,
		"person":   i.Person,
		"inquiry":  i.Body,
	}
}

func (i Inquiry) reviewValues() map[string]string {
	return map[string]string{"customer": i.Customer}
}
