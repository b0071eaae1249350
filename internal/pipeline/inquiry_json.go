package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// inquirySchema checks shape only. Blank values pass here and are reported
// by Validate as a ValidationError.
var inquirySchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"customer": {"type": "string", "maxLength": 200},
		"person":   {"type": "string", "maxLength": 200},
		"inquiry":  {"type": "string", "maxLength": 20000}
	},
	"additionalProperties": false
}`)

// MalformedInquiryError reports a JSON payload that does not match the inquiry shape.
type MalformedInquiryError struct {
	Problems []string
}

func (e *MalformedInquiryError) Error() string {
	return "malformed inquiry: " + strings.Join(e.Problems, "; ")
}

// DecodeInquiry parses a JSON inquiry and trims its fields. It does not call Validate.
func DecodeInquiry(data []byte) (Inquiry, error) {
	result, err := gojsonschema.Validate(inquirySchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Inquiry{}, &MalformedInquiryError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			problems[i] = desc.String()
		}
		return Inquiry{}, &MalformedInquiryError{Problems: problems}
	}

	var inq Inquiry
	if err = json.Unmarshal(data, &inq); err != nil {
		return Inquiry{}, fmt.Errorf("decode inquiry: %w", err)
	}
	return NewInquiry(inq.Customer, inq.Person, inq.Body), nil
}
