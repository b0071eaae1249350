package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInquiry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		inq     Inquiry
		missing []string
	}{
		{"complete", Inquiry{Customer: "Acme", Person: "Jo", Body: "help"}, nil},
		{"person optional", Inquiry{Customer: "Acme", Body: "help"}, nil},
		{"no customer", Inquiry{Person: "Jo", Body: "help"}, []string{"customer"}},
		{"blank body", Inquiry{Customer: "Acme", Body: "  \n\t"}, []string{"inquiry"}},
		{"nothing", Inquiry{}, []string{"customer", "inquiry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.inq.Validate()
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.missing, ve.Fields)
		})
	}
}

func TestNewInquiry_Trims(t *testing.T) {
	inq := NewInquiry("  Acme ", "\tJo", "  How?\n")
	assert.Equal(t, Inquiry{Customer: "Acme", Person: "Jo", Body: "How?"}, inq)
}

func TestDecodeInquiry(t *testing.T) {
	inq, err := DecodeInquiry([]byte(`{"customer":" Acme ","person":"Jo","inquiry":" How? "}`))
	require.NoError(t, err)
	assert.Equal(t, Inquiry{Customer: "Acme", Person: "Jo", Body: "How?"}, inq)

	inq, err = DecodeInquiry([]byte(`{"customer":"   "}`))
	require.NoError(t, err)
	assert.Error(t, inq.Validate())
}

func TestDecodeInquiry_Malformed(t *testing.T) {
	for _, payload := range []string{
		`{"customer": 42, "inquiry": "x"}`,
		`{"customer": "Acme", "inquiry": "x", "priority": "high"}`,
		`["Acme"]`,
		`{"customer":`,
	} {
		_, err := DecodeInquiry([]byte(payload))
		var mie *MalformedInquiryError
		assert.ErrorAs(t, err, &mie, payload)
	}
}
