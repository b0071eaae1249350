package present

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		resp     *pipeline.FinalResponse
		err      error
		kind     Kind
		body     string
		status   int
		hasTitle bool
	}{
		{
			name:     "success keeps text verbatim",
			resp:     &pipeline.FinalResponse{RunID: "r1", Text: "  # Answer\n\n```go\nx := 1\n```\n"},
			kind:     KindSuccess,
			body:     "  # Answer\n\n```go\nx := 1\n```\n",
			status:   http.StatusOK,
			hasTitle: true,
		},
		{
			name:   "validation",
			err:    &pipeline.ValidationError{Fields: []string{"customer"}},
			kind:   KindWarning,
			body:   WarningMessage,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "missing field",
			err:    &pipeline.MissingFieldError{Stage: pipeline.StageQualityReview, Field: "choices"},
			kind:   KindMissingField,
			body:   `Task output missing: quality_review: missing output field "choices"`,
			status: http.StatusBadGateway,
		},
		{
			name:   "generation",
			err:    &pipeline.GenerationError{Stage: pipeline.StageResolution, Err: errors.New("quota")},
			kind:   KindFailure,
			body:   "Error processing the inquiry: resolution generation: quota",
			status: http.StatusBadGateway,
		},
		{
			name:   "wrapped missing field",
			err:    fmt.Errorf("run: %w", &pipeline.MissingFieldError{Stage: pipeline.StageResolution, Field: "text"}),
			kind:   KindMissingField,
			body:   `Task output missing: resolution: missing output field "text"`,
			status: http.StatusBadGateway,
		},
		{
			name:   "context cancelled",
			err:    context.Canceled,
			kind:   KindFailure,
			body:   "Error processing the inquiry: context canceled",
			status: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Render(tt.resp, tt.err)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.body, v.Body)
			assert.Equal(t, tt.status, v.Status())
			if tt.hasTitle {
				assert.Equal(t, ResponseHeading, v.Title)
			} else {
				assert.Empty(t, v.Title)
			}
		})
	}
}

func TestRender_ErrorWinsOverResponse(t *testing.T) {
	v := Render(&pipeline.FinalResponse{Text: "stale"}, errors.New("boom"))
	assert.Equal(t, KindFailure, v.Kind)
	assert.NotContains(t, v.Body, "stale")
}
