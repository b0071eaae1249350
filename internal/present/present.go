// Package present turns a run outcome into the single view shown to the user.
package present

import (
	"errors"
	"net/http"

	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
)

// Kind identifies which of the four mutually exclusive outcomes a view shows.
type Kind string

const (
	KindSuccess      Kind = "success"
	KindWarning      Kind = "warning"
	KindMissingField Kind = "missing_field"
	KindFailure      Kind = "failure"
)

const (
	ResponseHeading = "Inquiry Resolution Response"
	WarningMessage  = "Please provide both the Customer Name and Inquiry."
)

// View is exactly one outcome. Body holds the final text verbatim on success
// and a message otherwise.
type View struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	RunID string `json:"run_id,omitempty"`
}

// Render picks the view for a run. A non-nil err always wins over resp.
func Render(resp *pipeline.FinalResponse, err error) View {
	if err != nil {
		return renderError(err)
	}
	if resp == nil {
		return View{Kind: KindFailure, Body: "Error processing the inquiry: no response"}
	}
	return View{Kind: KindSuccess, Title: ResponseHeading, Body: resp.Text, RunID: resp.RunID}
}

func renderError(err error) View {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		return View{Kind: KindWarning, Body: WarningMessage}
	}
	var mfe *pipeline.MissingFieldError
	if errors.As(err, &mfe) {
		return View{Kind: KindMissingField, Body: "Task output missing: " + mfe.Error()}
	}
	return View{Kind: KindFailure, Body: "Error processing the inquiry: " + err.Error()}
}

// Status maps a view to the HTTP status the JSON API answers with.
func (v View) Status() int {
	switch v.Kind {
	case KindSuccess:
		return http.StatusOK
	case KindWarning:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
