package checkpayload

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/patchtrack/patchtrack/internal/model"
)

// CheckRequest is the POST body for a check. The patch and the acting user
// come from the URL and the authenticated account, never from the body.
type CheckRequest struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

func (c *CheckRequest) Bind(r *http.Request) error {
	if model.CheckSeverity(c.State) < 0 {
		return fmt.Errorf("unknown check state %q", c.State)
	}

	return nil
}

// CheckResponse is the response payload for the check data model.
type CheckResponse struct {
	*model.Check
}

func NewCheckResponse(check *model.Check) *CheckResponse {
	return &CheckResponse{Check: check}
}

func (rd *CheckResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func NewCheckListResponse(checks []*model.Check) []render.Renderer {
	list := []render.Renderer{}
	for _, check := range checks {
		list = append(list, NewCheckResponse(check))
	}

	return list
}
