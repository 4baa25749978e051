package patchpayload

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/patchtrack/patchtrack/internal/model"
)

//--
// Request and Response payloads for the patches resource.
//--

// PatchRequest is the PATCH body for a patch. Only state, delegate and
// commit_ref are bindable; everything else on the model, the name included,
// is read-only mail metadata. The state can be given by id ("state") or by
// name ("state_name"), the latter being what the push-hook tooling sends.
type PatchRequest struct {
	State     *int64  `json:"state,omitempty"`
	StateName *string `json:"state_name,omitempty"`
	Delegate  *int64  `json:"delegate,omitempty"`
	CommitRef *string `json:"commit_ref,omitempty"`
}

func (p *PatchRequest) Bind(r *http.Request) error {
	if p.State == nil && p.StateName == nil &&
		p.Delegate == nil && p.CommitRef == nil {
		return errors.New("no updatable patch fields given")
	}
	if p.State != nil && p.StateName != nil {
		return errors.New("give either state or state_name, not both")
	}

	return nil
}

// PatchResponse is the response payload for the patch data model.
type PatchResponse struct {
	*model.Patch
}

func NewPatchResponse(patch *model.Patch) *PatchResponse {
	return &PatchResponse{Patch: patch}
}

func (rd *PatchResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func NewPatchListResponse(patches []*model.Patch) []render.Renderer {
	list := []render.Renderer{}
	for _, patch := range patches {
		list = append(list, NewPatchResponse(patch))
	}

	return list
}
