package handler

import (
	"strings"
	"unicode/utf8"

	"taxcase/internal/revision/models"
	dErrors "taxcase/pkg/domain-errors"
)

const maxReasonBytes = 4096

// CreateRevisionRequest is the body of POST /revisions.
type CreateRevisionRequest struct {
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`

	parsedTarget models.RevisableRef
}

// Validate implements httputil.Validatable.
func (r *CreateRevisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	// Size check before any parsing
	if len(r.Reason) > maxReasonBytes || utf8.RuneCountInString(r.Reason) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 1000 characters")
	}
	if strings.TrimSpace(r.TargetKind) == "" {
		return dErrors.New(dErrors.CodeValidation, "target_kind is required")
	}
	target, err := models.ParseRevisableRef(r.TargetKind, r.TargetID)
	if err != nil {
		return err
	}
	r.parsedTarget = target
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

func (r *CreateRevisionRequest) Target() models.RevisableRef {
	return r.parsedTarget
}
