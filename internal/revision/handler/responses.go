package handler

import (
	"time"

	"taxcase/internal/revision/models"
)

// RevisionResponse is the JSON shape of a revision.
type RevisionResponse struct {
	ID          string     `json:"id"`
	TargetKind  string     `json:"target_kind"`
	TargetID    string     `json:"target_id"`
	RequesterID string     `json:"requester_id"`
	State       string     `json:"state"`
	Reason      string     `json:"reason,omitempty"`
	DeciderID   string     `json:"decider_id,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

type RevisionListResponse struct {
	Revisions []RevisionResponse `json:"revisions"`
	Count     int                `json:"count"`
}

func FromRevision(r *models.Revision) RevisionResponse {
	resp := RevisionResponse{
		ID:          r.ID.String(),
		TargetKind:  string(r.Target.Kind),
		TargetID:    r.Target.ID,
		RequesterID: r.RequesterID.String(),
		State:       string(r.State),
		Reason:      r.Reason,
		RequestedAt: r.RequestedAt.UTC(),
	}
	if r.DeciderID != nil {
		resp.DeciderID = r.DeciderID.String()
	}
	if r.DecidedAt != nil {
		t := r.DecidedAt.UTC()
		resp.DecidedAt = &t
	}
	return resp
}

func FromRevisions(rs []*models.Revision) RevisionListResponse {
	out := RevisionListResponse{Revisions: make([]RevisionResponse, 0, len(rs))}
	for _, r := range rs {
		out.Revisions = append(out.Revisions, FromRevision(r))
	}
	out.Count = len(out.Revisions)
	return out
}
