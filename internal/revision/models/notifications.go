package models

import "time"

// NotificationType names a lifecycle notification.
type NotificationType string

const (
	NotificationRevisionRequested NotificationType = "revision_requested"
	NotificationRevisionApproved  NotificationType = "revision_approved"
)

// Notification is an immutable lifecycle message handed to notification sinks.
type Notification interface {
	Type() NotificationType
	Snapshot() Revision
	OccurredAt() time.Time
}

// RevisionRequested is published after a revision is created.
type RevisionRequested struct {
	Revision Revision
	Target   RevisableRef
	At       time.Time
}

func (e RevisionRequested) Type() NotificationType { return NotificationRevisionRequested }
func (e RevisionRequested) Snapshot() Revision     { return e.Revision }
func (e RevisionRequested) OccurredAt() time.Time  { return e.At }

// RevisionApproved is published after a revision is approved. Rejections
// have no notification.
type RevisionApproved struct {
	Revision Revision
	At       time.Time
}

func (e RevisionApproved) Type() NotificationType { return NotificationRevisionApproved }
func (e RevisionApproved) Snapshot() Revision     { return e.Revision }
func (e RevisionApproved) OccurredAt() time.Time  { return e.At }

// NewRevisionRequested snapshots r so later mutation cannot leak into the message.
func NewRevisionRequested(r *Revision, at time.Time) RevisionRequested {
	snap := *r.Clone()
	return RevisionRequested{Revision: snap, Target: snap.Target, At: at}
}

// NewRevisionApproved snapshots r so later mutation cannot leak into the message.
func NewRevisionApproved(r *Revision, at time.Time) RevisionApproved {
	return RevisionApproved{Revision: *r.Clone(), At: at}
}
