package models

// Action is an operation guarded by the authorization gate.
type Action string

const (
	ActionRequest Action = "request"
	ActionDecide  Action = "decide"
	ActionView    Action = "view"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionRequest, ActionDecide, ActionView:
		return true
	}
	return false
}
