package events

type Action string

const (
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionPublish      Action = "publish"
	ActionAttachModule Action = "attach_module"
	ActionDetachModule Action = "detach_module"
	ActionConfigModule Action = "update_module_config"
)

// Policy decides whether actor may perform action on event. It is consulted
// before every mutation with the stored record.
type Policy interface {
	Authorize(actor string, action Action, event *Event) error
}

// OpenPolicy allows every actor every action.
type OpenPolicy struct{}

func (OpenPolicy) Authorize(string, Action, *Event) error {
	return nil
}

// OwnerPolicy restricts mutations to the event's owner. Events owned by
// AnonymousOwner stay open to everyone.
type OwnerPolicy struct{}

func (OwnerPolicy) Authorize(actor string, _ Action, event *Event) error {
	if event.OwnerID == AnonymousOwner || event.OwnerID == actor {
		return nil
	}
	return ErrForbidden
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(actor string, action Action, event *Event) error

func (f PolicyFunc) Authorize(actor string, action Action, event *Event) error {
	return f(actor, action, event)
}
