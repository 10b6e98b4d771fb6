package chat

// Listener receives a channel's events. Events for one channel are delivered
// one at a time, in the order they happened. A callback may read the channel
// or call SendMessage, but must not call Close or any Hub method.
type Listener interface {
	StateChanged(room string, state State)
	// MessagesChanged carries the room's full current message sequence.
	MessagesChanged(room string, messages []Message)
	Error(room string, err error)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnState    func(room string, state State)
	OnMessages func(room string, messages []Message)
	OnError    func(room string, err error)
}

var _ Listener = ListenerFuncs{}

func (l ListenerFuncs) StateChanged(room string, state State) {
	if l.OnState != nil {
		l.OnState(room, state)
	}
}

func (l ListenerFuncs) MessagesChanged(room string, messages []Message) {
	if l.OnMessages != nil {
		l.OnMessages(room, messages)
	}
}

func (l ListenerFuncs) Error(room string, err error) {
	if l.OnError != nil {
		l.OnError(room, err)
	}
}
