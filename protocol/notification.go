package protocol

// Notification is a server reply variant. The numeric values are the
// wire tags and must never be reordered.
type Notification byte

const (
	NotifUnknownCommand Notification = iota
	NotifInvalidPayload

	NotifUserRegistred
	NotifUserAlreadyExist

	NotifUserConnected
	NotifUserIsAlreadyConnected
	NotifUserNotFound
	NotifUserPasswordIncorrect

	NotifReceiveContactInfo

	// notificationCount is one past the highest valid tag.
	notificationCount
)

// HasPayload reports whether the variant carries a length-prefixed
// payload on the wire. Payload presence is fixed per tag and shared by
// both ends; the framing itself does not describe it.
func (n Notification) HasPayload() bool {
	switch n {
	case NotifUserConnected, NotifReceiveContactInfo:
		return true

	default:
		return false
	}
}

func (n Notification) String() string {
	switch n {
	case NotifUnknownCommand:
		return "UnknownCommand"
	case NotifInvalidPayload:
		return "InvalidPayload"
	case NotifUserRegistred:
		return "UserRegistred"
	case NotifUserAlreadyExist:
		return "UserAlreadyExist"
	case NotifUserConnected:
		return "UserConnected"
	case NotifUserIsAlreadyConnected:
		return "UserIsAlreadyConnected"
	case NotifUserNotFound:
		return "UserNotFound"
	case NotifUserPasswordIncorrect:
		return "UserPasswordIncorrect"
	case NotifReceiveContactInfo:
		return "ReceiveContactInfo"
	}

	return "Invalid"
}

// NotificationFromByte maps a wire tag back to its variant.
func NotificationFromByte(value byte) (Notification, error) {
	if value >= byte(notificationCount) {
		return 0, ErrUnknownNotification
	}

	return Notification(value), nil
}
