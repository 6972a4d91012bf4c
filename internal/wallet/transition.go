package wallet

// CanTransition reports whether the connection state machine allows moving
// from one status to another. Disconnected is reachable from every status;
// provider events may move Disconnected or Reconnecting straight to
// Connected.
func CanTransition(from, to Status) bool {
	if from == to || to == StatusDisconnected {
		return true
	}

	switch from {
	case StatusDisconnected:
		return to == StatusConnecting || to == StatusReconnecting || to == StatusConnected
	case StatusConnecting:
		return to == StatusConnected
	case StatusReconnecting:
		return to == StatusConnecting || to == StatusConnected
	default:
		return false
	}
}
