package stream

import "vibeshell/internal/types"

var allowedTransitions = map[types.ConnectionStatus]map[types.ConnectionStatus]bool{
	types.ConnectionDisconnected: {
		types.ConnectionReconnecting: true,
	},
	types.ConnectionReconnecting: {
		types.ConnectionDisconnected: true,
		types.ConnectionConnected:    true,
	},
	types.ConnectionConnected: {
		types.ConnectionDisconnected: true,
		types.ConnectionReconnecting: true,
	},
}

func canTransition(from, to types.ConnectionStatus) bool {
	return allowedTransitions[from][to]
}
