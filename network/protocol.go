package network

// Message IDs for every intent the client can send and every event the server
// can push. Responses to an intent are sent back under the intent's own ID.
const (
	MsgTypeHeartbeat = 1

	// Client intents
	MsgTypeCreateRoom  = 101
	MsgTypeJoinRoom    = 102
	MsgTypeLeaveRoom   = 103
	MsgTypeStartGame   = 104
	MsgTypeToggleLever = 201
	MsgTypeFinalAction = 202

	// Server events
	MsgTypePlayerJoined    = 301
	MsgTypePlayerLeft      = 302
	MsgTypeRoleAssigned    = 303
	MsgTypeGameStarted     = 304
	MsgTypeGameStateUpdate = 305
)
