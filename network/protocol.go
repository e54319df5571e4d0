package network

// Inbound message types.
const (
	MsgTypeHeartbeat      = 1
	MsgTypeIdentify       = 2
	MsgTypeJoinDuel       = 101
	MsgTypeUpdateCode     = 102
	MsgTypeUpdateLanguage = 103
	MsgTypeSubmitCode     = 104
	MsgTypeLeaveDuel      = 105
	MsgTypeJoinHall       = 201
	MsgTypeKickUser       = 202
	MsgTypeStartRound     = 203
	MsgTypeSignal         = 301
	MsgTypeRequestStreams = 302
)

// Outbound message types.
const (
	MsgTypeAssignedRole    = 401
	MsgTypeRoomSnapshot    = 402
	MsgTypeUserJoined      = 403
	MsgTypeUserLeft        = 404
	MsgTypeCodeUpdated     = 405
	MsgTypeLanguageUpdated = 406
	MsgTypeProblemAssigned = 407
	MsgTypeStatusChanged   = 408
	MsgTypeSolved          = 409
	MsgTypeDuelEnded       = 410
	MsgTypeRatingsUpdated  = 411
	MsgTypeJudgeResult     = 412
	MsgTypeHallSnapshot    = 501
	MsgTypeUserJoinedHall  = 502
	MsgTypeUserLeftHall    = 503
	MsgTypeDuelInvitation  = 504
	MsgTypeNewDuel         = 505
	MsgTypeKicked          = 506
	MsgTypeBye             = 507
	MsgTypeError           = 601
)
