package protocol

// Client -> Server command names.
const (
	CmdCreateRoom        = "create_room"
	CmdJoinRoom          = "join_room"
	CmdStartGame         = "start_game"
	CmdCallNumber        = "call_number"
	CmdClaimWin          = "claim_win"
	CmdGenerateTickets   = "generate_tickets"
	CmdLeaveRoom         = "leave_room"
	CmdKickPlayer        = "kick_player"
	CmdChangeCallerMode  = "change_caller_mode"
	CmdChangeCaller      = "change_caller"
	CmdChangeMarkingMode = "change_marking_mode"
	CmdResetGame         = "reset_game"
)

type CreateRoomPayload struct {
	PlayerName string `json:"player_name"`
	CardCount  int    `json:"card_count"`
}

type JoinRoomPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	CardCount  int    `json:"card_count"`
}

type CallNumberPayload struct {
	Number int `json:"number"`
}

type GenerateTicketsPayload struct {
	CardCount     int `json:"card_count"`
	BoardsPerCard int `json:"boards_per_card"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"player_id"`
}

type ChangeCallerModePayload struct {
	Mode CallerMode `json:"mode"`
	// IntervalSec is only meaningful for CallerAuto; zero keeps the
	// server's current interval.
	IntervalSec int `json:"interval_sec,omitempty"`
}

type ChangeCallerPayload struct {
	PlayerID string `json:"player_id"`
}

type ChangeMarkingModePayload struct {
	Manual bool `json:"manual"`
}
