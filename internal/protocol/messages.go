package protocol

import "time"

// Wire message type tags. The set is closed: unknown tags are answered with a
// generic error and the connection stays open.
const (
	TypeLogin          = "login"
	TypeLoginSuccess   = "login_success"
	TypeLoginFailed    = "login_failed"
	TypeRegister       = "register"
	TypeRegisterOK     = "register_success"
	TypeRegisterFailed = "register_failed"

	TypeGetOnlineUsers = "get_online_users"
	TypeOnlineUsers    = "online_users"
	TypeUserOnline     = "user_online"
	TypeUserOffline    = "user_offline"

	TypeInvitePlayer   = "invite_player"
	TypeInviteReceived = "invite_received"
	TypeInviteSent     = "invite_sent"
	TypeInviteFailed   = "invite_failed"
	TypeAcceptInvite   = "accept_invite"
	TypeRejectInvite   = "reject_invite"
	TypeInviteRejected = "invite_rejected"
	TypeInviteRejectOK = "invite_rejected_success"

	TypeGameStarted  = "game_started"
	TypeMakeMove     = "make_move"
	TypeMoveMade     = "move_made"
	TypeInvalidMove  = "invalid_move"
	TypeOfferDraw    = "offer_draw"
	TypeDrawOffered  = "draw_offered"
	TypeDrawSent     = "draw_offer_sent"
	TypeRespondDraw  = "respond_draw"
	TypeDrawAccepted = "draw_accepted"
	TypeDrawRejected = "draw_rejected"
	TypeResignGame   = "resign_game"
	TypeGameEnded    = "game_ended"

	TypeWelcome        = "welcome"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeTimeoutWarning = "timeout_warning"
	TypeError          = "error"
)

// Game end reasons carried by GameEnded.
const (
	EndReasonCheckmate   = "checkmate"
	EndReasonDraw        = "draw"
	EndReasonResignation = "resignation"
	EndReasonDisconnect  = "opponent_disconnected"
)

// Client → server messages.

// Login authenticates a registered user.
type Login struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new user account.
type Register struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// GetOnlineUsers asks for the current authenticated roster.
type GetOnlineUsers struct {
	Type string `json:"type"`
}

// InvitePlayer proposes a game to another online user.
type InvitePlayer struct {
	Type           string `json:"type"`
	TargetUsername string `json:"targetUsername"`
}

// AcceptInvite accepts a pending invite by id.
type AcceptInvite struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
}

// RejectInvite declines a pending invite by id.
type RejectInvite struct {
	Type     string `json:"type"`
	InviteID string `json:"inviteId"`
}

// MakeMove submits a move in the caller's current game.
type MakeMove struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// OfferDraw proposes a draw to the opponent.
type OfferDraw struct {
	Type string `json:"type"`
}

// RespondDraw answers a pending draw offer.
type RespondDraw struct {
	Type   string `json:"type"`
	Accept bool   `json:"accept"`
}

// ResignGame forfeits the caller's current game.
type ResignGame struct {
	Type string `json:"type"`
}

// Ping is a liveness probe; either side may send it.
type Ping struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"clientId,omitempty"`
}

// Server → client messages.

// Welcome is sent once on connect and carries the assigned client id.
type Welcome struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Message  string `json:"message,omitempty"`
}

// LoginSuccess confirms authentication and carries the current roster.
type LoginSuccess struct {
	Type        string   `json:"type"`
	Username    string   `json:"username"`
	OnlineUsers []string `json:"onlineUsers"`
}

// LoginFailed reports an authentication failure.
type LoginFailed struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RegisterResult reports the outcome of a registration attempt; Type is
// register_success or register_failed.
type RegisterResult struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OnlineUsers carries the authenticated roster.
type OnlineUsers struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// UserPresence announces a user coming online or going offline; Type is
// user_online or user_offline.
type UserPresence struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// InviteReceived notifies the target of a new invite.
type InviteReceived struct {
	Type       string    `json:"type"`
	InviteID   string    `json:"inviteId"`
	FromPlayer string    `json:"fromPlayer"`
	Timestamp  time.Time `json:"timestamp"`
}

// InviteSent confirms an invite was delivered.
type InviteSent struct {
	Type         string `json:"type"`
	InviteID     string `json:"inviteId"`
	TargetPlayer string `json:"targetPlayer"`
}

// InviteFailed reports why an invite could not be sent or accepted.
type InviteFailed struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InviteRejected notifies the inviter that the invite was declined.
type InviteRejected struct {
	Type     string `json:"type"`
	ByPlayer string `json:"byPlayer"`
}

// InviteRejectOK confirms the rejection to the rejecting player.
type InviteRejectOK struct {
	Type string `json:"type"`
}

// GameStarted announces a new game to both players.
type GameStarted struct {
	Type        string `json:"type"`
	GameID      string `json:"gameId"`
	WhitePlayer string `json:"whitePlayer"`
	BlackPlayer string `json:"blackPlayer"`
	Board       string `json:"board"`
	CurrentTurn string `json:"currentTurn"`
}

// MoveMade broadcasts an applied move to both players.
type MoveMade struct {
	Type        string `json:"type"`
	From        string `json:"from"`
	To          string `json:"to"`
	Player      string `json:"player"`
	Promotion   string `json:"promotion,omitempty"`
	GameState   string `json:"gameState"`
	Board       string `json:"board"`
	CurrentTurn string `json:"currentTurn"`
	IsCheck     bool   `json:"isCheck"`
	IsCheckmate bool   `json:"isCheckmate"`
	IsDraw      bool   `json:"isDraw"`
}

// InvalidMove reports a rejected move to the mover only.
type InvalidMove struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DrawOffered notifies the opponent of a draw offer.
type DrawOffered struct {
	Type       string `json:"type"`
	FromPlayer string `json:"fromPlayer"`
}

// DrawSent confirms the draw offer was delivered.
type DrawSent struct {
	Type string `json:"type"`
}

// DrawResponse announces the outcome of a draw offer; Type is draw_accepted
// or draw_rejected.
type DrawResponse struct {
	Type     string `json:"type"`
	ByPlayer string `json:"byPlayer"`
}

// GameEnded announces the end of a game to both players.
type GameEnded struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"clientId,omitempty"`
}

// TimeoutWarning is sent when the idle read timeout elapses; the connection
// stays open.
type TimeoutWarning struct {
	Type string `json:"type"`
}

// Error is the generic failure reply for protocol-level problems.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds a generic error message.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// NewPong builds a pong reply for the given client.
func NewPong(clientID string) Pong {
	return Pong{Type: TypePong, Timestamp: time.Now().UTC(), ClientID: clientID}
}
