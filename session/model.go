package session

// Session is the server-side record backing one refresh-token lineage.
// A user holds one Session per device/agent; rotation rewrites RefreshHash
// in place and leaves everything else untouched.
type Session struct {
	SessionID string
	UserID    string
	Email     string
	Role      string

	RefreshHash [32]byte
	Remembered  bool

	CreatedAt int64
	ExpiresAt int64
}
