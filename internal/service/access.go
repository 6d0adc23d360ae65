package service

import "context"

// BanChecker reports whether a user is on the ban list.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// AccessGate answers the two authorization questions asked by uploads, commands and deliveries.
type AccessGate struct {
	adminID int64
	bans    BanChecker
}

// NewAccessGate returns a gate for a single administrator.
func NewAccessGate(adminID int64, bans BanChecker) *AccessGate {
	return &AccessGate{adminID: adminID, bans: bans}
}

// IsAdmin reports whether userID is the configured administrator.
func (g *AccessGate) IsAdmin(userID int64) bool {
	return g.adminID != 0 && userID == g.adminID
}

// IsBanned reports whether userID is banned.
func (g *AccessGate) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return g.bans.IsBanned(ctx, userID)
}
