package reconciler

import (
	"slices"

	"github.com/Vasu1712/chatsync/internal/models"
)

// ApplyPresence upserts one user's presence.
func ApplyPresence(seq []models.Presence, p models.Presence) []models.Presence {
	out := slices.Clone(seq)
	if i := slices.IndexFunc(out, func(x models.Presence) bool { return x.UserID == p.UserID }); i >= 0 {
		if p.LastSeen.IsZero() && !p.Online {
			p.LastSeen = out[i].LastSeen
		}
		out[i] = p
		return out
	}
	return append(out, p)
}

// ReplaceOnline applies an online_users snapshot: listed users are online,
// everyone else known to the cache is offline.
func ReplaceOnline(seq []models.Presence, userIDs []string) []models.Presence {
	out := slices.Clone(seq)
	for i := range out {
		out[i].Online = slices.Contains(userIDs, out[i].UserID)
	}
	for _, id := range userIDs {
		if !slices.ContainsFunc(out, func(p models.Presence) bool { return p.UserID == id }) {
			out = append(out, models.Presence{UserID: id, Online: true})
		}
	}
	return out
}

func OnlineUserIDs(seq []models.Presence) []string {
	var ids []string
	for _, p := range seq {
		if p.Online {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}
