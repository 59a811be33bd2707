package reconciler

import (
	"slices"
	"time"

	"github.com/Vasu1712/chatsync/internal/models"
)

// ApplyTyping upserts userID's indicator.
func ApplyTyping(seq []models.TypingEntry, userID string, isTyping bool, now time.Time) []models.TypingEntry {
	out := slices.Clone(seq)
	entry := models.TypingEntry{UserID: userID, IsTyping: isTyping, LastEventAt: now}
	if i := slices.IndexFunc(out, func(e models.TypingEntry) bool { return e.UserID == userID }); i >= 0 {
		out[i] = entry
		return out
	}
	return append(out, entry)
}

func expired(e models.TypingEntry, now time.Time, expiry time.Duration) bool {
	return e.IsTyping && now.Sub(e.LastEventAt) >= expiry
}

// SweepTyping clears indicators that have not been refreshed within expiry.
// Entries are never removed.
func SweepTyping(seq []models.TypingEntry, now time.Time, expiry time.Duration) []models.TypingEntry {
	out := slices.Clone(seq)
	for i := range out {
		if expired(out[i], now, expiry) {
			out[i].IsTyping = false
		}
	}
	return out
}

// TypingExpired reports whether a sweep at now would change seq.
func TypingExpired(seq []models.TypingEntry, now time.Time, expiry time.Duration) bool {
	return slices.ContainsFunc(seq, func(e models.TypingEntry) bool { return expired(e, now, expiry) })
}

// TypingUsers lists the users currently shown as typing, in entry order.
func TypingUsers(seq []models.TypingEntry) []string {
	var ids []string
	for _, e := range seq {
		if e.IsTyping {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}
