// Package reconciler merges live events and fetch results into cached lists.
//
// The merge functions are pure: they never modify their input slice or the
// elements it holds, and always return a fresh slice. The Reconciler type
// routes decoded events to cache writes built from them.
package reconciler

import (
	"slices"

	"github.com/Vasu1712/chatsync/internal/models"
)

func indexOfMessage(seq []models.Message, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(seq, func(m models.Message) bool { return m.ID == id })
}

// unconfirmed reports whether m is still known only by its temporary id.
func unconfirmed(m models.Message) bool {
	return m.TempID != "" && m.ID == m.TempID && m.Status != models.StatusSent
}

// pendingTwin finds the optimistic entry msg confirms: the one carrying the
// echoed temp id, or failing an echo, the first pending entry with the same
// sender and payload.
func pendingTwin(seq []models.Message, msg models.Message) int {
	if i := echoedTwin(seq, msg); i >= 0 {
		return i
	}
	return slices.IndexFunc(seq, func(m models.Message) bool {
		return unconfirmed(m) && m.Pending() && m.SamePayload(msg)
	})
}

func echoedTwin(seq []models.Message, msg models.Message) int {
	if msg.TempID == "" {
		return -1
	}
	return slices.IndexFunc(seq, func(m models.Message) bool {
		return unconfirmed(m) && m.TempID == msg.TempID
	})
}

func confirm(pending, server models.Message) models.Message {
	out := server
	out.TempID = pending.TempID
	out.Status = models.StatusSent
	if out.ConversationID == "" {
		out.ConversationID = pending.ConversationID
	}
	out.ReadBy = unionIDs(pending.ReadBy, server.ReadBy)
	return out
}

func unionIDs(a, b []string) []string {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ApplyMessage merges a broadcast message. A message whose id is already
// cached is a no-op, apart from removing the optimistic entry its client id
// points at. A message
// that confirms an optimistic entry replaces it at the same index; anything
// else is appended.
func ApplyMessage(seq []models.Message, msg models.Message) []models.Message {
	out := slices.Clone(seq)
	if msg.Status == "" {
		msg.Status = models.StatusSent
	}
	if i := indexOfMessage(out, msg.ID); i >= 0 {
		if j := echoedTwin(out, msg); j >= 0 && j != i {
			out = slices.Delete(out, j, j+1)
		}
		return out
	}
	if j := pendingTwin(out, msg); j >= 0 {
		out[j] = confirm(out[j], msg)
		return out
	}
	msg.ReadBy = slices.Clone(msg.ReadBy)
	return append(out, msg)
}

// AddOptimistic appends a locally created message in the pending state. Its
// id is its temp id until confirmed.
func AddOptimistic(seq []models.Message, msg models.Message) []models.Message {
	out := slices.Clone(seq)
	if msg.ID == "" {
		msg.ID = msg.TempID
	}
	if indexOfMessage(out, msg.ID) >= 0 {
		return out
	}
	msg.Status = models.StatusPending
	return append(out, msg)
}

// ConfirmSend applies the backend's response to a send. If the broadcast got
// there first the temp entry is dropped, so the confirmed copy wins.
func ConfirmSend(seq []models.Message, tempID string, confirmed models.Message) []models.Message {
	out := slices.Clone(seq)
	t := indexOfMessage(out, tempID)
	if indexOfMessage(out, confirmed.ID) >= 0 {
		if t >= 0 && unconfirmed(out[t]) {
			out = slices.Delete(out, t, t+1)
		}
		return out
	}
	if t < 0 {
		confirmed.TempID = tempID
		confirmed.Status = models.StatusSent
		return append(out, confirmed)
	}
	out[t] = confirm(out[t], confirmed)
	return out
}

// FailSend marks a pending entry failed. It stays in place so the caller can
// offer a retry.
func FailSend(seq []models.Message, tempID string) []models.Message {
	out := slices.Clone(seq)
	if t := indexOfMessage(out, tempID); t >= 0 && unconfirmed(out[t]) {
		out[t].Status = models.StatusFailed
	}
	return out
}

// ApplyReadReceipt records that userID has read messageID.
func ApplyReadReceipt(seq []models.Message, messageID, userID string) []models.Message {
	out := slices.Clone(seq)
	i := indexOfMessage(out, messageID)
	if i < 0 || slices.Contains(out[i].ReadBy, userID) {
		return out
	}
	readBy := make([]string, 0, len(out[i].ReadBy)+1)
	readBy = append(readBy, out[i].ReadBy...)
	out[i].ReadBy = append(readBy, userID)
	return out
}

// MergeFetched replaces the cached list with a fetched page. The fetched order
// is authoritative; unconfirmed local entries are kept at the tail and read
// receipts seen live are preserved.
func MergeFetched(existing, fetched []models.Message) []models.Message {
	out := make([]models.Message, 0, len(fetched)+len(existing))
	for _, m := range fetched {
		if indexOfMessage(out, m.ID) >= 0 {
			continue
		}
		if m.Status == "" {
			m.Status = models.StatusSent
		}
		if i := indexOfMessage(existing, m.ID); i >= 0 {
			m.ReadBy = unionIDs(m.ReadBy, existing[i].ReadBy)
			if m.TempID == "" {
				m.TempID = existing[i].TempID
			}
		} else {
			m.ReadBy = slices.Clone(m.ReadBy)
		}
		out = append(out, m)
	}
	for _, m := range existing {
		if unconfirmed(m) && indexOfMessage(out, m.ID) < 0 && confirmedTwin(out, m.TempID) < 0 {
			out = append(out, m)
		}
	}
	return out
}

// confirmedTwin finds the server copy that echoes tempID.
func confirmedTwin(seq []models.Message, tempID string) int {
	return slices.IndexFunc(seq, func(m models.Message) bool {
		return m.TempID == tempID && !unconfirmed(m)
	})
}

// PendingCount is the number of sends not yet confirmed.
func PendingCount(seq []models.Message) int {
	n := 0
	for _, m := range seq {
		if m.Pending() {
			n++
		}
	}
	return n
}
