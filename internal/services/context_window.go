package services

import (
	"slices"

	"pms-assistant/internal/models"
)

// DefaultRecentLimit is the number of trailing messages kept in a context window.
const DefaultRecentLimit = 10

// anchorCount is the number of leading messages always kept once history
// outgrows the recent window.
const anchorCount = 3

// AssembleContext selects the messages sent to the model from a session's
// full history, which must already be in conversation order.
//
// Short histories are returned unchanged. Longer ones keep the first few
// messages plus the last recentLimit, de-duplicated by message ID and sorted
// by creation time. Equal timestamps keep their original relative order.
func AssembleContext(history []*models.Message, recentLimit int) []*models.Message {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	if len(history) <= recentLimit {
		return slices.Clone(history)
	}

	anchors := history[:min(anchorCount, len(history))]
	recent := history[len(history)-recentLimit:]

	type indexed struct {
		msg *models.Message
		pos int
	}

	seen := make(map[string]struct{}, len(anchors)+len(recent))
	window := make([]indexed, 0, len(anchors)+len(recent))

	add := func(msgs []*models.Message, offset int) {
		for i, m := range msgs {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			window = append(window, indexed{msg: m, pos: offset + i})
		}
	}
	add(anchors, 0)
	add(recent, len(history)-recentLimit)

	slices.SortStableFunc(window, func(a, b indexed) int {
		if c := a.msg.CreatedAt.Compare(b.msg.CreatedAt); c != 0 {
			return c
		}
		return a.pos - b.pos
	})

	out := make([]*models.Message, len(window))
	for i, w := range window {
		out[i] = w.msg
	}
	return out
}
