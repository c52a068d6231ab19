package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pms-assistant/internal/models"
)

var baseTime = time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)

func makeHistory(n int) []*models.Message {
	msgs := make([]*models.Message, n)
	for i := range msgs {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs[i] = &models.Message{
			ID:        fmt.Sprintf("m%02d", i),
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
		}
	}
	return msgs
}

func ids(msgs []*models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAssembleContext_ShortHistoryUnchanged(t *testing.T) {
	for _, n := range []int{0, 1, 2, 9, 10} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			history := makeHistory(n)
			got := AssembleContext(history, 10)
			assert.Equal(t, ids(history), ids(got))
		})
	}
}

func TestAssembleContext_TwoMessages(t *testing.T) {
	history := makeHistory(2)
	got := AssembleContext(history, 10)
	require.Len(t, got, 2)
	assert.Same(t, history[0], got[0])
	assert.Same(t, history[1], got[1])
}

func TestAssembleContext_FifteenMessages(t *testing.T) {
	history := makeHistory(15)
	got := AssembleContext(history, 10)

	want := append(ids(history[0:3]), ids(history[5:15])...)
	assert.Equal(t, want, ids(got))
	assert.Len(t, got, 13)
}

func TestAssembleContext_OverlapResolvedByIdentity(t *testing.T) {
	// 11 messages: anchors 0..2 and recent 1..10 overlap on 1 and 2.
	history := makeHistory(11)
	got := AssembleContext(history, 10)

	assert.Equal(t, ids(history), ids(got))
}

func TestAssembleContext_Properties(t *testing.T) {
	for _, tc := range []struct{ n, limit int }{{11, 10}, {12, 10}, {25, 10}, {40, 5}, {7, 2}, {4, 1}} {
		t.Run(fmt.Sprintf("%d/%d", tc.n, tc.limit), func(t *testing.T) {
			history := makeHistory(tc.n)
			got := AssembleContext(history, tc.limit)

			seen := map[string]bool{}
			for i, m := range got {
				assert.False(t, seen[m.ID], "duplicate %s", m.ID)
				seen[m.ID] = true
				if i > 0 {
					assert.False(t, m.CreatedAt.Before(got[i-1].CreatedAt), "not sorted at %d", i)
				}
			}
			for _, m := range history[:min(3, tc.n)] {
				assert.True(t, seen[m.ID], "missing anchor %s", m.ID)
			}
			for _, m := range history[tc.n-tc.limit:] {
				assert.True(t, seen[m.ID], "missing recent %s", m.ID)
			}
			assert.Len(t, got, min(3, tc.n-tc.limit)+tc.limit)
		})
	}
}

func TestAssembleContext_Idempotent(t *testing.T) {
	history := makeHistory(23)
	first := AssembleContext(history, 10)
	second := AssembleContext(history, 10)
	assert.Equal(t, first, second)
}

func TestAssembleContext_EqualTimestampsKeepInputOrder(t *testing.T) {
	history := makeHistory(14)
	for _, m := range history {
		m.CreatedAt = baseTime
	}

	got := AssembleContext(history, 10)
	want := append(ids(history[0:3]), ids(history[4:14])...)
	assert.Equal(t, want, ids(got))
}

func TestAssembleContext_DoesNotMutateInput(t *testing.T) {
	history := makeHistory(15)
	before := ids(history)
	AssembleContext(history, 10)
	assert.Equal(t, before, ids(history))
}

func TestAssembleContext_NonPositiveLimitUsesDefault(t *testing.T) {
	history := makeHistory(12)
	assert.Equal(t, ids(AssembleContext(history, DefaultRecentLimit)), ids(AssembleContext(history, 0)))
}
