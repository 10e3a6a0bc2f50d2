package notification

import (
	"context"
	"testing"

	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifierSend(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Send(context.Background(), shared.Notification{
		Recipient: "Meridian Events",
		Template:  "booking_confirmed",
		Variables: map[string]string{"booking_number": "BK-20250601-0001"},
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Meridian Events", fields["recipient"])
	assert.Equal(t, "booking_confirmed", fields["template"])
	assert.Equal(t, "BK-20250601-0001", fields["var_booking_number"])
}
