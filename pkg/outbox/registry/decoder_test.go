package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestNotificationDecoders(t *testing.T) {
	reg := NewNotificationDecoders()

	out, err := reg.Decode(enums.EventNotificationRequested, 1, json.RawMessage(`{"kind":"order_shipped","to":"a@b.co","order_number":"ORD-000001","total":"12.5"}`))
	require.NoError(t, err)
	event, ok := out.(*payloads.NotificationRequestedEvent)
	require.True(t, ok)
	require.Equal(t, enums.NotificationOrderShipped, event.Kind)
	require.Equal(t, "12.5", event.Total.String())
}

func TestNotificationDecodersRejectUnknownKind(t *testing.T) {
	reg := NewNotificationDecoders()
	_, err := reg.Decode(enums.EventNotificationRequested, 1, json.RawMessage(`{"kind":"sms"}`))
	require.Error(t, err)
}

func TestDecodeUnregisteredVersion(t *testing.T) {
	reg := NewNotificationDecoders()
	_, err := reg.Decode(enums.EventNotificationRequested, 2, json.RawMessage(`{}`))
	require.ErrorContains(t, err, "decoder not registered")
}
