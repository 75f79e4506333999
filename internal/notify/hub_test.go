// SPDX-License-Identifier: MIT

package notify

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seedlab/seedlab/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestHubDeliversPerUser(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := NewHub()
	defer h.Close()

	a := h.Subscribe(1)
	b := h.Subscribe(2)
	assert.Equal(t, 1, h.Subscribers(1))

	assert.Equal(t, 1, h.Publish(Notificacion{ID: "n1", UsuarioID: 1}))
	assert.Equal(t, "n1", (<-a.C()).ID)
	assert.Empty(t, b.C())

	a.Close()
	a.Close()
	assert.Zero(t, h.Subscribers(1))
	assert.Zero(t, h.Publish(Notificacion{ID: "n2", UsuarioID: 1}))
	_, open := <-a.C()
	assert.False(t, open)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()
	sub := h.Subscribe(5)

	for i := 0; i < SubscriberBuffer; i++ {
		require.Equal(t, 1, h.Publish(Notificacion{UsuarioID: 5}))
	}
	before := counterValue(t, metrics.BusDroppedTotal.WithLabelValues("notifications", "full"))
	assert.Zero(t, h.Publish(Notificacion{UsuarioID: 5}))
	after := counterValue(t, metrics.BusDroppedTotal.WithLabelValues("notifications", "full"))
	assert.Equal(t, before+1, after)
	assert.Len(t, sub.C(), SubscriberBuffer)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub()
	s1 := h.Subscribe(1)
	s2 := h.Subscribe(1)
	h.Close()

	_, open := <-s1.C()
	assert.False(t, open)
	_, open = <-s2.C()
	assert.False(t, open)
	assert.Nil(t, h.Subscribe(1))
	s1.Close()
}
