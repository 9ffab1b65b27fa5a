package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Vote(true)
	m.Vote(true)
	m.Vote(false)
	m.RewardMinted("gold")
	m.Rejection("vote", "DUPLICATE_VOTE")
	m.EventsPublished(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.votes.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rewardsMinted.WithLabelValues("gold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("vote", "DUPLICATE_VOTE")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsPublished))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ProjectCreated()
		m.Contribution()
		m.Vote(true)
		m.Release()
		m.Refund()
		m.RewardMinted("bronze")
		m.Rejection("refund", "REFUND_UNAVAILABLE")
		m.EventsPublished(1)
	})
}
