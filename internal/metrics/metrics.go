package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pledge"

// Metrics 托管业务指标，nil 接收者上的方法不做任何事
type Metrics struct {
	projectsCreated prometheus.Counter
	contributions   prometheus.Counter
	votes           *prometheus.CounterVec
	releases        prometheus.Counter
	refunds         prometheus.Counter
	rewardsMinted   *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	eventsPublished prometheus.Counter
	disbursements   *prometheus.CounterVec
}

// New 在给定注册表上创建并注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		projectsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_created_total",
			Help:      "Number of projects created.",
		}),
		contributions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contributions_total",
			Help:      "Number of accepted contributions.",
		}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestone_votes_total",
			Help:      "Number of milestone votes by direction.",
		}, []string{"approve"}),
		releases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestone_releases_total",
			Help:      "Number of milestones whose funds were released.",
		}),
		refunds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Number of refunds paid out.",
		}),
		rewardsMinted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_minted_total",
			Help:      "Number of reward tokens minted by tier.",
		}, []string{"tier"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Number of rejected operations by operation and error code.",
		}, []string{"operation", "code"}),
		eventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Number of outbox events pushed to subscribers.",
		}),
		disbursements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disbursements_total",
			Help:      "Number of transfer send attempts by kind and result.",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) ProjectCreated() {
	if m != nil {
		m.projectsCreated.Inc()
	}
}

func (m *Metrics) Contribution() {
	if m != nil {
		m.contributions.Inc()
	}
}

func (m *Metrics) Vote(approve bool) {
	if m == nil {
		return
	}
	label := "false"
	if approve {
		label = "true"
	}
	m.votes.WithLabelValues(label).Inc()
}

func (m *Metrics) Release() {
	if m != nil {
		m.releases.Inc()
	}
}

func (m *Metrics) Refund() {
	if m != nil {
		m.refunds.Inc()
	}
}

func (m *Metrics) RewardMinted(tier string) {
	if m != nil {
		m.rewardsMinted.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) Rejection(operation, code string) {
	if m != nil {
		m.rejections.WithLabelValues(operation, code).Inc()
	}
}

func (m *Metrics) EventsPublished(n int) {
	if m != nil {
		m.eventsPublished.Add(float64(n))
	}
}

func (m *Metrics) Disbursement(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.disbursements.WithLabelValues(kind, result).Inc()
}
