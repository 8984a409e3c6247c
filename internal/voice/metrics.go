package voice

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kiara_voice_sessions_active",
		Help: "Voice conversations currently connected to the live endpoint.",
	})
	admissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiara_voice_admissions_total",
		Help: "Session start requests by outcome.",
	}, []string{"result"})
	joinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiara_voice_joins_total",
		Help: "Voice channel joins by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(sessionsActive, admissionsTotal, joinsTotal)
}
