package bot

import "github.com/prometheus/client_golang/prometheus"

var commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "kiara_commands_total",
	Help: "Slash commands handled by command and outcome.",
}, []string{"command", "outcome"})

func init() {
	prometheus.MustRegister(commandsTotal)
}
