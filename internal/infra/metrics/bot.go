package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(botUpdatesTotal, botRateLimited, promptTokens) }

var botUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Telegram updates handled, labeled by command.",
	},
	[]string{"command"},
)

var botRateLimited = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bot_rate_limited_total",
		Help: "Updates dropped by the per-user rate limiter.",
	},
)

var promptTokens = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "chat_prompt_tokens",
		Help:    "Estimated prompt token counts for chat messages.",
		Buckets: []float64{8, 16, 32, 64, 128, 256, 512, 1024},
	},
)

func IncBotUpdate(command string) { botUpdatesTotal.WithLabelValues(norm(command)).Inc() }
func IncRateLimited()             { botRateLimited.Inc() }
func ObservePromptTokens(n int)   { promptTokens.Observe(float64(n)) }
