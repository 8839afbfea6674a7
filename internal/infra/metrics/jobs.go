package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsTotal, jobPollAttempts, jobDurationSeconds) }

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_total",
		Help: "Generation jobs by provider and terminal outcome.",
	},
	[]string{"provider", "kind", "status"}, // status: completed|failed|timeout
)

var jobPollAttempts = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_job_poll_attempts",
		Help:    "Poll attempts spent per job before a terminal state.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	},
	[]string{"provider"},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_job_duration_seconds",
		Help:    "Wall time from submit to terminal state.",
		Buckets: []float64{1, 3, 10, 30, 60, 120, 300, 600},
	},
	[]string{"provider", "kind"},
)

func IncGenerationJob(provider, kind, status string) {
	jobsTotal.WithLabelValues(norm(provider), norm(kind), norm(status)).Inc()
}

func ObserveJobPolls(provider string, attempts int) {
	jobPollAttempts.WithLabelValues(norm(provider)).Observe(float64(attempts))
}

func ObserveJobDuration(provider, kind string, seconds float64) {
	jobDurationSeconds.WithLabelValues(norm(provider), norm(kind)).Observe(seconds)
}
