package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quotient"

var (
	QuizzesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "started_total",
		Help:      "Number of quiz attempts started.",
	})

	QuizzesGraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "graded_total",
		Help:      "Number of quiz attempts graded.",
	})

	ScoreSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "score_save_failures_total",
		Help:      "Number of graded quizzes whose result could not be stored.",
	})

	QuizScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "score_percent",
		Help:      "Distribution of quiz scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "subscribers",
		Help:      "Number of open change feed connections.",
	})

	FeedChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "published_total",
		Help:      "Number of changes published to the feed.",
	}, []string{"event"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	RedisCommands = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "command_duration_seconds",
		Help:      "Duration of Redis commands, pipelines counted as one.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"cmd", "status"})
)
