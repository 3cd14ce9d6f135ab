// Package metrics exposes Prometheus counters for pipeline outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "downloads_total",
		Help:      "Acquisition attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	TranscriptionWindows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "transcription_windows_total",
		Help:      "Transcribed audio windows by outcome.",
	}, []string{"outcome"})

	Embeddings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "embeddings_total",
		Help:      "Passage embedding attempts by outcome.",
	}, []string{"outcome"})

	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "answers_total",
		Help:      "Retrieval-QA answers by outcome.",
	}, []string{"outcome"})

	Summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "summaries_total",
		Help:      "Transcript summarizations by outcome.",
	}, []string{"outcome"})

	CredentialCooldowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "credential_cooldowns_total",
		Help:      "Credentials placed on cooldown, by provider.",
	}, []string{"provider"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidqa",
		Name:      "jobs_completed_total",
		Help:      "Pipelines finished, by terminal state.",
	}, []string{"state"})
)
