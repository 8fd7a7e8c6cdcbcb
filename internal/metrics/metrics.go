package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the harvester collectors. Each instance registers on its own
// Registerer so tests can use a fresh prometheus.NewRegistry().
type Metrics struct {
	FetchTotal     *prometheus.CounterVec
	EventsFetched  *prometheus.CounterVec
	EventsNew      prometheus.Counter
	Duplicates     prometheus.Counter
	PersistErrors  prometheus.Counter
	CorpusSize     prometheus.Gauge
	Target         prometheus.Gauge
	CycleDuration  prometheus.Histogram
	UploadAttempts *prometheus.CounterVec
	LastUploadTS   *prometheus.GaugeVec
	LastPersistTS  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "fetch_total",
			Help:      "Feed requests by outcome",
		}, []string{"status"}),
		EventsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "events_fetched_total",
			Help:      "Normalized events received from the feed",
		}, []string{"kind"}),
		EventsNew: f.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "events_new_total",
			Help:      "Events committed to the corpus",
		}),
		Duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "events_duplicate_total",
			Help:      "Fetched events dropped as duplicates",
		}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "persist_errors_total",
			Help:      "Snapshot writes that failed",
		}),
		CorpusSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "corpus_size",
			Help:      "Events in the committed corpus",
		}),
		Target: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "corpus_target",
			Help:      "Corpus size that ends the run",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harvester",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one polling cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		UploadAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "upload_attempts_total",
			Help:      "Upload attempts by sink and outcome",
		}, []string{"sink", "status"}),
		LastUploadTS: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "last_upload_timestamp_seconds",
			Help:      "Unix timestamp of the last successful upload per sink",
		}, []string{"sink"}),
		LastPersistTS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "last_persist_timestamp_seconds",
			Help:      "Unix timestamp of the last successful snapshot write",
		}),
	}
}

// Discard returns collectors registered nowhere.
func Discard() *Metrics { return New(prometheus.NewRegistry()) }
