package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

// StatsReader is the part of queue.Queue the depth collector needs.
type StatsReader interface {
	Stats(ctx context.Context, name string) (queue.Stats, error)
}

// DepthCollector reports the size of each region of the given queues at
// scrape time.
type DepthCollector struct {
	reader  StatsReader
	size    *prometheus.Desc
	up      *prometheus.Desc
	queues  []string
	timeout time.Duration
}

// NewDepthCollector creates a collector for queues. Register it with a
// prometheus.Registerer.
func NewDepthCollector(reader StatsReader, namespace string, queues ...string) *DepthCollector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &DepthCollector{
		reader: reader,
		queues: queues,
		size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "jobs"),
			"Jobs currently stored, by queue and region.",
			[]string{"queue", "region"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "up"),
			"Whether the last stats read of the queue succeeded.",
			[]string{"queue"}, nil,
		),
		timeout: 2 * time.Second,
	}
}

func (c *DepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.up
}

func (c *DepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	for _, name := range c.queues {
		stats, err := c.reader.Stats(ctx, name)
		if err != nil {
			ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0, name)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1, name)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(stats.Pending), name, "pending")
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(stats.Delayed), name, "delayed")
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(stats.Reserved), name, "reserved")
	}
}
