package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports a QueryStats as Prometheus metrics.
type StatsCollector struct {
	stats *QueryStats

	queries       *prometheus.Desc
	execs         *prometheus.Desc
	duration      *prometheus.Desc
	slow          *prometheus.Desc
	errors        *prometheus.Desc
	prepared      *prometheus.Desc
	prepareErrors *prometheus.Desc
	closed        *prometheus.Desc
	open          *prometheus.Desc
}

// NewStatsCollector returns a collector reading from stats on every scrape.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(sql.NewStatsCollector("stmtgroup", drv.QueryStats()))
func NewStatsCollector(namespace string, stats *QueryStats) *StatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "sql", name), help, nil, nil)
	}
	return &StatsCollector{
		stats:         stats,
		queries:       desc("queries_total", "Number of queries executed."),
		execs:         desc("execs_total", "Number of statements executed."),
		duration:      desc("duration_seconds_total", "Time spent executing statements."),
		slow:          desc("slow_total", "Number of statements exceeding the slow threshold."),
		errors:        desc("errors_total", "Number of failed executions."),
		prepared:      desc("statements_prepared_total", "Number of statements prepared."),
		prepareErrors: desc("prepare_errors_total", "Number of failed prepares."),
		closed:        desc("statements_closed_total", "Number of prepared statements closed."),
		open:          desc("statements_open", "Number of prepared statements not yet closed."),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.execs
	ch <- c.duration
	ch <- c.slow
	ch <- c.errors
	ch <- c.prepared
	ch <- c.prepareErrors
	ch <- c.closed
	ch <- c.open
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	counter(c.queries, float64(s.TotalQueries))
	counter(c.execs, float64(s.TotalExecs))
	counter(c.duration, s.TotalDuration.Seconds())
	counter(c.slow, float64(s.SlowQueries))
	counter(c.errors, float64(s.Errors))
	counter(c.prepared, float64(s.Prepared))
	counter(c.prepareErrors, float64(s.PrepareErrors))
	counter(c.closed, float64(s.Closed))
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenStatements()))
}

var _ prometheus.Collector = (*StatsCollector)(nil)
