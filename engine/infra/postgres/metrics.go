package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolStatter interface {
	Stat() *pgxpool.Stat
}

// poolCollector reports pgxpool statistics at scrape time.
type poolCollector struct {
	pool      poolStatter
	total     *prometheus.Desc
	inUse     *prometheus.Desc
	idle      *prometheus.Desc
	max       *prometheus.Desc
	acquires  *prometheus.Desc
	waitTotal *prometheus.Desc
}

func newPoolCollector(pool poolStatter) *poolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("plansync_postgres_"+name, help, nil, nil)
	}
	return &poolCollector{
		pool:      pool,
		total:     desc("connections_open", "Open connections in the pool."),
		inUse:     desc("connections_in_use", "Connections currently acquired."),
		idle:      desc("connections_idle", "Idle connections in the pool."),
		max:       desc("connections_max", "Configured maximum pool size."),
		acquires:  desc("acquires_total", "Connections acquired from the pool."),
		waitTotal: desc("acquire_wait_seconds_total", "Time spent waiting for a connection."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.inUse
	ch <- c.idle
	ch <- c.max
	ch <- c.acquires
	ch <- c.waitTotal
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.waitTotal, prometheus.CounterValue, stat.AcquireDuration().Seconds())
}
