package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerStats is the subset of ledger state exported as gauges.
type LedgerStats struct {
	Live     int
	Minted   uint64
	Slots    int
	Orphaned int
	Seq      uint64
}

// Collector exports ledger state at scrape time.
type Collector struct {
	stats func() LedgerStats

	live     *prometheus.Desc
	minted   *prometheus.Desc
	slots    *prometheus.Desc
	orphaned *prometheus.Desc
	seq      *prometheus.Desc
}

// NewCollector creates a collector that calls stats on every scrape.
func NewCollector(stats func() LedgerStats) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "ledger", name), help, nil, nil)
	}
	return &Collector{
		stats:    stats,
		live:     desc("live_tokens", "Minted tokens not yet burned or revoked"),
		minted:   desc("minted_tokens", "Token ids ever allocated"),
		slots:    desc("index_slots", "Occupied ownership index slots"),
		orphaned: desc("orphaned_tokens", "Live tokens without an ownership index slot"),
		seq:      desc("sequence", "Sequence number of the last committed event"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.minted
	ch <- c.slots
	ch <- c.orphaned
	ch <- c.seq
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.minted, prometheus.GaugeValue, float64(s.Minted))
	ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(s.Slots))
	ch <- prometheus.MustNewConstMetric(c.orphaned, prometheus.GaugeValue, float64(s.Orphaned))
	ch <- prometheus.MustNewConstMetric(c.seq, prometheus.CounterValue, float64(s.Seq))
}
