package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewCounter 创建并注册 Counter
func (c *Client) NewCounter(name, help string, labels []string) (*CounterVec, error) {
	if c.IsClosed() {
		return nil, ErrClientClosed
	}

	// 检查是否已存在
	if _, loaded := c.counters.LoadOrStore(name, nil); loaded {
		return nil, ErrMetricExists
	}

	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)

	if err := c.registry.Register(counter); err != nil {
		c.counters.Delete(name)
		return nil, err
	}

	c.counters.Store(name, counter)
	return counter, nil
}

// MustNewCounter 创建 Counter，失败则 panic
func (c *Client) MustNewCounter(name, help string, labels []string) *CounterVec {
	counter, err := c.NewCounter(name, help, labels)
	if err != nil {
		panic(err)
	}
	return counter
}

// NewGauge 创建并注册 Gauge
func (c *Client) NewGauge(name, help string, labels []string) (*GaugeVec, error) {
	if c.IsClosed() {
		return nil, ErrClientClosed
	}

	if _, loaded := c.gauges.LoadOrStore(name, nil); loaded {
		return nil, ErrMetricExists
	}

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)

	if err := c.registry.Register(gauge); err != nil {
		c.gauges.Delete(name)
		return nil, err
	}

	c.gauges.Store(name, gauge)
	return gauge, nil
}

// NewHistogram 创建并注册 Histogram，buckets 为 nil 时使用默认分桶
func (c *Client) NewHistogram(name, help string, labels []string, buckets []float64) (*HistogramVec, error) {
	if c.IsClosed() {
		return nil, ErrClientClosed
	}

	if _, loaded := c.histograms.LoadOrStore(name, nil); loaded {
		return nil, ErrMetricExists
	}

	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)

	if err := c.registry.Register(histogram); err != nil {
		c.histograms.Delete(name)
		return nil, err
	}

	c.histograms.Store(name, histogram)
	return histogram, nil
}

// RegisterCollector 注册自定义采集器
func (c *Client) RegisterCollector(collector Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	return c.registry.Register(collector)
}
