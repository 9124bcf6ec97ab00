package metrics

import (
	"os"
	"time"
)

// Collector periodically samples the work directory depths so stuck stages
// (a growing cleanup/ queue, an undrained appevents/) show up on dashboards.
type Collector struct {
	dirs      map[string]string
	available func() bool
	stopCh    chan struct{}
}

// NewCollector creates a collector over a map of label -> directory path.
func NewCollector(dirs map[string]string, available func() bool) *Collector {
	return &Collector{
		dirs:      dirs,
		available: available,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for label, dir := range c.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		n := 0
		for _, entry := range entries {
			if entry.Name()[0] == '.' {
				continue
			}
			n++
		}
		DirectoryEntries.WithLabelValues(label).Set(float64(n))
	}

	if c.available() {
		NodeAvailable.Set(1)
	} else {
		NodeAvailable.Set(0)
	}
}
