package conversation

import (
	"log/slog"
	"sync"
	"time"
)

// Janitor periodically drops abandoned dialogues from a Store.
type Janitor struct {
	store    *Store
	maxIdle  time.Duration
	interval time.Duration
	log      *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	ticker   *time.Ticker
}

func NewJanitor(store *Store, maxIdle time.Duration, logger *slog.Logger) *Janitor {
	interval := maxIdle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Janitor{
		store:    store,
		maxIdle:  maxIdle,
		interval: interval,
		log:      logger,
		stopChan: make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	if j == nil {
		return
	}
	j.ticker = time.NewTicker(j.interval)
	go j.loop()
}

func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	j.stopOnce.Do(func() {
		close(j.stopChan)
		if j.ticker != nil {
			j.ticker.Stop()
		}
	})
}

func (j *Janitor) loop() {
	for {
		select {
		case <-j.ticker.C:
			j.tick()
		case <-j.stopChan:
			return
		}
	}
}

func (j *Janitor) tick() {
	if n := j.store.Sweep(j.maxIdle); n > 0 {
		j.log.Info("dropped abandoned sessions", slog.Int("count", n), slog.Duration("max_idle", j.maxIdle))
	}
}
