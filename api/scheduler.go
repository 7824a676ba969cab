/*
scheduler.go - Inbox import scheduler

PURPOSE:
  Periodically imports JSON files dropped into an inbox directory, so feeds
  can be delivered by copying files instead of calling the HTTP endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Picks up *.json files directly under the inbox, oldest name first
  - Moves each file to processed/ or failed/ once its import finishes,
    so a file is attempted once
  - Imports go through quotes.Service, which serializes them with HTTP
    triggered imports

CONFIGURATION:
  - Interval: How often to check (default: 1 minute)
  - Enabled:  Whether scheduler is active

USAGE:
  scheduler := NewInboxScheduler(service, "./inbox")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Import endpoint (manual import)
  - quotes/service.go: Service.Import
*/
package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/quote-engine/quotes"
)

// Subdirectories of the inbox that receive finished files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// InboxScheduler handles automated imports from a directory.
type InboxScheduler struct {
	Service  *quotes.Service
	Dir      string
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// InboxResult summarizes one pass over the inbox.
type InboxResult struct {
	Processed []string
	Failed    []string
}

// NewInboxScheduler creates a new scheduler over dir.
func NewInboxScheduler(svc *quotes.Service, dir string) *InboxScheduler {
	return &InboxScheduler{
		Service:  svc,
		Dir:      dir,
		Interval: time.Minute,
		Enabled:  dir != "",
	}
}

// Start begins the scheduler.
func (s *InboxScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Watching %s every %v", s.Dir, s.Interval)
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *InboxScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (s *InboxScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.pass()

	for {
		select {
		case <-s.ticker.C:
			s.pass()
		case <-s.stop:
			return
		}
	}
}

func (s *InboxScheduler) pass() {
	res, err := s.RunNow(context.Background())
	if err != nil {
		log.Printf("[Scheduler] Error scanning %s: %v", s.Dir, err)
		return
	}
	if len(res.Processed) > 0 || len(res.Failed) > 0 {
		log.Printf("[Scheduler] Completed: %d processed, %d failed", len(res.Processed), len(res.Failed))
	}
}

// RunNow imports every pending file once and returns their names.
func (s *InboxScheduler) RunNow(ctx context.Context) (InboxResult, error) {
	var res InboxResult

	pending, err := s.pending()
	if err != nil {
		return res, err
	}

	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		path := filepath.Join(s.Dir, name)
		dest := ProcessedDir
		if _, err := s.Service.Import(ctx, path); err != nil {
			log.Printf("[Scheduler] Import of %s failed: %v", name, err)
			dest = FailedDir
			res.Failed = append(res.Failed, name)
		} else {
			res.Processed = append(res.Processed, name)
		}

		if err := s.move(name, dest); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *InboxScheduler) pending() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *InboxScheduler) move(name, sub string) error {
	dir := filepath.Join(s.Dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.Rename(filepath.Join(s.Dir, name), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("move %s to %s: %w", name, sub, err)
	}
	return nil
}
