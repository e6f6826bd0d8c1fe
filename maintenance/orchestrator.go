package maintenance

import (
	"context"
	"log"
	"sync"
	"time"
)

// =============================================================================
// ORCHESTRATOR - Owns the timers, one goroutine per enabled task
// =============================================================================

// Orchestrator runs a set of independent recurring tasks. Tasks share no
// run-loop coordination; the persistence layer is their only shared
// resource.
type Orchestrator struct {
	Location *time.Location

	tasks []*Task

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewOrchestrator creates an orchestrator firing in the given zone.
func NewOrchestrator(loc *time.Location, tasks ...*Task) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{Location: loc, tasks: tasks}
}

// Add registers a task. Must be called before Start.
func (o *Orchestrator) Add(t *Task) {
	o.tasks = append(o.tasks, t)
}

// Start launches one goroutine per enabled task. Disabled tasks are logged
// and skipped entirely.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return
	}
	o.started = true
	o.stop = make(chan struct{})

	for _, t := range o.tasks {
		if !t.Enabled {
			log.Printf("[Maintenance] Task %q disabled, not scheduling", t.Name)
			continue
		}
		o.wg.Add(1)
		go o.runTask(t)
		log.Printf("[Maintenance] Task %q scheduled (zone %s)", t.Name, o.Location)
	}
}

// Stop halts all timers and waits for in-flight runs to return.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return
	}
	close(o.stop)
	o.wg.Wait()
	o.started = false
	log.Println("[Maintenance] Stopped")
}

func (o *Orchestrator) runTask(t *Task) {
	defer o.wg.Done()

	for {
		next := t.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			// Each recurrence fires in its own goroutine so a run longer
			// than its recurrence never delays or skips the next firing.
			// Stop still waits for in-flight runs through the WaitGroup.
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				t.fire(context.Background())
			}()
		case <-o.stop:
			timer.Stop()
			return
		}
	}
}

// NextRun reports when the named task will next fire. Zero time when the
// task is unknown or disabled.
func (o *Orchestrator) NextRun(name string) time.Time {
	for _, t := range o.tasks {
		if t.Name == name && t.Enabled {
			return t.Next(time.Now())
		}
	}
	return time.Time{}
}
