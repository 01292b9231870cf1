// Package dispatch contains the factory's dispatch loop: it polls the work
// tracker, matches queued items to available personas, and hands the work to
// the execution delegate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aifactory/pkg/config"
	"aifactory/pkg/eventlog"
	"aifactory/pkg/item"
	"aifactory/pkg/logx"
	"aifactory/pkg/match"
	"aifactory/pkg/metrics"
	"aifactory/pkg/persistence"
	"aifactory/pkg/persona"
	"aifactory/pkg/processor"
	"aifactory/pkg/queue"
	"aifactory/pkg/tracker"
)

// Dispatcher owns the work queue and the persona pool and runs the dispatch
// loop against them. All loop state lives here; there are no package globals.
type Dispatcher struct {
	queue     *queue.WorkQueue
	pool      *persona.Pool
	directory persona.Directory
	tracker   tracker.Client
	executor  processor.Executor
	sink      EventSink
	events    *eventlog.Writer
	recorder  metrics.Recorder
	logger    *logx.Logger
	config    *config.Config

	shutdown  chan struct{}
	wg        sync.WaitGroup // dispatch loop goroutine
	inflight  sync.WaitGroup // execution goroutines
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastPoll  time.Time
}

// NewDispatcher creates a stopped dispatcher with an empty queue and pool.
func NewDispatcher(cfg *config.Config, dir persona.Directory, trk tracker.Client, exec processor.Executor) *Dispatcher {
	return &Dispatcher{
		queue:     queue.New(),
		pool:      persona.NewPool(),
		directory: dir,
		tracker:   trk,
		executor:  exec,
		sink:      NewLogSink(),
		recorder:  metrics.NopRecorder{},
		logger:    logx.NewLogger("dispatch"),
		config:    cfg,
	}
}

// Queue exposes the work queue for the web layer and the binary.
func (d *Dispatcher) Queue() *queue.WorkQueue {
	return d.queue
}

// Pool exposes the persona pool for the web layer and the binary.
func (d *Dispatcher) Pool() *persona.Pool {
	return d.pool
}

// SetEventLog attaches a JSONL event log writer. Optional.
func (d *Dispatcher) SetEventLog(w *eventlog.Writer) {
	d.events = w
}

// SetRecorder attaches a metrics recorder. Defaults to a no-op recorder.
func (d *Dispatcher) SetRecorder(r metrics.Recorder) {
	d.recorder = r
}

// SetSink replaces the default event sink.
func (d *Dispatcher) SetSink(s EventSink) {
	d.sink = s
}

// Start launches the dispatch loop. Calling Start on a running dispatcher is
// a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Info("Dispatcher already running, ignoring start")
		return nil
	}
	d.running = true
	d.shutdown = make(chan struct{})
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()

	d.logger.Info("Starting dispatcher (tick %v, poll every %d ticks)",
		d.config.TickInterval(), d.config.PollEveryNTicks)

	d.wg.Add(1)
	go d.run(ctx)

	return nil
}

// Stop halts the dispatch loop at the next iteration boundary and waits for
// in-flight executions to finish. Work in progress is never cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.shutdown)
	d.mu.Unlock()

	d.logger.Info("Stopping dispatcher")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the dispatch loop is active.
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// run is the dispatch loop. It stays alive until shutdown no matter what an
// individual iteration does.
func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TickInterval())
	defer ticker.Stop()

	var tick uint64

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatch loop stopped by context")
			return
		case <-d.shutdown:
			d.logger.Info("Dispatch loop stopped by shutdown signal")
			return
		case <-ticker.C:
			if tick%uint64(d.config.PollEveryNTicks) == 0 {
				d.pollTracker(ctx)
			}
			if err := d.dispatchNext(ctx); err != nil {
				d.logger.Error("Dispatch iteration failed: %v", err)
				d.sink.Log(logx.LevelError, fmt.Sprintf("dispatch iteration failed: %v", err), "", "", "")
				select {
				case <-time.After(d.config.ErrorBackoff()):
				case <-d.shutdown:
					return
				case <-ctx.Done():
					return
				}
			}
			d.recorder.SetQueueDepth(d.queue.Size())
			tick++
		}
	}
}

// pollTracker fetches new work items from every enabled project. A failing
// project never blocks the others.
func (d *Dispatcher) pollTracker(ctx context.Context) {
	for _, project := range d.config.Projects {
		refs, err := d.tracker.QueryWorkItems(ctx, project)
		if err != nil {
			d.logger.Warn("Tracker poll failed for project %s: %v", project, err)
			d.sink.Log(logx.LevelWarn, fmt.Sprintf("tracker poll failed: %v", err), "", "", project)
			d.recorder.IncPollError(project)
			d.writeEvent(eventlog.KindPollError, nil, "", err.Error())
			continue
		}

		for _, ref := range refs {
			detail, err := d.tracker.GetWorkItem(ctx, project, ref.ID)
			if err != nil {
				d.logger.Warn("Failed to fetch work item %s from project %s: %v", ref.ID, project, err)
				d.recorder.IncPollError(project)
				continue
			}
			d.enqueueDetail(detail)
		}
	}

	d.mu.Lock()
	d.lastPoll = time.Now().UTC()
	d.mu.Unlock()
}

// enqueueDetail converts a tracker record into a work item and adds it to the
// queue. Duplicates are expected on every poll and dropped quietly.
func (d *Dispatcher) enqueueDetail(detail *tracker.ItemDetail) {
	wi := item.New(detail.Title, detail.Description, itemCategory(detail.Type))
	wi.ExternalRef = detail.ID
	wi.Project = detail.Project

	if _, err := d.queue.Add(wi); err != nil {
		var dup *queue.DuplicateItemError
		if errors.As(err, &dup) {
			d.logger.Debug("Skipping already known tracker item %s", detail.ID)
			return
		}
		d.logger.Warn("Failed to enqueue tracker item %s: %v", detail.ID, err)
		return
	}

	d.logger.Info("Enqueued work item %q from project %s", wi.Title, wi.Project)
	d.sink.Log(logx.LevelInfo, fmt.Sprintf("enqueued %q", wi.Title), "", wi.ID, wi.Project)
	d.recorder.IncEnqueued(wi.Project, wi.Category)
	d.writeEvent(eventlog.KindEnqueued, wi, "", "")
}

// Submit adds a manually created work item to the queue, for the web API.
func (d *Dispatcher) Submit(wi *item.WorkItem) (string, error) {
	id, err := d.queue.Add(wi)
	if err != nil {
		return "", err
	}
	d.sink.Log(logx.LevelInfo, fmt.Sprintf("enqueued %q", wi.Title), "", wi.ID, wi.Project)
	d.recorder.IncEnqueued(wi.Project, wi.Category)
	d.writeEvent(eventlog.KindEnqueued, wi, "", "")
	return id, nil
}

// dispatchNext pops the head item, selects a persona, and spawns execution.
// An empty queue or an unmatched item is a normal outcome, not an error.
func (d *Dispatcher) dispatchNext(ctx context.Context) error {
	wi := d.queue.PopNext()
	if wi == nil {
		return nil
	}

	available := d.pool.AvailablePersonas()
	selected := match.Select(wi, available)
	if selected == nil {
		d.queue.Requeue(wi)
		d.logger.Debug("No available persona for %q, requeued", wi.Title)
		d.sink.Log(logx.LevelWarn, fmt.Sprintf("no available persona for %q, requeued", wi.Title), "", wi.ID, wi.Project)
		d.recorder.IncRequeued(wi.Category)
		d.writeEvent(eventlog.KindRequeued, wi, "", "no available persona")
		return nil
	}

	// The selected type must still exist in the directory before we commit
	// the assignment.
	if _, err := d.directory.Capabilities(selected.PersonaType); err != nil {
		d.queue.Requeue(wi)
		d.writeEvent(eventlog.KindRequeued, wi, selected.InstanceID, err.Error())
		return fmt.Errorf("persona type check failed for %s: %w", selected.PersonaType, err)
	}

	if err := d.pool.MarkBusy(selected.InstanceID, wi.ID); err != nil {
		d.queue.Requeue(wi)
		return fmt.Errorf("failed to reserve persona %s: %w", selected.InstanceID, err)
	}

	if err := wi.Transition(item.StatusProcessing); err != nil {
		_ = d.pool.MarkIdle(selected.InstanceID, false)
		return fmt.Errorf("failed to start item %s: %w", wi.ID, err)
	}
	wi.AssignedTo = selected.InstanceID

	d.logger.Info("Assigned %q to %s (%s)", wi.Title, selected.DisplayName, selected.PersonaType)
	d.sink.Log(logx.LevelInfo, fmt.Sprintf("assigned %q to %s", wi.Title, selected.DisplayName),
		selected.DisplayName, wi.ID, wi.Project)
	d.recorder.IncDispatched(selected.PersonaType, wi.Category)
	d.writeEvent(eventlog.KindAssigned, wi, selected.InstanceID, "")

	// Fire and forget. The loop moves on; completion is handled by the
	// execution goroutine.
	d.inflight.Add(1)
	go d.execute(ctx, wi, selected)

	return nil
}

// execute runs the work item through the delegate and applies the outcome.
func (d *Dispatcher) execute(ctx context.Context, wi *item.WorkItem, inst *persona.Instance) {
	defer d.inflight.Done()

	start := time.Now()
	result, err := d.executor.Execute(ctx, wi, inst)
	duration := time.Since(start)

	success := err == nil && result != nil && result.Success
	d.onItemComplete(wi, inst, result, err, success, duration)
}

func (d *Dispatcher) onItemComplete(wi *item.WorkItem, inst *persona.Instance, result *processor.Result, execErr error, success bool, duration time.Duration) {
	if success {
		if err := wi.Transition(item.StatusCompleted); err != nil {
			d.logger.Error("Completion transition failed for %s: %v", wi.ID, err)
		}
		wi.Result = result.Message
		d.queue.MarkCompleted(wi)

		d.logger.Info("Completed %q by %s in %v", wi.Title, inst.DisplayName, duration.Round(time.Millisecond))
		d.sink.Log(logx.LevelInfo, fmt.Sprintf("completed %q: %s", wi.Title, result.Message),
			inst.DisplayName, wi.ID, wi.Project)
		d.writeEvent(eventlog.KindCompleted, wi, inst.InstanceID, result.Message)
	} else {
		if err := wi.Transition(item.StatusFailed); err != nil {
			d.logger.Error("Failure transition failed for %s: %v", wi.ID, err)
		}
		wi.Error = failureMessage(result, execErr)
		// A failed item's ref is released, not completed, so the tracker
		// can resubmit it on a later poll.
		d.queue.ReleaseRef(wi)

		d.logger.Warn("Failed %q by %s: %s", wi.Title, inst.DisplayName, wi.Error)
		d.sink.Log(logx.LevelError, fmt.Sprintf("failed %q: %s", wi.Title, wi.Error),
			inst.DisplayName, wi.ID, wi.Project)
		d.writeEvent(eventlog.KindFailed, wi, inst.InstanceID, wi.Error)
	}

	d.recordTerminal(wi, inst, success)
	d.recorder.ObserveCompletion(inst.PersonaType, wi.Category, success, duration)

	if err := d.pool.MarkIdle(inst.InstanceID, success); err != nil {
		d.logger.Error("Failed to release persona %s: %v", inst.InstanceID, err)
	}
}

// recordTerminal stores the terminal work item record. Best effort.
func (d *Dispatcher) recordTerminal(wi *item.WorkItem, inst *persona.Instance, success bool) {
	if !persistence.IsInitialized() {
		return
	}

	detail := wi.Result
	if !success {
		detail = wi.Error
	}
	rec := &persistence.CompletedItem{
		ID:          wi.ID,
		ExternalRef: wi.ExternalRef,
		Title:       wi.Title,
		Project:     wi.Project,
		CompletedBy: inst.DisplayName,
		Status:      string(wi.Status),
		Detail:      detail,
	}
	if err := persistence.Ops().RecordCompletedItem(rec); err != nil {
		d.logger.Warn("Failed to record terminal item %s: %v", wi.ID, err)
	}
}

func (d *Dispatcher) writeEvent(kind string, wi *item.WorkItem, personaID, detail string) {
	if d.events == nil {
		return
	}

	event := &eventlog.Event{Kind: kind, PersonaID: personaID, Detail: detail}
	if wi != nil {
		event.ItemID = wi.ID
		event.Project = wi.Project
	}
	if err := d.events.WriteEvent(event); err != nil {
		d.logger.Warn("Failed to write %s event: %v", kind, err)
	}
}

// WaitForInFlight blocks until all spawned executions have finished.
func (d *Dispatcher) WaitForInFlight() {
	d.inflight.Wait()
}

// GetStats returns a snapshot of dispatcher state for the web UI.
func (d *Dispatcher) GetStats() map[string]any {
	d.mu.RLock()
	running := d.running
	startedAt := d.startedAt
	lastPoll := d.lastPoll
	d.mu.RUnlock()

	total, available := d.pool.Counts()

	stats := map[string]any{
		"running":            running,
		"queue_size":         d.queue.Size(),
		"completed_count":    d.queue.CompletedCount(),
		"personas_total":     total,
		"personas_available": available,
	}
	if running {
		stats["uptime_seconds"] = int(time.Since(startedAt).Seconds())
	}
	if !lastPoll.IsZero() {
		stats["last_poll"] = lastPoll.Format(time.RFC3339)
	}
	return stats
}

// itemCategory normalizes a tracker work item type into a queue category.
func itemCategory(trackerType string) string {
	normalized := strings.ToLower(strings.TrimSpace(trackerType))
	switch normalized {
	case "":
		return item.CategoryTask
	case "user story", "story", "feature":
		return item.CategoryFeature
	case "defect":
		return item.CategoryBug
	default:
		return normalized
	}
}

func failureMessage(result *processor.Result, execErr error) string {
	if execErr != nil {
		return execErr.Error()
	}
	if result != nil && result.Message != "" {
		return result.Message
	}
	return "execution failed"
}
