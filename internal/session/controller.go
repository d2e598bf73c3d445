package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/statement-parser/client/internal/extraction"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/models"
	"go.uber.org/zap"
)

// NoFileSelectedMessage is shown when submit is triggered without a file.
const NoFileSelectedMessage = "Please select a PDF file first."

var (
	// ErrNoFileSelected is returned by Submit when nothing is selected.
	// No request is sent.
	ErrNoFileSelected = errors.New("no file selected")

	// ErrSubmitInFlight is returned when a submission is already pending.
	// The call is rejected and state is left untouched.
	ErrSubmitInFlight = errors.New("submission already in flight")

	// ErrCycleSuperseded is returned by Submit when a newer selection was
	// made while the request was in flight. Its outcome was discarded.
	ErrCycleSuperseded = errors.New("cycle superseded by a newer selection")
)

// Extractor sends one document to the extraction service.
type Extractor interface {
	Extract(ctx context.Context, name string, content io.Reader) (*models.ExtractionResult, error)
}

// Listener receives a snapshot after every state change, in order.
// Listeners run synchronously and must not call SelectFile or Submit.
type Listener func(models.Snapshot)

// cycle tags one submission with the selection it was made for.
type cycle struct {
	id        string
	file      *models.SelectedFile
	startedAt time.Time
}

// Controller owns the state of the upload/extraction cycle. It is the only
// caller of the Extractor and the only writer of cycle state.
type Controller struct {
	extractor Extractor
	logger    *zap.Logger

	// notifyMu orders publication: a change and the delivery of its
	// snapshot happen before the next change is applied.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	phase     models.Phase
	file      *models.SelectedFile
	result    *models.ExtractionResult
	errMsg    string
	errKind   models.ErrorKind
	active    *cycle
	lastCycle string
	version   uint64
	listeners map[int]Listener
	nextID    int
	running   int
	idle      chan struct{}
}

// NewController creates a controller in the empty phase.
func NewController(extractor Extractor, log *zap.Logger) *Controller {
	idle := make(chan struct{})
	close(idle)
	return &Controller{
		extractor: extractor,
		logger:    logger.OrNop(log),
		phase:     models.PhaseEmpty,
		listeners: make(map[int]Listener),
		idle:      idle,
	}
}

// Snapshot returns the current presentation state.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe registers l for every future change and returns the snapshot
// current at registration time, so no change is missed in between.
func (c *Controller) Subscribe(l Listener) (models.Snapshot, func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	snap := c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	return snap, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// SelectFile makes file the current selection and clears any result or
// error. It always moves to the ready phase, even while a request is in
// flight; that request's outcome is then discarded, and submitting stays
// rejected until it settles. A nil file is ignored.
func (c *Controller) SelectFile(file *models.SelectedFile) models.Snapshot {
	if file == nil {
		return c.Snapshot()
	}
	if !models.LooksLikePDF(file.Name) {
		c.logger.Warn("selected file does not look like a PDF", zap.String("file", file.Name))
	}

	return c.apply(func() bool {
		if c.active != nil {
			c.logger.Info("selection changed while pending; in-flight result will be discarded",
				zap.String("cycle_id", c.active.id),
				zap.String("file_id", c.active.file.ID),
			)
		}
		c.file = file
		c.active = nil
		c.lastCycle = ""
		c.result = nil
		c.errMsg = ""
		c.errKind = models.ErrorKindNone
		c.phase = models.PhaseReady

		c.logger.Info("file selected",
			zap.String("file_id", file.ID),
			zap.String("file", file.Name),
			zap.Int64("size", file.Size),
		)
		return true
	})
}

// Submit runs one cycle for the current selection and blocks until it
// ends. The returned snapshot reflects the state after the cycle.
//
// Errors: ErrNoFileSelected, ErrSubmitInFlight, ErrCycleSuperseded, or the
// extractor's *extraction.ServiceError / *extraction.TransportError.
func (c *Controller) Submit(ctx context.Context) (models.Snapshot, error) {
	cy, snap, err := c.begin()
	if err != nil {
		return snap, err
	}
	return c.run(ctx, cy)
}

// SubmitAsync starts a cycle and returns once it is pending. The request
// runs in the background detached from ctx cancellation; its outcome is
// delivered to listeners.
func (c *Controller) SubmitAsync(ctx context.Context) (models.Snapshot, error) {
	cy, snap, err := c.begin()
	if err != nil {
		return snap, err
	}
	go func() {
		_, _ = c.run(context.WithoutCancel(ctx), cy)
	}()
	return snap, nil
}

// Wait blocks until no request is in flight, including requests whose
// outcome will be discarded.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.RLock()
	idle := c.idle
	c.mu.RUnlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin validates preconditions and moves to pending.
func (c *Controller) begin() (*cycle, models.Snapshot, error) {
	var (
		cy        *cycle
		rejectErr error
	)

	snap := c.apply(func() bool {
		// A reselect during pending moves to ready, but the earlier request
		// is still outstanding until it settles.
		if c.phase == models.PhasePending || c.running > 0 {
			rejectErr = ErrSubmitInFlight
			c.logger.Warn("submit rejected: request already in flight",
				zap.String("cycle_id", c.lastCycle),
				zap.Int("running", c.running),
			)
			return false
		}

		if c.file == nil {
			rejectErr = ErrNoFileSelected
			c.result = nil
			c.errMsg = NoFileSelectedMessage
			c.errKind = models.ErrorKindNoFileSelected
			c.phase = models.PhaseFailed
			c.logger.Info("submit without a selected file")
			return true
		}

		cy = &cycle{
			id:        uuid.New().String(),
			file:      c.file,
			startedAt: time.Now(),
		}
		c.active = cy
		c.lastCycle = cy.id
		c.result = nil
		c.errMsg = ""
		c.errKind = models.ErrorKindNone
		c.phase = models.PhasePending
		c.startRunningLocked()

		c.logger.Info("cycle started",
			zap.String("cycle_id", cy.id),
			zap.String("file_id", cy.file.ID),
			zap.String("file", cy.file.Name),
		)
		return true
	})

	return cy, snap, rejectErr
}

// run performs the request for cy and records its outcome.
func (c *Controller) run(ctx context.Context, cy *cycle) (snap models.Snapshot, err error) {
	returned := false

	// A panicking extractor must not leave the controller stuck in pending.
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			r = "extractor exited without returning"
		}
		c.logger.Error("extraction panicked", zap.String("cycle_id", cy.id), zap.Any("panic", r))
		err = &extraction.TransportError{Op: "extract", Err: fmt.Errorf("extraction panicked: %v", r)}
		snap, err = c.complete(cy, nil, err)
	}()

	res, err := c.extract(ctx, cy)
	returned = true
	return c.complete(cy, res, err)
}

func (c *Controller) extract(ctx context.Context, cy *cycle) (*models.ExtractionResult, error) {
	content, err := cy.file.Open()
	if err != nil {
		return nil, &extraction.TransportError{Op: "open selected file", Err: err}
	}
	defer content.Close()

	return c.extractor.Extract(ctx, cy.file.Name, content)
}

// complete applies the outcome of cy unless a newer selection replaced it.
func (c *Controller) complete(cy *cycle, res *models.ExtractionResult, err error) (models.Snapshot, error) {
	stale := false
	elapsed := time.Since(cy.startedAt)

	snap := c.apply(func() bool {
		c.stopRunningLocked()

		if c.active != cy {
			stale = true
			c.logger.Info("discarding outcome of superseded cycle",
				zap.String("cycle_id", cy.id),
				zap.String("file_id", cy.file.ID),
				zap.Duration("elapsed", elapsed),
			)
			// Only canSubmit may have changed.
			return c.running == 0
		}
		c.active = nil

		if err != nil {
			c.result = nil
			c.errMsg, c.errKind = describe(err)
			c.phase = models.PhaseFailed
			c.logger.Warn("cycle failed",
				zap.String("cycle_id", cy.id),
				zap.String("error_kind", string(c.errKind)),
				zap.Int64("elapsed_ms", elapsed.Milliseconds()),
				zap.Error(err),
			)
			return true
		}

		if res == nil {
			res = &models.ExtractionResult{}
		}
		c.result = res.Clone()
		c.errMsg = ""
		c.errKind = models.ErrorKindNone
		c.phase = models.PhaseSuccess
		c.logger.Info("cycle succeeded",
			zap.String("cycle_id", cy.id),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()),
		)
		return true
	})

	if stale {
		return snap, ErrCycleSuperseded
	}
	return snap, err
}

// apply mutates state under the lock and publishes the resulting snapshot
// when fn reports a change.
func (c *Controller) apply(fn func() bool) models.Snapshot {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	changed := fn()
	if changed {
		c.version++
	}
	snap := c.snapshotLocked()
	var listeners []Listener
	if changed {
		listeners = make([]Listener, 0, len(c.listeners))
		for _, l := range c.listeners {
			listeners = append(listeners, l)
		}
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return snap
}

func (c *Controller) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Version:   c.version,
		Phase:     c.phase,
		CycleID:   c.lastCycle,
		Error:     c.errMsg,
		ErrorKind: c.errKind,
		CanSubmit: c.phase != models.PhasePending && c.running == 0,
	}
	if c.file != nil {
		snap.HasFile = true
		snap.FileName = c.file.Name
	}
	if c.result != nil {
		snap.Result = c.result.Clone()
		snap.Fields = c.result.Fields()
	}
	return snap
}

func (c *Controller) startRunningLocked() {
	if c.running == 0 {
		c.idle = make(chan struct{})
	}
	c.running++
}

func (c *Controller) stopRunningLocked() {
	c.running--
	if c.running == 0 {
		close(c.idle)
	}
}

// DisplayMessage returns the text shown to the user for a failed cycle.
func DisplayMessage(err error) string {
	msg, _ := describe(err)
	return msg
}

func describe(err error) (string, models.ErrorKind) {
	var (
		se *extraction.ServiceError
		te *extraction.TransportError
	)
	switch {
	case errors.Is(err, ErrNoFileSelected):
		return NoFileSelectedMessage, models.ErrorKindNoFileSelected
	case errors.As(err, &se):
		return se.Message(), models.ErrorKindServiceRejected
	case errors.As(err, &te):
		if msg := te.Message(); msg != "" {
			return msg, models.ErrorKindTransportFailure
		}
		return extraction.FallbackMessage, models.ErrorKindTransportFailure
	case err != nil && err.Error() != "":
		return err.Error(), models.ErrorKindTransportFailure
	default:
		return extraction.FallbackMessage, models.ErrorKindTransportFailure
	}
}
