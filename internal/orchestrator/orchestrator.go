// Package orchestrator sequences the prediction pipeline: snapshot fetch →
// market prediction on instrument selection, and image intake → image
// prediction → confirmed persistence on manual chart analysis.
//
// The orchestrator owns a single prediction slot that moves through
// Idle → Loading → Ready/Failed. Every triggered sequence carries a generation
// token; when the stale guard is enabled (the default), a sequence whose token
// has been superseded discards its result instead of overwriting a newer one.
// Disabling the guard reproduces the unguarded last-writer-wins behavior of
// the original design for fidelity testing.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finlens/chartoracle/internal/catalog"
	"github.com/finlens/chartoracle/internal/gallery"
	"github.com/finlens/chartoracle/internal/logger"
	"github.com/finlens/chartoracle/internal/marketdata"
	"github.com/finlens/chartoracle/internal/models"
	"github.com/finlens/chartoracle/internal/uploads"
)

// SlotState enumerates the lifecycle states of the prediction slot.
type SlotState int

const (
	// StateIdle means no prediction has been requested yet.
	StateIdle SlotState = iota
	// StateLoading means a request sequence is in flight.
	StateLoading
	// StateReady means the slot holds a validated prediction.
	StateReady
	// StateFailed means the last sequence ended in an error.
	StateFailed
)

// String returns the lowercase state name.
func (s SlotState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot is the orchestrator's current prediction state for the active
// interaction. Prediction is set only in StateReady; Reason only in
// StateFailed.
type Slot struct {
	State      SlotState
	Prediction *models.Prediction
	Reason     string
}

// User-visible failure messages. Backend and schema failures collapse to a
// generic message per flow; the underlying cause is only logged.
const (
	MsgMarketDataFailed       = "Could not load market data to make a prediction."
	MsgMarketPredictionFailed = "Failed to get market prediction."
	MsgImageAnalysisFailed    = "Failed to analyze the image."
	MsgImageReadFailed        = "Failed to read the image file."
)

// Predictor produces trading plans from market context or chart images.
// *gemini.Client is the production implementation.
type Predictor interface {
	PredictFromMarket(ctx context.Context, instrument models.Instrument, snapshot models.MarketSnapshot) (*models.Prediction, error)
	PredictFromImage(ctx context.Context, instrument models.Instrument, imageData []byte, mimeType, instructions string) (*models.Prediction, error)
}

// ConfirmFunc solicits explicit user confirmation before a successful image
// analysis is persisted. It may block (e.g. on a UI modal); returning false
// discards the result without persistence.
type ConfirmFunc func(instrument models.Instrument, prediction models.Prediction) bool

// Notifier delivers a completed trading plan to an external channel.
type Notifier interface {
	NotifyPlan(instrument models.Instrument, prediction models.Prediction) error
}

// Config carries the optional collaborators and behavior switches.
type Config struct {
	Confirm       ConfirmFunc // nil: image results are never persisted
	Notifier      Notifier    // nil: no plan notifications
	StaleGuard    bool        // discard superseded in-flight results
	MaxImageBytes int64       // image file size cap; 0 disables
}

// Orchestrator is the stateful core tying catalog, provider, predictor, and
// gallery together.
type Orchestrator struct {
	catalog   *catalog.Catalog
	provider  marketdata.Provider
	predictor Predictor
	gallery   *gallery.Store
	cfg       Config

	mu              sync.Mutex
	generation      uint64
	selected        models.Instrument
	snapshot        *models.MarketSnapshot
	snapshotLoading bool
	slot            Slot
	onUpdate        func()
}

// New creates an orchestrator. The initial slot is Idle with the catalog's
// first instrument selected but no sequence started.
func New(cat *catalog.Catalog, provider marketdata.Provider, predictor Predictor, store *gallery.Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		catalog:   cat,
		provider:  provider,
		predictor: predictor,
		gallery:   store,
		cfg:       cfg,
		selected:  cat.First(),
		slot:      Slot{State: StateIdle},
	}
}

// SetOnUpdate registers a listener invoked after every observable state
// change. Used by the UI to redraw.
func (o *Orchestrator) SetOnUpdate(fn func()) {
	o.mu.Lock()
	o.onUpdate = fn
	o.mu.Unlock()
}

// View is an immutable copy of the orchestrator-visible state.
type View struct {
	Instrument      models.Instrument
	Snapshot        *models.MarketSnapshot
	SnapshotLoading bool
	Slot            Slot
}

// View returns a copy of the current state for rendering.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		Instrument:      o.selected,
		SnapshotLoading: o.snapshotLoading,
		Slot:            o.slot,
	}
	if o.snapshot != nil {
		snap := *o.snapshot
		v.Snapshot = &snap
	}
	return v
}

// SavedImages lists the gallery entries for the currently selected instrument.
func (o *Orchestrator) SavedImages() []models.SavedImage {
	o.mu.Lock()
	id := o.selected.ID
	o.mu.Unlock()
	return o.gallery.List(id)
}

// DeleteSavedImage removes a gallery entry for the currently selected
// instrument.
func (o *Orchestrator) DeleteSavedImage(imageID string) error {
	o.mu.Lock()
	id := o.selected.ID
	o.mu.Unlock()

	if err := o.gallery.Delete(id, imageID); err != nil {
		return err
	}
	o.notify()
	return nil
}

// SelectInstrument switches the active instrument and starts a new market
// sequence: slot resets to Loading, the snapshot is fetched, and on success a
// market prediction is requested. A snapshot failure moves the slot straight
// to Failed without issuing a prediction request.
func (o *Orchestrator) SelectInstrument(ctx context.Context, id string) error {
	inst, err := o.catalog.Lookup(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.selected = inst
	o.snapshot = nil
	o.snapshotLoading = true
	o.slot = Slot{State: StateLoading}
	o.mu.Unlock()
	o.notify()

	go o.runMarketSequence(ctx, gen, inst)
	return nil
}

// runMarketSequence executes one snapshot→prediction sequence.
func (o *Orchestrator) runMarketSequence(ctx context.Context, gen uint64, inst models.Instrument) {
	reqID := uuid.New().String()
	logger.Debug("Market sequence %s started for %s (generation %d)", reqID, inst.ID, gen)

	snapshot, err := o.provider.FetchSnapshot(ctx, inst)
	if err != nil {
		logger.Error("Market sequence %s: snapshot fetch for %s failed: %v", reqID, inst.ID, err)
		o.apply(gen, func() {
			o.snapshotLoading = false
			o.slot = Slot{State: StateFailed, Reason: MsgMarketDataFailed}
		})
		return
	}

	if !o.apply(gen, func() {
		snap := snapshot
		o.snapshot = &snap
		o.snapshotLoading = false
	}) {
		return
	}

	prediction, err := o.predictor.PredictFromMarket(ctx, inst, snapshot)
	if err != nil {
		logger.Error("Market sequence %s: prediction for %s failed: %v", reqID, inst.ID, err)
		o.apply(gen, func() {
			o.slot = Slot{State: StateFailed, Reason: MsgMarketPredictionFailed}
		})
		return
	}

	if o.apply(gen, func() {
		o.slot = Slot{State: StateReady, Prediction: prediction}
	}) {
		logger.Info("Market sequence %s: %s plan ready for %s", reqID, prediction.Signal, inst.ID)
		o.notifyPlan(inst, *prediction)
	}
}

// AnalyzeImage validates and reads a chart image, then starts an image
// prediction sequence for the currently selected instrument.
//
// Input-validation failures (disallowed type, empty or oversized file) are
// returned to the caller for display near the upload control and leave the
// slot untouched; no backend request is made. A file read failure moves the
// slot to Failed. On success the slot goes Loading and the sequence proceeds
// asynchronously.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, path, instructions string) error {
	img, err := uploads.ReadFile(path, o.cfg.MaxImageBytes)
	if err != nil {
		if errors.Is(err, uploads.ErrUnsupportedType) || errors.Is(err, uploads.ErrEmptyImage) || errors.Is(err, uploads.ErrTooLarge) {
			logger.Warn("Rejected chart image %s: %v", path, err)
			return err
		}

		logger.Error("Failed to read chart image %s: %v", path, err)
		o.mu.Lock()
		o.generation++
		o.slot = Slot{State: StateFailed, Reason: MsgImageReadFailed}
		o.mu.Unlock()
		o.notify()
		return err
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	inst := o.selected
	o.slot = Slot{State: StateLoading}
	o.mu.Unlock()
	o.notify()

	go o.runImageSequence(ctx, gen, inst, img, instructions)
	return nil
}

// runImageSequence executes one image-analysis sequence including the
// confirmation-gated save.
func (o *Orchestrator) runImageSequence(ctx context.Context, gen uint64, inst models.Instrument, img *uploads.ChartImage, instructions string) {
	reqID := uuid.New().String()
	logger.Debug("Image sequence %s started for %s (%s, generation %d)", reqID, inst.ID, img.FileName, gen)

	prediction, err := o.predictor.PredictFromImage(ctx, inst, img.Data, img.MIMEType, instructions)
	if err != nil {
		logger.Error("Image sequence %s: analysis for %s failed: %v", reqID, inst.ID, err)
		o.apply(gen, func() {
			o.slot = Slot{State: StateFailed, Reason: MsgImageAnalysisFailed}
		})
		return
	}

	if !o.apply(gen, func() {
		o.slot = Slot{State: StateReady, Prediction: prediction}
	}) {
		return
	}

	logger.Info("Image sequence %s: %s plan ready for %s", reqID, prediction.Signal, inst.ID)
	o.notifyPlan(inst, *prediction)

	if o.cfg.Confirm == nil || !o.cfg.Confirm(inst, *prediction) {
		logger.Debug("Image sequence %s: save declined, result discarded", reqID)
		return
	}

	now := time.Now()
	saved := models.SavedImage{
		ID:           models.NewSavedImageID(now, img.FileName),
		AssetID:      inst.ID,
		DataURL:      img.DataURL(),
		Timestamp:    now,
		Instructions: instructions,
		Prediction:   *prediction,
	}

	if err := o.gallery.Add(saved); err != nil {
		logger.Warn("Image sequence %s: failed to save analysis to gallery: %v", reqID, err)
		return
	}
	logger.Info("Image sequence %s: analysis saved to %s gallery as %s", reqID, inst.ID, saved.ID)
	o.notify()
}

// apply runs fn under the lock if the sequence's generation is still current,
// then fires the update listener. With the stale guard disabled the generation
// check is skipped and the last writer wins. Returns whether fn ran.
func (o *Orchestrator) apply(gen uint64, fn func()) bool {
	o.mu.Lock()
	if o.cfg.StaleGuard && gen != o.generation {
		o.mu.Unlock()
		logger.Debug("Discarding stale result from generation %d (current %d)", gen, o.generation)
		return false
	}
	fn()
	o.mu.Unlock()
	o.notify()
	return true
}

// notify fires the update listener outside the lock.
func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.onUpdate
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// notifyPlan forwards a completed plan to the configured notifier, if any.
// Delivery failures are logged and never affect the slot.
func (o *Orchestrator) notifyPlan(inst models.Instrument, prediction models.Prediction) {
	if o.cfg.Notifier == nil {
		return
	}
	if err := o.cfg.Notifier.NotifyPlan(inst, prediction); err != nil {
		logger.Warn("Failed to deliver plan notification for %s: %v", inst.ID, err)
	}
}
