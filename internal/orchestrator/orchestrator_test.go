package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finlens/chartoracle/internal/catalog"
	"github.com/finlens/chartoracle/internal/gallery"
	"github.com/finlens/chartoracle/internal/models"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}

func floatPtr(v float64) *float64 {
	return &v
}

type fakeProvider struct {
	snapshot models.MarketSnapshot
	err      error
	calls    atomic.Int32
}

func (f *fakeProvider) FetchSnapshot(ctx context.Context, instrument models.Instrument) (models.MarketSnapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.MarketSnapshot{}, f.err
	}
	return f.snapshot, nil
}

type fakePredictor struct {
	marketFn    func(instrument models.Instrument, snapshot models.MarketSnapshot) (*models.Prediction, error)
	imageFn     func(instrument models.Instrument, imageData []byte, mimeType, instructions string) (*models.Prediction, error)
	marketCalls atomic.Int32
	imageCalls  atomic.Int32
}

func (f *fakePredictor) PredictFromMarket(ctx context.Context, instrument models.Instrument, snapshot models.MarketSnapshot) (*models.Prediction, error) {
	f.marketCalls.Add(1)
	if f.marketFn == nil {
		return nil, errors.New("no market prediction configured")
	}
	return f.marketFn(instrument, snapshot)
}

func (f *fakePredictor) PredictFromImage(ctx context.Context, instrument models.Instrument, imageData []byte, mimeType, instructions string) (*models.Prediction, error) {
	f.imageCalls.Add(1)
	if f.imageFn == nil {
		return nil, errors.New("no image prediction configured")
	}
	return f.imageFn(instrument, imageData, mimeType, instructions)
}

func validSnapshot() models.MarketSnapshot {
	return models.MarketSnapshot{
		Price:         65000,
		Change:        500,
		ChangePercent: 0.78,
		High:          65500,
		Low:           64000,
		Volume:        123456,
	}
}

func newTestStore(t *testing.T) *gallery.Store {
	t.Helper()
	return gallery.New(filepath.Join(t.TempDir(), "gallery.json"))
}

// waitForSlot polls until the slot reaches the wanted state or the deadline
// expires.
func waitForSlot(t *testing.T, o *Orchestrator, want SlotState) Slot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		slot := o.View().Slot
		if slot.State == want {
			return slot
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("slot never reached %v (currently %v)", want, o.View().Slot.State)
	return Slot{}
}

func writeChartImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.jpg")
	if err := os.WriteFile(path, jpegHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSelectInstrument_MarketPredictionReady(t *testing.T) {
	want := &models.Prediction{
		Signal:     models.SignalBuy,
		EntryPrice: floatPtr(65000),
		TakeProfit: floatPtr(66000),
		StopLoss:   floatPtr(65500),
		Reasoning:  "bullish structure",
	}

	provider := &fakeProvider{snapshot: validSnapshot()}
	predictor := &fakePredictor{
		marketFn: func(models.Instrument, models.MarketSnapshot) (*models.Prediction, error) {
			return want, nil
		},
	}

	o := New(catalog.Default(), provider, predictor, newTestStore(t), Config{StaleGuard: true})

	if err := o.SelectInstrument(context.Background(), "BTCUSD"); err != nil {
		t.Fatalf("SelectInstrument failed: %v", err)
	}

	slot := waitForSlot(t, o, StateReady)
	if slot.Prediction == nil {
		t.Fatal("Ready slot has no prediction")
	}
	if slot.Prediction.Signal != models.SignalBuy {
		t.Errorf("Signal = %s, want BUY", slot.Prediction.Signal)
	}
	if *slot.Prediction.EntryPrice != 65000 || *slot.Prediction.TakeProfit != 66000 || *slot.Prediction.StopLoss != 65500 {
		t.Errorf("targets = %v/%v/%v, want 65000/66000/65500",
			*slot.Prediction.EntryPrice, *slot.Prediction.TakeProfit, *slot.Prediction.StopLoss)
	}

	view := o.View()
	if view.Instrument.ID != "BTCUSD" {
		t.Errorf("selected instrument = %s, want BTCUSD", view.Instrument.ID)
	}
	if view.Snapshot == nil {
		t.Error("snapshot missing after successful sequence")
	}
}

func TestSelectInstrument_SnapshotFailureSkipsPrediction(t *testing.T) {
	provider := &fakeProvider{err: errors.New("feed unavailable")}
	predictor := &fakePredictor{}

	o := New(catalog.Default(), provider, predictor, newTestStore(t), Config{StaleGuard: true})

	if err := o.SelectInstrument(context.Background(), "ETHUSD"); err != nil {
		t.Fatalf("SelectInstrument failed: %v", err)
	}

	slot := waitForSlot(t, o, StateFailed)
	if slot.Reason != MsgMarketDataFailed {
		t.Errorf("Reason = %q, want %q", slot.Reason, MsgMarketDataFailed)
	}
	if got := predictor.marketCalls.Load(); got != 0 {
		t.Errorf("prediction requested %d times after snapshot failure, want 0", got)
	}
}

func TestSelectInstrument_UnknownInstrument(t *testing.T) {
	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, &fakePredictor{}, newTestStore(t), Config{StaleGuard: true})

	if err := o.SelectInstrument(context.Background(), "DOGEUSD"); err == nil {
		t.Error("SelectInstrument(unknown) error = nil, want error")
	}
}

func TestSelectInstrument_PredictionFailureCollapsesMessage(t *testing.T) {
	provider := &fakeProvider{snapshot: validSnapshot()}
	predictor := &fakePredictor{
		marketFn: func(models.Instrument, models.MarketSnapshot) (*models.Prediction, error) {
			return nil, errors.New("backend returned 500: internal")
		},
	}

	o := New(catalog.Default(), provider, predictor, newTestStore(t), Config{StaleGuard: true})
	if err := o.SelectInstrument(context.Background(), "BTCUSD"); err != nil {
		t.Fatal(err)
	}

	slot := waitForSlot(t, o, StateFailed)
	if slot.Reason != MsgMarketPredictionFailed {
		t.Errorf("Reason = %q, want the generic prediction failure message", slot.Reason)
	}
}

func TestAnalyzeImage_DeclinedSaveLeavesGalleryUnchanged(t *testing.T) {
	hold := &models.Prediction{Signal: models.SignalHold, Reasoning: "range-bound"}

	var gotInstructions string
	predictor := &fakePredictor{
		imageFn: func(_ models.Instrument, _ []byte, mimeType, instructions string) (*models.Prediction, error) {
			if mimeType != "image/jpeg" {
				t.Errorf("mimeType = %s, want image/jpeg", mimeType)
			}
			gotInstructions = instructions
			return hold, nil
		},
	}

	store := newTestStore(t)
	confirmed := false
	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, store, Config{
		StaleGuard: true,
		Confirm: func(models.Instrument, models.Prediction) bool {
			confirmed = true
			return false
		},
	})

	if err := o.AnalyzeImage(context.Background(), writeChartImage(t), "focus on RSI"); err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}

	slot := waitForSlot(t, o, StateReady)
	if slot.Prediction.Signal != models.SignalHold {
		t.Errorf("Signal = %s, want HOLD", slot.Prediction.Signal)
	}
	if gotInstructions != "focus on RSI" {
		t.Errorf("instructions = %q, want %q", gotInstructions, "focus on RSI")
	}

	// The confirmation must have been solicited and the declined result
	// discarded without persistence.
	deadline := time.Now().Add(time.Second)
	for !confirmed && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !confirmed {
		t.Fatal("save confirmation was never solicited")
	}
	if got := len(store.List("BTCUSD")); got != 0 {
		t.Errorf("gallery has %d images after declined save, want 0", got)
	}
}

func TestAnalyzeImage_ConfirmedSavePersists(t *testing.T) {
	hold := &models.Prediction{Signal: models.SignalHold, Reasoning: "wait for breakout"}
	predictor := &fakePredictor{
		imageFn: func(models.Instrument, []byte, string, string) (*models.Prediction, error) {
			return hold, nil
		},
	}

	store := newTestStore(t)
	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, store, Config{
		StaleGuard: true,
		Confirm:    func(models.Instrument, models.Prediction) bool { return true },
	})

	if err := o.AnalyzeImage(context.Background(), writeChartImage(t), "mark support zones"); err != nil {
		t.Fatal(err)
	}
	waitForSlot(t, o, StateReady)

	var imgs []models.SavedImage
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		imgs = store.List("BTCUSD")
		if len(imgs) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if len(imgs) != 1 {
		t.Fatalf("gallery has %d images after confirmed save, want 1", len(imgs))
	}

	saved := imgs[0]
	if saved.AssetID != "BTCUSD" {
		t.Errorf("AssetID = %s, want BTCUSD", saved.AssetID)
	}
	if saved.Instructions != "mark support zones" {
		t.Errorf("Instructions = %q", saved.Instructions)
	}
	if saved.Prediction.Signal != models.SignalHold {
		t.Errorf("frozen prediction signal = %s, want HOLD", saved.Prediction.Signal)
	}
	if saved.DataURL == "" {
		t.Error("saved image missing data URL")
	}
}

func TestAnalyzeImage_RejectsDisallowedTypeBeforeRequest(t *testing.T) {
	predictor := &fakePredictor{}
	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, newTestStore(t), Config{StaleGuard: true})

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := o.AnalyzeImage(context.Background(), path, ""); err == nil {
		t.Fatal("AnalyzeImage(pdf) error = nil, want error")
	}

	if got := predictor.imageCalls.Load(); got != 0 {
		t.Errorf("image prediction requested %d times for rejected upload, want 0", got)
	}
	if state := o.View().Slot.State; state != StateIdle {
		t.Errorf("slot state = %v after rejected upload, want Idle", state)
	}
}

func TestAnalyzeImage_ReadFailureFailsSlot(t *testing.T) {
	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, &fakePredictor{}, newTestStore(t), Config{StaleGuard: true})

	err := o.AnalyzeImage(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "")
	if err == nil {
		t.Fatal("AnalyzeImage(missing) error = nil, want error")
	}

	slot := o.View().Slot
	if slot.State != StateFailed {
		t.Fatalf("slot state = %v, want Failed", slot.State)
	}
	if slot.Reason != MsgImageReadFailed {
		t.Errorf("Reason = %q, want %q", slot.Reason, MsgImageReadFailed)
	}
}

func TestStaleGuard_DiscardsSupersededResult(t *testing.T) {
	release := make(chan struct{})
	slowPred := &models.Prediction{Signal: models.SignalSell, Reasoning: "stale"}
	fastPred := &models.Prediction{Signal: models.SignalBuy, Reasoning: "fresh"}

	predictor := &fakePredictor{
		marketFn: func(inst models.Instrument, _ models.MarketSnapshot) (*models.Prediction, error) {
			if inst.ID == "BTCUSD" {
				<-release
				return slowPred, nil
			}
			return fastPred, nil
		},
	}

	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, newTestStore(t), Config{StaleGuard: true})

	if err := o.SelectInstrument(context.Background(), "BTCUSD"); err != nil {
		t.Fatal(err)
	}
	// Give the first sequence time to reach the blocking prediction call.
	time.Sleep(10 * time.Millisecond)

	if err := o.SelectInstrument(context.Background(), "ETHUSD"); err != nil {
		t.Fatal(err)
	}
	slot := waitForSlot(t, o, StateReady)
	if slot.Prediction.Reasoning != "fresh" {
		t.Fatalf("slot holds %q before stale release, want fresh result", slot.Prediction.Reasoning)
	}

	close(release)
	time.Sleep(50 * time.Millisecond)

	slot = o.View().Slot
	if slot.Prediction == nil || slot.Prediction.Reasoning != "fresh" {
		t.Error("stale result overwrote the newer one despite the guard")
	}
}

func TestStaleGuardDisabled_LastWriterWins(t *testing.T) {
	release := make(chan struct{})
	slowPred := &models.Prediction{Signal: models.SignalSell, Reasoning: "stale"}
	fastPred := &models.Prediction{Signal: models.SignalBuy, Reasoning: "fresh"}

	predictor := &fakePredictor{
		marketFn: func(inst models.Instrument, _ models.MarketSnapshot) (*models.Prediction, error) {
			if inst.ID == "BTCUSD" {
				<-release
				return slowPred, nil
			}
			return fastPred, nil
		},
	}

	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, newTestStore(t), Config{StaleGuard: false})

	if err := o.SelectInstrument(context.Background(), "BTCUSD"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := o.SelectInstrument(context.Background(), "ETHUSD"); err != nil {
		t.Fatal(err)
	}
	waitForSlot(t, o, StateReady)

	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		slot := o.View().Slot
		if slot.Prediction != nil && slot.Prediction.Reasoning == "stale" {
			return // original unguarded behavior reproduced
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("late result never overwrote the slot with the guard disabled")
}

type recordingNotifier struct {
	calls atomic.Int32
}

func (r *recordingNotifier) NotifyPlan(models.Instrument, models.Prediction) error {
	r.calls.Add(1)
	return nil
}

func TestNotifierReceivesCompletedPlan(t *testing.T) {
	notifier := &recordingNotifier{}
	predictor := &fakePredictor{
		marketFn: func(models.Instrument, models.MarketSnapshot) (*models.Prediction, error) {
			return &models.Prediction{Signal: models.SignalHold, Reasoning: "quiet"}, nil
		},
	}

	o := New(catalog.Default(), &fakeProvider{snapshot: validSnapshot()}, predictor, newTestStore(t), Config{
		StaleGuard: true,
		Notifier:   notifier,
	})

	if err := o.SelectInstrument(context.Background(), "BTCUSD"); err != nil {
		t.Fatal(err)
	}
	waitForSlot(t, o, StateReady)

	deadline := time.Now().Add(time.Second)
	for notifier.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if notifier.calls.Load() != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls.Load())
	}
}
