// Package ui provides the terminal dashboard: instrument selector, market
// data panel, prediction card, chart upload form, and the saved-analyses
// gallery. The UI renders orchestrator state and forwards user actions; it
// holds no domain state of its own.
package ui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/finlens/chartoracle/internal/catalog"
	"github.com/finlens/chartoracle/internal/models"
	"github.com/finlens/chartoracle/internal/orchestrator"
)

// App is the main TUI application.
type App struct {
	app   *tview.Application
	pages *tview.Pages

	orch *orchestrator.Orchestrator
	cat  *catalog.Catalog

	// Views
	selector       *tview.DropDown
	marketPanel    *MarketPanel
	predictionCard *PredictionCard
	uploadForm     *UploadForm
	galleryPanel   *GalleryPanel

	focusables []tview.Primitive
	focusIndex int

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan struct{}
}

// NewApp creates the dashboard around an orchestrator.
func NewApp(orch *orchestrator.Orchestrator, cat *catalog.Catalog) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		orch:    orch,
		cat:     cat,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan struct{}, 1),
	}

	a.marketPanel = NewMarketPanel()
	a.predictionCard = NewPredictionCard()
	a.galleryPanel = NewGalleryPanel(a.deleteImage)
	a.uploadForm = NewUploadForm(a.analyzeImage)
	a.setupSelector()
	a.setupLayout()
	a.setupKeyboard()

	// State changes arrive from orchestrator goroutines; coalesce them into
	// a channel so redraws never block the caller.
	orch.SetOnUpdate(func() {
		select {
		case a.updates <- struct{}{}:
		default:
		}
	})

	return a
}

// setupSelector builds the instrument drop-down.
func (a *App) setupSelector() {
	a.selector = tview.NewDropDown().SetLabel("Instrument: ")

	for _, inst := range a.cat.Instruments() {
		id := inst.ID
		a.selector.AddOption(fmt.Sprintf("%s (%s)", inst.Name, id), func() {
			if err := a.orch.SelectInstrument(a.ctx, id); err != nil {
				a.uploadForm.ShowError(err.Error())
			}
		})
	}
	a.selector.SetCurrentOption(0)
}

// setupLayout arranges the panels: market data and gallery on the left,
// prediction card and upload form on the right.
func (a *App) setupLayout() {
	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.marketPanel.Widget(), 0, 1, false).
		AddItem(a.galleryPanel.Widget(), 0, 1, false)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.predictionCard.Widget(), 0, 2, false).
		AddItem(a.uploadForm.Widget(), 0, 1, true)

	body := tview.NewFlex().
		AddItem(left, 0, 3, false).
		AddItem(right, 0, 2, true)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.selector, 1, 0, false).
		AddItem(body, 0, 1, true)

	a.pages.AddPage("main", root, true, true)
	a.app.SetRoot(a.pages, true)

	a.focusables = []tview.Primitive{a.selector, a.uploadForm.Widget(), a.galleryPanel.Widget()}
	a.focusIndex = 1
	a.app.SetFocus(a.focusables[a.focusIndex])
}

// setupKeyboard configures global shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyTab:
			// The confirmation modal keeps its own focus.
			if name, _ := a.pages.GetFrontPage(); name != "main" {
				return event
			}
			a.cycleFocus(1)
			return nil
		case tcell.KeyBacktab:
			if name, _ := a.pages.GetFrontPage(); name != "main" {
				return event
			}
			a.cycleFocus(-1)
			return nil
		case tcell.KeyRune:
			// Rune shortcuts only when no input field has focus.
			if _, ok := a.app.GetFocus().(*tview.InputField); ok {
				return event
			}
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.refreshSelection()
				return nil
			}
		}
		return event
	})
}

// cycleFocus moves keyboard focus between the interactive panels.
func (a *App) cycleFocus(step int) {
	n := len(a.focusables)
	a.focusIndex = (a.focusIndex + step + n) % n
	a.app.SetFocus(a.focusables[a.focusIndex])
}

// Run starts the dashboard, selects the initial instrument, and blocks until
// the application stops.
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.orch.SelectInstrument(a.ctx, a.cat.First().ID); err != nil {
		return err
	}

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Stop shuts the dashboard down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// updateLoop redraws the panels whenever the orchestrator reports a change.
func (a *App) updateLoop() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.updates:
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

// refresh re-renders all panels from the current orchestrator view.
func (a *App) refresh() {
	view := a.orch.View()
	a.marketPanel.Update(view)
	a.predictionCard.Update(view)
	a.galleryPanel.Update(view.Instrument, a.orch.SavedImages())
}

// refreshSelection re-runs the market sequence for the current instrument.
func (a *App) refreshSelection() {
	if err := a.orch.SelectInstrument(a.ctx, a.orch.View().Instrument.ID); err != nil {
		a.uploadForm.ShowError(err.Error())
	}
}

// analyzeImage forwards an upload to the orchestrator. Validation errors come
// back synchronously and are shown next to the form.
func (a *App) analyzeImage(path, instructions string) {
	go func() {
		if err := a.orch.AnalyzeImage(a.ctx, path, instructions); err != nil {
			a.app.QueueUpdateDraw(func() {
				a.uploadForm.ShowError(err.Error())
			})
		}
	}()
}

// deleteImage removes a saved analysis for the selected instrument.
func (a *App) deleteImage(imageID string) {
	if err := a.orch.DeleteSavedImage(imageID); err != nil {
		a.uploadForm.ShowError(err.Error())
	}
}

// ConfirmSave implements the orchestrator's save confirmation via a modal.
// It is called from an orchestrator goroutine and blocks until the user
// chooses.
func (a *App) ConfirmSave(instrument models.Instrument, prediction models.Prediction) bool {
	result := make(chan bool, 1)

	a.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(fmt.Sprintf("AI analysis complete (%s on %s).\nSave this chart and prediction to your gallery?",
				prediction.Signal, instrument.ID)).
			AddButtons([]string{"Save", "Discard"}).
			SetDoneFunc(func(_ int, label string) {
				a.pages.RemovePage("confirm")
				result <- label == "Save"
			})
		a.pages.AddPage("confirm", modal, true, true)
	})

	select {
	case <-a.ctx.Done():
		return false
	case saved := <-result:
		return saved
	}
}
