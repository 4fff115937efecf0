package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/finlens/chartoracle/internal/models"
)

// GalleryPanel lists the saved analyses for the selected instrument. Pressing
// Delete or 'd' removes the highlighted entry.
type GalleryPanel struct {
	list     *tview.List
	deleteFn func(imageID string)
	imageIDs []string
}

// NewGalleryPanel creates an empty gallery panel. deleteFn is invoked with the
// saved image ID when the user deletes an entry.
func NewGalleryPanel(deleteFn func(imageID string)) *GalleryPanel {
	p := &GalleryPanel{
		list:     tview.NewList().ShowSecondaryText(true),
		deleteFn: deleteFn,
	}
	p.list.SetTitle(" Gallery ").SetBorder(true)

	p.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyDelete || (event.Key() == tcell.KeyRune && event.Rune() == 'd') {
			p.deleteCurrent()
			return nil
		}
		return event
	})

	return p
}

// Widget returns the tview primitive.
func (p *GalleryPanel) Widget() tview.Primitive {
	return p.list
}

// Update re-renders the panel with the saved analyses for one instrument.
func (p *GalleryPanel) Update(instrument models.Instrument, imgs []models.SavedImage) {
	current := p.list.GetCurrentItem()

	p.list.Clear()
	p.list.SetTitle(fmt.Sprintf(" Gallery: %s (%d) ", instrument.ID, len(imgs)))

	p.imageIDs = p.imageIDs[:0]
	for _, img := range imgs {
		p.imageIDs = append(p.imageIDs, img.ID)
		when := img.Timestamp.Format("2006-01-02 15:04")
		main := fmt.Sprintf("%s  %s", img.Prediction.Signal, when)
		secondary := truncate(img.Prediction.Reasoning, 60)
		if img.Instructions != "" {
			secondary = truncate(img.Instructions, 60)
		}
		p.list.AddItem(main, secondary, 0, nil)
	}

	if current >= 0 && current < p.list.GetItemCount() {
		p.list.SetCurrentItem(current)
	}
}

func (p *GalleryPanel) deleteCurrent() {
	idx := p.list.GetCurrentItem()
	if idx < 0 || idx >= len(p.imageIDs) {
		return
	}
	p.deleteFn(p.imageIDs[idx])
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
