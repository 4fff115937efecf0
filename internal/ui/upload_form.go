package ui

import (
	"strings"

	"github.com/rivo/tview"
)

// UploadForm takes a chart image path and optional analysis instructions and
// submits them for AI analysis.
type UploadForm struct {
	form      *tview.Form
	analyzeFn func(path, instructions string)
}

// NewUploadForm creates the upload form. analyzeFn receives the image path and
// the user's instructions when the form is submitted.
func NewUploadForm(analyzeFn func(path, instructions string)) *UploadForm {
	f := &UploadForm{
		form:      tview.NewForm(),
		analyzeFn: analyzeFn,
	}
	f.form.SetTitle(" Analyze Chart ").SetBorder(true)

	f.form.
		AddInputField("Image path", "", 0, nil, nil).
		AddInputField("Instructions", "", 0, nil, nil).
		AddButton("Analyze", f.submit)

	return f
}

// Widget returns the tview primitive.
func (f *UploadForm) Widget() tview.Primitive {
	return f.form
}

// ShowError displays a validation or action error next to the form.
func (f *UploadForm) ShowError(msg string) {
	f.clearMessage()
	f.form.AddTextView("", "[red]"+tview.Escape(msg)+"[-]", 0, 1, true, false)
}

func (f *UploadForm) submit() {
	f.clearMessage()

	path := strings.TrimSpace(f.pathField().GetText())
	if path == "" {
		f.ShowError("Enter a chart image path.")
		return
	}
	instructions := strings.TrimSpace(f.instructionsField().GetText())

	f.analyzeFn(path, instructions)
}

func (f *UploadForm) pathField() *tview.InputField {
	return f.form.GetFormItem(0).(*tview.InputField)
}

func (f *UploadForm) instructionsField() *tview.InputField {
	return f.form.GetFormItem(1).(*tview.InputField)
}

// clearMessage removes any error text view appended after the two input
// fields.
func (f *UploadForm) clearMessage() {
	for f.form.GetFormItemCount() > 2 {
		f.form.RemoveFormItem(f.form.GetFormItemCount() - 1)
	}
}
