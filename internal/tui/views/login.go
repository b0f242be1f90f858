package views

import (
	"strings"

	"github.com/rivo/tview"
)

// LoginView is the credential form shown when no valid session exists.
type LoginView struct {
	*tview.Flex
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(email, password string)
}

// NewLoginView creates the login form.
func NewLoginView() *LoginView {
	lv := &LoginView{}

	lv.message = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)

	lv.form = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil)
	lv.form.AddButton("Log in", lv.submit)
	lv.form.SetBorder(true).SetTitle(" Log in ")

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(lv.form, 9, 0, true).
		AddItem(lv.message, 1, 0, false).
		AddItem(tview.NewBox(), 0, 2, false)

	return lv
}

// SetOnSubmit sets the callback invoked with the entered credentials.
func (lv *LoginView) SetOnSubmit(fn func(email, password string)) {
	lv.onSubmit = fn
}

// ShowMessage displays a status line under the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.SetText("[red]" + tview.Escape(msg) + "[-]")
}

// ClearMessage removes the status line.
func (lv *LoginView) ClearMessage() {
	lv.message.SetText("")
}

// Reset blanks the password field, keeping the email for retry.
func (lv *LoginView) Reset() {
	if item := lv.form.GetFormItemByLabel("Password"); item != nil {
		item.(*tview.InputField).SetText("")
	}
}

func (lv *LoginView) submit() {
	if lv.onSubmit == nil {
		return
	}
	email := strings.TrimSpace(lv.form.GetFormItemByLabel("Email").(*tview.InputField).GetText())
	password := lv.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	if email == "" || password == "" {
		lv.ShowMessage("Email and password are required")
		return
	}
	lv.onSubmit(email, password)
}
