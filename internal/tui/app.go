// Package tui is the terminal frontend: the conversation list, the open
// thread, and the login form, drawn with tview on top of the sync engines.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/bus"
	"github.com/ltavares/feira/internal/config"
	"github.com/ltavares/feira/internal/gate"
	"github.com/ltavares/feira/internal/notify"
	"github.com/ltavares/feira/internal/poller"
	"github.com/ltavares/feira/internal/profile"
	"github.com/ltavares/feira/internal/store"
	intsync "github.com/ltavares/feira/internal/sync"
	"github.com/ltavares/feira/internal/tui/keys"
	"github.com/ltavares/feira/internal/tui/model"
	"github.com/ltavares/feira/internal/tui/views"
	"github.com/ltavares/feira/internal/unread"
)

const flashDuration = 5 * time.Second

// Deps is everything the TUI needs from the composed application.
type Deps struct {
	Profile    string
	Config     *config.Config
	Logger     *zap.Logger
	Bus        *bus.Bus
	Client     *api.Client
	Tokens     *profile.TokenStore
	Store      *store.DB
	Counter    *unread.Counter
	Gate       *gate.Gate
	List       *intsync.ListSync
	ListPoller *poller.Poller
	Notifier   *notify.Notifier

	// OnUnauthorized clears the session and publishes session.invalidated.
	OnUnauthorized func()
}

// App is the TUI shell.
type App struct {
	deps Deps

	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry
	flash    *model.Flash

	statusBar  *views.StatusBar
	convList   *views.ConversationList
	threadView *views.ThreadView
	composer   *views.Composer
	loginView  *views.LoginView

	ctx    context.Context
	cancel context.CancelFunc

	// Open thread state; nil when the list page is showing.
	thread       *intsync.ThreadSync
	threadPoller *poller.Poller
}

// NewApp builds the TUI.
func NewApp(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		deps:       deps,
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		registry:   keys.NewRegistry(),
		flash:      &model.Flash{},
		statusBar:  views.NewStatusBar(),
		convList:   views.NewConversationList(),
		threadView: views.NewThreadView(),
		composer:   views.NewComposer(),
		loginView:  views.NewLoginView(),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetProfile(deps.Profile)
	a.convList.SetSelfID(deps.Tokens.UserID())
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Binding{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddPage("chats", &keys.Binding{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:delete", Visible: true,
		Handler: func() { a.confirmDelete() },
	})
	a.registry.AddPage("chats", &keys.Binding{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.deps.ListPoller.ForceFetch() },
	})
	a.registry.AddPage("chats", &keys.Binding{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:logout", Visible: true,
		Handler: func() { a.logout() },
	})
	a.registry.AddPage("thread", &keys.Binding{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != "" {
			a.openThread(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		thread := a.thread
		if thread == nil {
			return
		}
		go func() {
			// Errors surface through the notifier; the pending entry is
			// already gone by the time Send returns.
			_ = thread.Send(a.ctx, text)
		}()
	})

	a.loginView.SetOnSubmit(a.login)
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.threadView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("chats", a.convList, true, true)
	a.pages.AddPage("thread", threadFlex, true, false)
	a.pages.AddPage("login", a.loginView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "thread":
				a.closeThread()
				a.showChats()
				// Leaving a thread means unread counts likely changed.
				a.deps.ListPoller.ForceFetch()
				return nil
			case "confirm":
				a.pages.RemovePage("confirm")
				a.app.SetFocus(a.convList)
				return nil
			}
		}

		// Text inputs get every key.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if currentPage == "login" {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

// Run starts the TUI and blocks until quit.
func (a *App) Run() error {
	screen, err := newFocusScreen(a.deps.Gate.SetVisible)
	if err != nil {
		return err
	}
	a.app.SetScreen(screen)

	if _, ok := a.deps.Tokens.Token(); ok {
		a.convList.Update(a.deps.List.Conversations())
		a.showChats()
	} else {
		a.showLogin("")
	}

	go a.eventLoop()

	defer a.cancel()
	return a.app.Run()
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// eventLoop applies bus events to the views and keeps the status bar fresh.
func (a *App) eventLoop() {
	events, unsub := a.deps.Bus.Subscribe("", 64)
	defer unsub()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-events:
			a.apply(evt)
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.renderStatusBar()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) apply(evt bus.Event) {
	switch evt.Kind {
	case bus.KindListUpdated:
		a.app.QueueUpdateDraw(func() {
			a.convList.SetSelfID(a.deps.Tokens.UserID())
			a.convList.Update(a.deps.List.Conversations())
			a.renderStatusBar()
		})
	case bus.KindThreadUpdated:
		update, ok := evt.Payload.(bus.ThreadUpdate)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			thread := a.thread
			if thread == nil || thread.ConversationID() != update.ConversationID {
				return
			}
			a.threadView.Update(thread.Messages(), thread.SelfID(), thread.State())
		})
	case bus.KindUnreadChanged:
		a.app.QueueUpdateDraw(func() {
			a.renderStatusBar()
		})
	case bus.KindNotifyError, bus.KindNotifySuccess:
		notice, ok := evt.Payload.(bus.Notice)
		if !ok {
			return
		}
		a.flash.Set(notice.Message, evt.Kind == bus.KindNotifyError, flashDuration)
		a.app.QueueUpdateDraw(func() {
			a.renderStatusBar()
		})
	case bus.KindSessionInvalidated:
		a.app.QueueUpdateDraw(func() {
			a.closeThread()
			a.showLogin("Your session has expired. Please log in again.")
			a.renderStatusBar()
		})
	}
}

func (a *App) renderStatusBar() {
	page, _ := a.pages.GetFrontPage()
	a.statusBar.SetHints(a.registry.Hints(page))
	a.statusBar.SetBadge(a.deps.Counter.FormatBadge())
	stale := page != "login" && a.deps.List.LastSyncAt().IsZero()
	var staleAt time.Time
	if stale {
		staleAt = a.deps.List.CachedSyncAt()
	}
	a.statusBar.SetStale(stale, staleAt)
	msg, isErr := a.flash.Get()
	a.statusBar.SetFlash(msg, isErr)
}

func (a *App) showChats() {
	a.pages.SwitchToPage("chats")
	a.app.SetFocus(a.convList)
	a.renderStatusBar()
}

func (a *App) showLogin(message string) {
	a.loginView.Reset()
	if message == "" {
		a.loginView.ClearMessage()
	} else {
		a.loginView.ShowMessage(message)
	}
	a.pages.SwitchToPage("login")
	a.app.SetFocus(a.loginView)
	a.renderStatusBar()
}

// openThread switches to a conversation, spinning up its own sync engine
// and poller. The poller dies with the view; the list poller keeps running
// underneath.
func (a *App) openThread(id string) {
	a.closeThread()

	thread := intsync.NewThreadSync(a.deps.Client, a.deps.Store, a.deps.List,
		a.deps.Notifier, a.deps.Bus, a.deps.Logger, id, a.deps.Tokens.UserID(),
		a.deps.OnUnauthorized)
	thread.LoadCached()

	p := poller.New(poller.Config{
		Name:     "thread",
		Interval: a.deps.Config.Poll.ThreadInterval(),
		Backoff:  a.deps.Config.Poll.Backoff(),
	}, thread.Refresh, a.deps.Gate.ShouldPoll, a.deps.OnUnauthorized,
		a.deps.Notifier, a.deps.Logger)

	a.thread = thread
	a.threadPoller = p
	a.deps.Gate.Register(p)

	if conv, ok := a.deps.List.Get(id); ok {
		other := conv.OtherParticipant(a.deps.Tokens.UserID())
		a.threadView.SetHeading(other.Name, conv.AdTitle)
	} else {
		a.threadView.SetHeading(id, "")
	}
	a.threadView.Update(thread.Messages(), thread.SelfID(), thread.State())

	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.threadView)
	a.renderStatusBar()

	p.Start(a.ctx)
}

func (a *App) closeThread() {
	if a.threadPoller != nil {
		a.threadPoller.Stop()
		a.deps.Gate.Unregister(a.threadPoller)
		a.threadPoller = nil
	}
	a.thread = nil
}

func (a *App) confirmDelete() {
	id := a.convList.SelectedConversation()
	if id == "" {
		return
	}
	conv, _ := a.deps.List.Get(id)
	label := views.ConversationLabel(conv, a.deps.Tokens.UserID())

	modal := tview.NewModal().
		SetText("Delete the conversation with " + label + "?").
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, buttonLabel string) {
			a.pages.RemovePage("confirm")
			a.app.SetFocus(a.convList)
			if buttonLabel != "Delete" {
				return
			}
			go func() {
				// Outcome lands as a notice plus a list update.
				_ = a.deps.List.Delete(a.ctx, id)
			}()
		})

	a.pages.AddPage("confirm", modal, true, true)
	a.app.SetFocus(modal)
}

func (a *App) login(email, password string) {
	go func() {
		sess, err := a.deps.Client.Login(a.ctx, email, password)
		if err != nil {
			a.deps.Logger.Warn("login failed", zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				a.loginView.ShowMessage(api.ErrorMessage(err))
			})
			return
		}
		cred := profile.Credential{Token: sess.Token, UserID: sess.UserID, Email: sess.Email}
		if err := a.deps.Tokens.Save(&cred); err != nil {
			a.deps.Logger.Error("saving credential failed", zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				a.loginView.ShowMessage("Could not save the session. Check the profile directory.")
			})
			return
		}
		a.deps.Logger.Info("logged in", zap.String("user", sess.UserID))
		a.app.QueueUpdateDraw(func() {
			a.convList.SetSelfID(sess.UserID)
			a.showChats()
		})
		a.deps.ListPoller.ForceFetch()
	}()
}

func (a *App) logout() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := a.deps.Client.Logout(ctx); err != nil {
			a.deps.Logger.Debug("server-side logout failed", zap.Error(err))
		}
		// Local teardown regardless of the server's answer.
		if a.deps.OnUnauthorized != nil {
			a.deps.OnUnauthorized()
		}
	}()
}
