package internal

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"seccam/internal/storage"
)

// tui model struct for all the components and modes
type TUIModel struct {
	textInput textinput.Model

	serverURL   string
	videoFormat string
	downloadDir string
	startPage   string

	session *SessionManager
	stream  *StreamClient
	store   *storage.Store
	logger  *zap.Logger

	// notifyRenewal pokes the bubbletea event loop when the renewal timer
	// fires; wired to program.Send in RunClient.
	notifyRenewal func()

	mode            appMode
	authIntent      authIntent
	username        string
	pendingUsername string
	loading         bool
	notices         []notice

	// live page
	rooms      []string
	subs       map[string]*Subscription
	liveFrames map[string]string

	// videos page
	videos        []string
	starred       map[string]bool
	selectedVideo int
	videoPage     int
	space         *SpaceUsage

	// spaceGen identifies the current space-usage poll chain; messages from a
	// superseded chain are dropped so page toggles cannot stack polls.
	spaceGen int
}

type appMode int

const (
	modeAuthMenu appMode = iota
	modeAuthUsername
	modeAuthPassword
	modeLive
	modeVideos
)

type authIntent int

const (
	authIntentLogin authIntent = iota
	authIntentSignup
)

type notice struct {
	text string
	ts   int64
}

const videosPerPage = 5

// ClientOptions carries everything RunClient needs; internal/app assembles it
// from the loaded configuration.
type ClientOptions struct {
	ServerURL   string
	Username    string
	VideoFormat string
	DownloadDir string
	Page        string
	Store       *storage.Store
	Logger      *zap.Logger
}

func NewTUIModel(opts ClientOptions) (*TUIModel, error) {
	streamURL, err := buildStreamURL(opts.ServerURL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.CharLimit = 0
	input.Prompt = "user> "
	input.Placeholder = "Enter your username…"
	input.Focus()

	var tokenStore TokenStore
	if opts.Store != nil {
		tokenStore = opts.Store
	}

	model := &TUIModel{
		textInput:   input,
		serverURL:   opts.ServerURL,
		videoFormat: opts.VideoFormat,
		downloadDir: opts.DownloadDir,
		startPage:   opts.Page,
		username:    opts.Username,
		session:     NewSessionManager(opts.ServerURL, tokenStore, logger),
		stream:      NewStreamClient(streamURL, logger),
		store:       opts.Store,
		logger:      logger,
		mode:        modeAuthMenu,
		subs:        make(map[string]*Subscription),
		liveFrames:  make(map[string]string),
		starred:     make(map[string]bool),
	}
	return model, nil
}

// Init restores a cached token if one exists; otherwise we probe whether the
// server has any registered users so a fresh install lands on the signup
// prompt instead of a login it cannot pass.
func (model *TUIModel) Init() tea.Cmd {
	if model.session.Restore(context.Background()) {
		model.loading = true
		return model.validateCmd()
	}
	return model.numUsersCmd()
}

func (model *TUIModel) addNotice(text string) {
	model.notices = append(model.notices, notice{text: text, ts: time.Now().Unix()})
	if len(model.notices) > 4 {
		model.notices = model.notices[len(model.notices)-4:]
	}
}

func (model *TUIModel) clearNotices() {
	model.notices = nil
}

// teardownSession is the single path out of an authenticated state: pending
// renewal canceled, every room left, token cleared. Nothing authenticated may
// run after this.
func (model *TUIModel) teardownSession() {
	model.session.CancelRenewal()
	model.teardownLive()
	model.session.Logout(context.Background())
	model.rooms = nil
	model.videos = nil
	model.space = nil
}

func (model *TUIModel) teardownLive() {
	for room, sub := range model.subs {
		model.stream.Unsubscribe(sub)
		delete(model.subs, room)
	}
	model.liveFrames = make(map[string]string)
}

// RunClient launches the bubbletea program and wires the session's renewal
// timer into its event loop.
func RunClient(opts ClientOptions) error {
	model, err := NewTUIModel(opts)
	if err != nil {
		return err
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	model.notifyRenewal = func() {
		program.Send(renewalDueMsg{})
	}
	_, err = program.Run()
	model.session.CancelRenewal()
	model.stream.Close()
	return err
}
