package internal

import (
	"errors"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// these are bubbletea messages that represent asynchronous events: auth
// results, session lifecycle ticks, and frames arriving on the live channel.
type (
	numUsersMsg struct {
		users int
		err   error
	}
	authResultMsg struct{ err error }
	registeredMsg struct{ err error }
	validatedMsg  struct{ valid bool }
	ttlMsg        struct{ ttl int }
	renewalDueMsg struct{}
	renewedMsg    struct{ err error }

	roomsMsg struct {
		rooms []string
		err   error
	}
	subscribedMsg struct {
		room string
		sub  *Subscription
		err  error
	}
	frameMsg struct {
		room  string
		subID string
		ansi  string
	}
	streamClosedMsg struct {
		room  string
		subID string
	}
	reconnectMsg struct{}

	videosMsg struct {
		videos   []string
		err      error
		cacheErr error
	}
	starredCacheMsg struct {
		starred map[string]bool
		err     error
	}
	videoInfoMsg struct {
		info *VideoInfo
		err  error
	}
	starToggledMsg struct {
		filename string
		starred  bool
		err      error
	}
	videoDeletedMsg struct {
		filename string
		err      error
	}
	downloadedMsg struct {
		path string
		err  error
	}
	spaceUsageMsg struct {
		gen   int
		usage *SpaceUsage
		err   error
	}
	spaceTickMsg struct{ gen int }
)

// Update reacts to key presses and asynchronous events to drive the
// application state.
func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		return model.updateKey(typedMessage)

	case numUsersMsg:
		if typedMessage.err != nil {
			model.addNotice("Unable to reach the server. Please try again later.")
			return model, nil
		}
		if typedMessage.users == 0 {
			model.addNotice("No account exists yet. Press 2 to create the first one.")
		}
		return model, nil

	case authResultMsg:
		model.loading = false
		if typedMessage.err != nil {
			if errors.Is(typedMessage.err, errUnauthorized) {
				model.addNotice("Invalid username or password.")
			} else {
				model.addNotice("Unable to reach the server. Please try again later.")
			}
			model.enterAuthPrompt(modeAuthUsername)
			return model, nil
		}
		// Fresh token, unknown validity: run the full cycle before touching
		// anything authenticated.
		model.loading = true
		return model, model.validateCmd()

	case registeredMsg:
		model.loading = false
		if typedMessage.err != nil {
			model.addNotice("Registration failed: " + typedMessage.err.Error())
			model.enterAuthPrompt(modeAuthUsername)
			return model, nil
		}
		model.addNotice("Account created. Log in to continue.")
		model.authIntent = authIntentLogin
		model.enterAuthPrompt(modeAuthUsername)
		return model, nil

	case validatedMsg:
		model.loading = false
		if !typedMessage.valid {
			return model, model.redirectToEntry("Session expired. Please log in again.")
		}
		if model.mode == modeLive || model.mode == modeVideos {
			// Re-validation after renewal: the page stays; only the TTL
			// cycle restarts.
			return model, model.ttlCmd()
		}
		return model, tea.Batch(model.ttlCmd(), model.enterStartPage())

	case ttlMsg:
		if typedMessage.ttl < 0 {
			return model, model.redirectToEntry("Session expired. Please log in again.")
		}
		model.session.ScheduleRenewal(typedMessage.ttl, model.notifyRenewal)
		return model, nil

	case renewalDueMsg:
		return model, model.renewCmd()

	case renewedMsg:
		// Renewal failure is silent here: validation decides whether the old
		// token still stands. Either way the cycle restarts at unknown.
		return model, model.validateCmd()

	case roomsMsg:
		model.loading = false
		if typedMessage.err != nil {
			if errors.Is(typedMessage.err, errUnauthorized) {
				return model, model.redirectToEntry("Session expired. Please log in again.")
			}
			model.addNotice("Failed to list cameras: " + typedMessage.err.Error())
			return model, model.scheduleReconnect()
		}
		rooms := append([]string(nil), typedMessage.rooms...)
		sort.Strings(rooms)
		model.rooms = rooms
		var cmds []tea.Cmd
		for _, room := range rooms {
			if _, watching := model.subs[room]; !watching {
				cmds = append(cmds, model.subscribeCmd(room))
			}
		}
		return model, tea.Batch(cmds...)

	case subscribedMsg:
		if typedMessage.err != nil {
			model.addNotice("Camera " + typedMessage.room + " unavailable: " + typedMessage.err.Error())
			return model, model.scheduleReconnect()
		}
		model.subs[typedMessage.room] = typedMessage.sub
		return model, model.waitFrameCmd(typedMessage.sub)

	case frameMsg:
		sub := model.subs[typedMessage.room]
		if sub == nil || sub.ID != typedMessage.subID {
			// A stale reader from a subscription we already replaced.
			return model, nil
		}
		if typedMessage.ansi != "" {
			model.liveFrames[typedMessage.room] = typedMessage.ansi
		}
		return model, model.waitFrameCmd(sub)

	case streamClosedMsg:
		sub := model.subs[typedMessage.room]
		if sub == nil || sub.ID != typedMessage.subID {
			return model, nil
		}
		delete(model.subs, typedMessage.room)
		if model.mode == modeLive {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case reconnectMsg:
		if model.mode == modeLive && model.session.AuthToken() != "" {
			return model, model.roomsCmd()
		}
		return model, nil

	case videosMsg:
		model.loading = false
		if typedMessage.err != nil {
			if errors.Is(typedMessage.err, errUnauthorized) {
				return model, model.redirectToEntry("Session expired. Please log in again.")
			}
			model.addNotice("Failed to load recordings: " + typedMessage.err.Error())
			return model, nil
		}
		if typedMessage.cacheErr != nil {
			model.logger.Warn("caching video list failed", zap.Error(typedMessage.cacheErr))
		}
		model.videos = typedMessage.videos
		model.selectedVideo = 0
		model.videoPage = 0
		return model, tea.Batch(model.visibleVideoInfoCmds()...)

	case starredCacheMsg:
		if typedMessage.err == nil {
			for name, starred := range typedMessage.starred {
				model.starred[name] = starred
			}
		}
		return model, nil

	case videoInfoMsg:
		// Best effort: a failed info fetch keeps the cached star state.
		if typedMessage.err == nil && typedMessage.info != nil {
			model.starred[typedMessage.info.Filename] = typedMessage.info.Starred
		}
		return model, nil

	case starToggledMsg:
		if typedMessage.err != nil {
			model.addNotice("Could not update star status.")
			return model, nil
		}
		model.starred[typedMessage.filename] = typedMessage.starred
		return model, nil

	case videoDeletedMsg:
		if typedMessage.err != nil {
			model.addNotice("Delete failed: " + typedMessage.err.Error())
			return model, nil
		}
		model.removeVideo(typedMessage.filename)
		model.addNotice("Deleted " + typedMessage.filename + ".")
		return model, model.nextSpaceCmd()

	case downloadedMsg:
		model.loading = false
		if typedMessage.err != nil {
			model.addNotice("Download failed: " + typedMessage.err.Error())
			return model, nil
		}
		model.addNotice("Saved to " + typedMessage.path)
		return model, nil

	case spaceUsageMsg:
		if typedMessage.gen != model.spaceGen {
			// Response from a superseded poll chain; let it die.
			return model, nil
		}
		if typedMessage.err == nil && typedMessage.usage != nil {
			model.space = typedMessage.usage
			for _, warning := range typedMessage.usage.Warnings {
				model.addNotice(warning)
			}
			for _, removed := range typedMessage.usage.RemovedVideos {
				model.addNotice("Auto-removed: " + removed)
			}
		}
		if model.mode == modeVideos {
			return model, model.spaceTickCmd(typedMessage.gen)
		}
		return model, nil

	case spaceTickMsg:
		if typedMessage.gen != model.spaceGen || model.mode != modeVideos {
			return model, nil
		}
		return model, model.spaceUsageCmd(typedMessage.gen)
	}
	return model, nil
}

func (model *TUIModel) updateKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any mode should respect Ctrl+C so the user can bail out quickly. The
	// token stays persisted; only the live subscriptions and the renewal
	// timer are torn down.
	if key.Type == tea.KeyCtrlC {
		return model, model.quit()
	}

	switch model.mode {
	case modeAuthMenu:
		switch key.String() {
		case "1", "l", "L":
			model.authIntent = authIntentLogin
			model.enterAuthPrompt(modeAuthUsername)
			return model, textinput.Blink
		case "2", "s", "S":
			model.authIntent = authIntentSignup
			model.enterAuthPrompt(modeAuthUsername)
			return model, textinput.Blink
		case "q", "Q", "esc":
			return model, model.quit()
		}
		return model, nil

	case modeAuthUsername:
		switch key.Type {
		case tea.KeyEnter:
			trimmed := strings.TrimSpace(model.textInput.Value())
			if trimmed == "" {
				return model, nil
			}
			model.pendingUsername = trimmed
			model.enterAuthPrompt(modeAuthPassword)
			return model, textinput.Blink
		case tea.KeyEsc:
			model.enterAuthMenu()
			return model, nil
		}
		var cmd tea.Cmd
		model.textInput, cmd = model.textInput.Update(key)
		return model, cmd

	case modeAuthPassword:
		switch key.Type {
		case tea.KeyEnter:
			password := model.textInput.Value()
			if strings.TrimSpace(password) == "" {
				return model, nil
			}
			model.username = model.pendingUsername
			model.textInput.SetValue("")
			model.loading = true
			if model.authIntent == authIntentSignup {
				return model, model.registerCmd(model.pendingUsername, password)
			}
			return model, model.loginCmd(model.pendingUsername, password)
		case tea.KeyEsc:
			model.enterAuthMenu()
			return model, nil
		}
		var cmd tea.Cmd
		model.textInput, cmd = model.textInput.Update(key)
		return model, cmd

	case modeLive:
		switch key.String() {
		case "v", "V":
			return model, model.enterVideos()
		case "r", "R":
			model.clearNotices()
			return model, model.roomsCmd()
		case "o", "O":
			model.teardownSession()
			model.enterAuthMenu()
			model.addNotice("Logged out.")
			return model, nil
		case "q", "Q", "esc":
			return model, model.quit()
		}
		return model, nil

	case modeVideos:
		switch key.String() {
		case "esc", "b", "B":
			model.mode = modeLive
			model.loading = true
			return model, model.roomsCmd()
		case "up", "k":
			model.moveVideoSelection(-1)
			return model, tea.Batch(model.visibleVideoInfoCmds()...)
		case "down", "j":
			model.moveVideoSelection(1)
			return model, tea.Batch(model.visibleVideoInfoCmds()...)
		case "p", "left":
			model.moveVideoSelection(-videosPerPage)
			return model, tea.Batch(model.visibleVideoInfoCmds()...)
		case "n", "right":
			model.moveVideoSelection(videosPerPage)
			return model, tea.Batch(model.visibleVideoInfoCmds()...)
		case "s", "S":
			if name, ok := model.selectedVideoName(); ok {
				return model, model.toggleStarCmd(name, !model.starred[name])
			}
			return model, nil
		case "d", "D":
			if name, ok := model.selectedVideoName(); ok {
				return model, model.deleteVideoCmd(name)
			}
			return model, nil
		case "enter":
			if name, ok := model.selectedVideoName(); ok {
				model.loading = true
				return model, model.downloadVideoCmd(name)
			}
			return model, nil
		case "o", "O":
			model.teardownSession()
			model.enterAuthMenu()
			model.addNotice("Logged out.")
			return model, nil
		case "q", "Q":
			return model, model.quit()
		}
		return model, nil
	}
	return model, nil
}

// redirectToEntry is the fail-closed path: every session failure ends here,
// with the token gone and the login surface up.
func (model *TUIModel) redirectToEntry(message string) tea.Cmd {
	model.teardownSession()
	model.enterAuthMenu()
	model.addNotice(message)
	return nil
}

func (model *TUIModel) quit() tea.Cmd {
	model.session.CancelRenewal()
	model.teardownLive()
	model.stream.Close()
	return tea.Quit
}

func (model *TUIModel) enterAuthMenu() {
	model.mode = modeAuthMenu
	model.textInput.Blur()
	model.textInput.SetValue("")
	model.textInput.Prompt = ""
	model.textInput.Placeholder = ""
	model.textInput.EchoMode = textinput.EchoNormal
	model.loading = false
}

func (model *TUIModel) enterAuthPrompt(mode appMode) {
	model.mode = mode
	switch mode {
	case modeAuthUsername:
		model.textInput.SetValue(model.username)
		model.textInput.Prompt = "user> "
		model.textInput.Placeholder = "Enter your username…"
		model.textInput.EchoMode = textinput.EchoNormal
	case modeAuthPassword:
		model.textInput.SetValue("")
		model.textInput.Prompt = "pass> "
		model.textInput.Placeholder = "Enter your password…"
		model.textInput.EchoMode = textinput.EchoPassword
	}
	model.textInput.Focus()
}

func (model *TUIModel) enterStartPage() tea.Cmd {
	if model.startPage == "videos" {
		return model.enterVideos()
	}
	model.mode = modeLive
	model.loading = true
	model.textInput.Blur()
	return model.roomsCmd()
}

func (model *TUIModel) enterVideos() tea.Cmd {
	model.teardownLive()
	model.mode = modeVideos
	model.loading = true
	model.textInput.Blur()
	return tea.Batch(model.videoListCmd(), model.starredCacheCmd(), model.nextSpaceCmd())
}

// nextSpaceCmd starts a fresh space-usage poll chain. Bumping the generation
// invalidates any messages still in flight from the previous chain, so there
// is at most one live chain no matter how often the page is re-entered.
func (model *TUIModel) nextSpaceCmd() tea.Cmd {
	model.spaceGen++
	return model.spaceUsageCmd(model.spaceGen)
}

func (model *TUIModel) selectedVideoName() (string, bool) {
	if model.selectedVideo < 0 || model.selectedVideo >= len(model.videos) {
		return "", false
	}
	return model.videos[model.selectedVideo], true
}

func (model *TUIModel) moveVideoSelection(delta int) {
	if len(model.videos) == 0 {
		return
	}
	model.selectedVideo += delta
	if model.selectedVideo < 0 {
		model.selectedVideo = 0
	}
	if model.selectedVideo >= len(model.videos) {
		model.selectedVideo = len(model.videos) - 1
	}
	model.videoPage = model.selectedVideo / videosPerPage
}

func (model *TUIModel) removeVideo(filename string) {
	kept := model.videos[:0]
	for _, name := range model.videos {
		if name != filename {
			kept = append(kept, name)
		}
	}
	model.videos = kept
	delete(model.starred, filename)
	if model.selectedVideo >= len(model.videos) && model.selectedVideo > 0 {
		model.selectedVideo = len(model.videos) - 1
	}
	model.videoPage = 0
	if len(model.videos) > 0 {
		model.videoPage = model.selectedVideo / videosPerPage
	}
}

// visibleVideoInfoCmds reconciles star flags for the clips on the current
// page only; the rest load as the user pages through.
func (model *TUIModel) visibleVideoInfoCmds() []tea.Cmd {
	start := model.videoPage * videosPerPage
	end := start + videosPerPage
	if end > len(model.videos) {
		end = len(model.videos)
	}
	var cmds []tea.Cmd
	for _, name := range model.videos[start:end] {
		cmds = append(cmds, model.videoInfoCmd(name))
	}
	return cmds
}
