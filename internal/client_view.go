package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pre styled colors// all from lipgloss
var (
	appTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	menuItemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	menuHintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	pageHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle    = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle   = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	cameraLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	cameraBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1).MarginTop(1)
	waitingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	inputBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	systemNoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	videoItemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	videoPickedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	starStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	spaceBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	spaceWarnStyle    = spaceBarStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	dividerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
)

func (model *TUIModel) View() string {
	switch model.mode {
	case modeAuthMenu:
		return model.renderAuthMenuView()
	case modeAuthUsername, modeAuthPassword:
		return model.renderAuthPromptView()
	case modeVideos:
		return model.renderVideosView()
	default:
		return model.renderLiveView()
	}
}

func (model *TUIModel) renderAuthMenuView() string {
	title := appTitleStyle.Render("Seccam")
	subtitle := subtitleStyle.Render("Watch your cameras from the terminal")

	options := []string{
		renderMenuOption("1", "Log in"),
		renderMenuOption("2", "Sign up"),
		renderMenuOption("q", "Quit"),
	}

	viewSections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, menuHintStyle.Render("1) Log in  •  2) Sign up  •  q) Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderAuthPromptView() string {
	title := "Log in"
	if model.authIntent == authIntentSignup {
		title = "Create an account"
	}
	hint := "Enter your username"
	if model.mode == modeAuthPassword {
		hint = "Enter your password"
	}

	header := appTitleStyle.Render(title)
	hintText := menuHintStyle.Render(hint)

	viewSections := []string{header, hintText}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderLiveView() string {
	headerSegments := []string{"Seccam", "Live"}
	if model.username != "" {
		headerSegments = append(headerSegments, fmt.Sprintf("User %s", model.username))
	}
	headerSegments = append(headerSegments, fmt.Sprintf("Server %s", model.serverURL))
	header := pageHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch {
	case model.loading:
		statusLine = connectingStyle.Render("Connecting…")
	case len(model.subs) > 0:
		stats := model.stream.Stats().Snapshot()
		statusLine = connectedStyle.Render(fmt.Sprintf("Streaming %d camera(s)  |  %d frames  |  %s received",
			len(model.subs), stats.Frames, humanBytes(stats.Bytes)))
	default:
		statusLine = statusStyle.Render("No cameras connected.")
	}

	viewSections := []string{header, statusLine}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	if len(model.rooms) == 0 && !model.loading {
		viewSections = append(viewSections, menuHintStyle.Render("No cameras registered yet. Press r to refresh."))
	}

	for _, room := range model.rooms {
		label := cameraLabelStyle.Render(room)
		frame, haveFrame := model.liveFrames[room]
		if !haveFrame {
			frame = waitingStyle.Render("waiting for frames…")
		}
		viewSections = append(viewSections, cameraBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, label, frame)))
	}

	viewSections = append(viewSections, menuHintStyle.Render("v videos • r refresh • o logout • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderVideosView() string {
	headerSegments := []string{"Seccam", "Recordings"}
	if model.username != "" {
		headerSegments = append(headerSegments, fmt.Sprintf("User %s", model.username))
	}
	header := pageHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	viewSections := []string{header}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Loading recordings…"))
	}

	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	var lines []string
	if len(model.videos) == 0 {
		lines = append(lines, menuHintStyle.Render("No recordings yet."))
	} else {
		start := model.videoPage * videosPerPage
		end := start + videosPerPage
		if end > len(model.videos) {
			end = len(model.videos)
		}
		for idx := start; idx < end; idx++ {
			name := model.videos[idx]
			star := "  "
			if model.starred[name] {
				star = starStyle.Render("★ ")
			}
			if idx == model.selectedVideo {
				lines = append(lines, videoPickedStyle.Render("➤ "+star+name))
			} else {
				lines = append(lines, videoItemStyle.Render("  "+star+name))
			}
		}
	}
	viewSections = append(viewSections, menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	if len(model.videos) > 0 {
		totalPages := (len(model.videos) + videosPerPage - 1) / videosPerPage
		viewSections = append(viewSections, menuHintStyle.Render(fmt.Sprintf("Page %d/%d  (%d recordings)", model.videoPage+1, totalPages, len(model.videos))))
	}

	if usage := model.renderSpaceUsage(); usage != "" {
		viewSections = append(viewSections, usage)
	}

	viewSections = append(viewSections, menuHintStyle.Render("↑/↓ select • n/p page • Enter download • s star • d delete • Esc live view • o logout • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderSpaceUsage() string {
	if model.space == nil {
		return ""
	}
	usage := model.space
	line := fmt.Sprintf("Disk: %s / %s  |  Starred: %s / %s",
		humanBytes(uint64(usage.TotalSpace)), humanBytes(uint64(usage.TotalLimit)),
		humanBytes(uint64(usage.StarredSpace)), humanBytes(uint64(usage.StarredLimit)))
	if len(usage.Warnings) > 0 {
		return spaceWarnStyle.Render(line)
	}
	return spaceBarStyle.Render(line)
}

func renderMenuOption(hotkey string, label string) string {
	key := menuHotkeyStyle.Render(hotkey)
	return lipgloss.JoinHorizontal(lipgloss.Left, key, menuItemStyle.Render(label))
}

func (model *TUIModel) renderNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	var lines []string
	for _, item := range model.notices {
		lines = append(lines, systemNoticeStyle.Render(item.text))
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for scaled := n / unit; scaled >= unit; scaled /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
