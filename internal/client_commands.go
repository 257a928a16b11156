package internal

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const (
	reconnectDelay   = 2 * time.Second
	spaceUsagePeriod = 5 * time.Minute
	liveFrameWidth   = 64
)

func (model *TUIModel) numUsersCmd() tea.Cmd {
	serverURL := model.serverURL
	return func() tea.Msg {
		users, err := apiNumUsers(serverURL)
		return numUsersMsg{users: users, err: err}
	}
}

func (model *TUIModel) loginCmd(username, password string) tea.Cmd {
	serverURL := model.serverURL
	session := model.session
	return func() tea.Msg {
		token, err := apiLogin(serverURL, username, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		if err := session.SetToken(context.Background(), token); err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{}
	}
}

func (model *TUIModel) registerCmd(username, password string) tea.Cmd {
	serverURL := model.serverURL
	return func() tea.Msg {
		return registeredMsg{err: apiRegister(serverURL, username, password)}
	}
}

func (model *TUIModel) validateCmd() tea.Cmd {
	session := model.session
	return func() tea.Msg {
		return validatedMsg{valid: session.Validate()}
	}
}

func (model *TUIModel) ttlCmd() tea.Cmd {
	session := model.session
	return func() tea.Msg {
		return ttlMsg{ttl: session.TokenTTL()}
	}
}

func (model *TUIModel) renewCmd() tea.Cmd {
	session := model.session
	return func() tea.Msg {
		return renewedMsg{err: session.Renew(context.Background())}
	}
}

func (model *TUIModel) roomsCmd() tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	return func() tea.Msg {
		if token == "" {
			return roomsMsg{err: errUnauthorized}
		}
		rooms, err := apiRooms(serverURL, token)
		return roomsMsg{rooms: rooms, err: err}
	}
}

func (model *TUIModel) subscribeCmd(room string) tea.Cmd {
	stream := model.stream
	token := model.session.AuthToken()
	return func() tea.Msg {
		if token == "" {
			return subscribedMsg{room: room, err: errUnauthorized}
		}
		sub, err := stream.Subscribe(room, token)
		return subscribedMsg{room: room, sub: sub, err: err}
	}
}

// waitFrameCmd blocks on the subscription's frame channel and converts the
// next image into a rendered terminal cell block. Decoding happens here, off
// the update loop. The command re-arms itself from Update, one frame at a
// time.
func (model *TUIModel) waitFrameCmd(sub *Subscription) tea.Cmd {
	logger := model.logger
	return func() tea.Msg {
		frame, ok := <-sub.Frames()
		if !ok {
			return streamClosedMsg{room: sub.Room, subID: sub.ID}
		}
		img, err := decodeFrame(frame.Data)
		if err != nil {
			logger.Debug("dropping undecodable frame", zap.String("room", frame.Room), zap.Error(err))
			return frameMsg{room: frame.Room, subID: sub.ID}
		}
		return frameMsg{room: frame.Room, subID: sub.ID, ansi: renderFrameANSI(img, liveFrameWidth)}
	}
}

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	// we schedule a future poke that nudges Update to try the rooms again.
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

func (model *TUIModel) videoListCmd() tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	format := model.videoFormat
	store := model.store
	return func() tea.Msg {
		if token == "" {
			return videosMsg{err: errUnauthorized}
		}
		videos, err := apiVideoList(serverURL, token, format)
		if err != nil {
			return videosMsg{err: err}
		}
		if store != nil {
			if cacheErr := store.CacheVideoList(context.Background(), videos); cacheErr != nil {
				return videosMsg{videos: videos, err: nil, cacheErr: cacheErr}
			}
		}
		return videosMsg{videos: videos}
	}
}

func (model *TUIModel) starredCacheCmd() tea.Cmd {
	store := model.store
	return func() tea.Msg {
		if store == nil {
			return starredCacheMsg{}
		}
		starred, err := store.StarredVideos(context.Background())
		if err != nil {
			return starredCacheMsg{err: err}
		}
		return starredCacheMsg{starred: starred}
	}
}

// videoInfoCmd reconciles one clip's star flag with the server. Best effort:
// a failure leaves the cached state alone.
func (model *TUIModel) videoInfoCmd(filename string) tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	return func() tea.Msg {
		if token == "" {
			return videoInfoMsg{err: errUnauthorized}
		}
		info, err := apiVideoInfo(serverURL, token, filename)
		return videoInfoMsg{info: info, err: err}
	}
}

func (model *TUIModel) toggleStarCmd(filename string, starred bool) tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	store := model.store
	return func() tea.Msg {
		if token == "" {
			return starToggledMsg{filename: filename, err: errUnauthorized}
		}
		if err := apiSetStarred(serverURL, token, filename, starred); err != nil {
			return starToggledMsg{filename: filename, err: err}
		}
		if store != nil {
			_ = store.SetStarred(context.Background(), filename, starred)
		}
		return starToggledMsg{filename: filename, starred: starred}
	}
}

func (model *TUIModel) deleteVideoCmd(filename string) tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	store := model.store
	return func() tea.Msg {
		if token == "" {
			return videoDeletedMsg{filename: filename, err: errUnauthorized}
		}
		if err := apiDeleteVideo(serverURL, token, filename); err != nil {
			return videoDeletedMsg{filename: filename, err: err}
		}
		if store != nil {
			_ = store.DeleteVideo(context.Background(), filename)
		}
		return videoDeletedMsg{filename: filename}
	}
}

func (model *TUIModel) downloadVideoCmd(filename string) tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	destDir := model.downloadDir
	return func() tea.Msg {
		if token == "" {
			return downloadedMsg{err: errUnauthorized}
		}
		path, err := apiDownloadVideo(serverURL, token, filename, destDir)
		return downloadedMsg{path: path, err: err}
	}
}

func (model *TUIModel) spaceUsageCmd(gen int) tea.Cmd {
	serverURL := model.serverURL
	token := model.session.AuthToken()
	return func() tea.Msg {
		if token == "" {
			return spaceUsageMsg{gen: gen, err: errUnauthorized}
		}
		usage, err := apiSpaceUsage(serverURL, token)
		return spaceUsageMsg{gen: gen, usage: usage, err: err}
	}
}

func (model *TUIModel) spaceTickCmd(gen int) tea.Cmd {
	return tea.Tick(spaceUsagePeriod, func(time.Time) tea.Msg {
		return spaceTickMsg{gen: gen}
	})
}
