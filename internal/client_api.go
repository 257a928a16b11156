package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	httpTimeout = 5 * time.Second

	errUnauthorized = errors.New("unauthorized")
)

const statusOK = "OK"

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type loginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

type numUsersResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
}

type ttlResponse struct {
	Status string `json:"status"`
	TTL    int    `json:"ttl"`
}

type roomsResponse struct {
	Rooms map[string]any `json:"rooms"`
}

type videoListResponse struct {
	Videos []string `json:"videos"`
}

type videoInfoResponse struct {
	Starred bool `json:"starred"`
}

func apiLogin(baseURL, username, password string) (string, error) {
	payload := map[string]string{"username": username, "password": password}
	var resp loginResponse
	if err := doJSONRequest(http.MethodPost, baseURL+"/api/auth/login", "", payload, &resp); err != nil {
		return "", err
	}
	if resp.Status != statusOK || resp.Token == "" {
		return "", errUnauthorized
	}
	return resp.Token, nil
}

func apiRegister(baseURL, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	var resp statusResponse
	if err := doJSONRequest(http.MethodPost, baseURL+"/api/auth/register", "", payload, &resp); err != nil {
		return err
	}
	if resp.Status != statusOK {
		return fmt.Errorf("registration failed: %s", resp.Error)
	}
	return nil
}

func apiNumUsers(baseURL string) (int, error) {
	var resp numUsersResponse
	if err := doJSONRequest(http.MethodGet, baseURL+"/api/auth/num-users", "", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Users, nil
}

// apiValidateToken asks the server whether the token is still good. Any
// transport or decode failure counts as invalid: for a camera system we fail
// closed rather than keep showing footage on a token we cannot vouch for.
func apiValidateToken(baseURL, token string) bool {
	payload := map[string]string{"token": token}
	var resp statusResponse
	if err := doJSONRequest(http.MethodPost, baseURL+"/api/token/validate", "", payload, &resp); err != nil {
		return false
	}
	return resp.Status == statusOK
}

// apiTokenTTL returns the seconds until the token expires, or -1 when the
// server rejects the token or cannot be reached. Callers treat -1 as expired.
func apiTokenTTL(baseURL, token string) int {
	endpoint := baseURL + "/api/token/ttl?token=" + url.QueryEscape(token)
	var resp ttlResponse
	if err := doJSONRequest(http.MethodGet, endpoint, "", nil, &resp); err != nil {
		return -1
	}
	if resp.Status != statusOK {
		return -1
	}
	return resp.TTL
}

func apiRefreshToken(baseURL, token string) (string, error) {
	payload := map[string]string{"token": token}
	var resp loginResponse
	if err := doJSONRequest(http.MethodPost, baseURL+"/api/token/refresh", "", payload, &resp); err != nil {
		return "", err
	}
	if resp.Status != statusOK || resp.Token == "" {
		return "", errUnauthorized
	}
	return resp.Token, nil
}

// apiRooms lists the currently broadcasting camera feeds. The server keys the
// rooms object by feed name; the values carry nothing we need.
func apiRooms(baseURL, token string) ([]string, error) {
	var resp roomsResponse
	if err := doJSONRequest(http.MethodGet, baseURL+"/api/video/rooms", token, nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Rooms))
	for name := range resp.Rooms {
		names = append(names, name)
	}
	return names, nil
}

func apiVideoList(baseURL, token, videoFormat string) ([]string, error) {
	endpoint := baseURL + "/api/video/video-list?video-format=" + url.QueryEscape(videoFormat)
	var resp videoListResponse
	if err := doJSONRequest(http.MethodGet, endpoint, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Videos, nil
}

func apiDeleteVideo(baseURL, token, filename string) error {
	endpoint := baseURL + "/api/video/" + url.PathEscape(filename)
	return doJSONRequest(http.MethodDelete, endpoint, token, nil, nil)
}

func apiSetStarred(baseURL, token, filename string, starred bool) error {
	endpoint := baseURL + "/api/video/" + url.PathEscape(filename) + "/star"
	payload := map[string]bool{"starred": starred}
	return doJSONRequest(http.MethodPost, endpoint, token, payload, nil)
}

func apiVideoInfo(baseURL, token, filename string) (*VideoInfo, error) {
	endpoint := baseURL + "/api/video/" + url.PathEscape(filename) + "/info"
	var resp videoInfoResponse
	if err := doJSONRequest(http.MethodGet, endpoint, token, nil, &resp); err != nil {
		return nil, err
	}
	return &VideoInfo{Filename: filename, Starred: resp.Starred}, nil
}

func apiSpaceUsage(baseURL, token string) (*SpaceUsage, error) {
	var resp SpaceUsage
	if err := doJSONRequest(http.MethodGet, baseURL+"/api/video/space-usage", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// apiDownloadVideo streams a recorded clip to destDir and returns the local
// path. The clip endpoint authenticates via a token query parameter so it can
// also serve plain <video> tags, and we follow that contract here.
func apiDownloadVideo(baseURL, token, filename, destDir string) (string, error) {
	endpoint := baseURL + "/api/video/" + url.PathEscape(filename) + "?token=" + url.QueryEscape(token)
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(endpoint)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return "", errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, readResponseError(resp.Body))
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", err
	}
	destPath := filepath.Join(destDir, filepath.Base(filename))
	tmp := destPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

func doJSONRequest(method, endpoint, token string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequest(method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-access-token", token)
	}
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, readResponseError(resp.Body))
	}
	if out != nil && resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	} else if out != nil && resp.ContentLength == 0 {
		// Try to decode in case the server sent a chunked body without a length header.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}

// buildStreamURL converts the http(s) API base URL into the ws(s) endpoint the
// live image relay listens on.
func buildStreamURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = "/stream"
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}
