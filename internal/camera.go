package internal

// SpaceUsage mirrors the server's storage-quota report. Sizes are bytes.
type SpaceUsage struct {
	TotalSpace    int64    `json:"total_space"`
	StarredSpace  int64    `json:"starred_space"`
	TotalLimit    int64    `json:"total_limit"`
	StarredLimit  int64    `json:"starred_limit"`
	Warnings      []string `json:"warnings"`
	RemovedVideos []string `json:"removed_videos"`
}

// VideoInfo carries the per-clip metadata the server tracks for us.
type VideoInfo struct {
	Filename string
	Starred  bool
}
