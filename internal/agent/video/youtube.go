package video

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	maxSearchResults = 50
	extraFactor      = 3
)

// Video is one search hit with whatever details could be fetched.
type Video struct {
	ID          string    `json:"video_id"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Duration    string    `json:"duration"`
	Views       uint64    `json:"views"`
	Likes       uint64    `json:"likes"`
	Comments    uint64    `json:"comments"`
}

// URL is the watch page of the video.
func (v Video) URL() string { return "https://www.youtube.com/watch?v=" + v.ID }

// Searcher finds candidate videos, newest first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

// YouTubeSearcher uses the YouTube Data API v3.
type YouTubeSearcher struct {
	svc                *youtube.Service
	publishedAfterDays int
	logger             *zap.Logger
	now                func() time.Time
}

func NewYouTubeSearcher(ctx context.Context, apiKey string, publishedAfterDays int, logger *zap.Logger, opts ...option.ClientOption) (*YouTubeSearcher, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}
	if publishedAfterDays <= 0 {
		publishedAfterDays = 365
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YouTubeSearcher{svc: svc, publishedAfterDays: publishedAfterDays, logger: logger, now: time.Now}, nil
}

// Search requests limit*3 candidates (capped at 50) so that videos without
// usable transcripts can be skipped, then attaches durations and counts.
func (s *YouTubeSearcher) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	want := int64(limit * extraFactor)
	if want > maxSearchResults {
		want = maxSearchResults
	}
	if want <= 0 {
		want = extraFactor
	}
	after := s.now().UTC().AddDate(0, 0, -s.publishedAfterDays).Format(time.RFC3339)

	resp, err := s.svc.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		MaxResults(want).
		Order("relevance").
		RelevanceLanguage("en").
		VideoCaption("closedCaption").
		PublishedAfter(after).
		SafeSearch("moderate").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	var videos []Video
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			ID:          item.Id.VideoId,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			Description: item.Snippet.Description,
			PublishedAt: published,
			Duration:    "Unknown",
		})
	}
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].PublishedAt.After(videos[j].PublishedAt) })

	if len(videos) > 0 {
		if err := s.attachDetails(ctx, videos); err != nil {
			s.logger.Warn("video details failed", zap.Error(err))
		}
	}
	return videos, nil
}

func (s *YouTubeSearcher) attachDetails(ctx context.Context, videos []Video) error {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	resp, err := s.svc.Videos.List([]string{"contentDetails", "statistics"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return err
	}
	byID := make(map[string]*youtube.Video, len(resp.Items))
	for _, item := range resp.Items {
		byID[item.Id] = item
	}
	for i := range videos {
		d, ok := byID[videos[i].ID]
		if !ok {
			continue
		}
		if d.ContentDetails != nil {
			videos[i].Duration = FormatDuration(d.ContentDetails.Duration)
		}
		if d.Statistics != nil {
			videos[i].Views = d.Statistics.ViewCount
			videos[i].Likes = d.Statistics.LikeCount
			videos[i].Comments = d.Statistics.CommentCount
		}
	}
	return nil
}

// FormatDuration turns an ISO-8601 duration such as PT1H2M3S into H:MM:SS,
// or M:SS below an hour. Days and fractions are ignored; "" gives "Unknown".
func FormatDuration(iso string) string {
	if iso == "" {
		return "Unknown"
	}
	i := strings.IndexByte(iso, 'T')
	if i < 0 {
		return "0:00"
	}
	var h, m, sec int
	num := ""
	for _, ch := range iso[i+1:] {
		switch {
		case ch >= '0' && ch <= '9':
			num += string(ch)
		case ch == 'H':
			h, _ = strconv.Atoi(num)
			num = ""
		case ch == 'M':
			m, _ = strconv.Atoi(num)
			num = ""
		case ch == 'S':
			sec, _ = strconv.Atoi(num)
			num = ""
		default:
			num = ""
		}
	}
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
