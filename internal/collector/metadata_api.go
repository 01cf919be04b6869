package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/kkdai/youtube/v2"
)

// videoCache memoizes player API lookups so the metadata, caption and
// audio passes hit the endpoint once per video. Failures are not cached;
// a later pass may try again through its own throttled cascade.
type videoCache struct {
	client *youtube.Client

	mu     sync.Mutex
	videos map[string]*youtube.Video
}

func newVideoCache(client *youtube.Client) *videoCache {
	return &videoCache{client: client, videos: make(map[string]*youtube.Video)}
}

func (vc *videoCache) get(ctx context.Context, id string) (*youtube.Video, error) {
	vc.mu.Lock()
	if v, ok := vc.videos[id]; ok {
		vc.mu.Unlock()
		return v, nil
	}
	vc.mu.Unlock()

	video, err := vc.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching video %s: %w", id, err)
	}
	vc.mu.Lock()
	vc.videos[id] = video
	vc.mu.Unlock()
	return video, nil
}

// youtubeAPISource resolves exact per-video metadata through the player
// API. The player response carries no like counts; those stay zero for
// later sources to improve on only if this source fails.
func youtubeAPISource(videos *videoCache) MetadataSource {
	return MetadataSource{
		Name: "youtube-api",
		Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			video, err := videos.get(ctx, id)
			if err != nil {
				return MetadataRecord{}, err
			}
			rec := MetadataRecord{
				ID:    id,
				Title: video.Title,
				Views: int64(video.Views),
			}
			if !video.PublishDate.IsZero() {
				rec.ReleaseDate = video.PublishDate.Format("2006-01-02")
			}
			return rec, nil
		},
	}
}
