package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

type Photo struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	FileID       string
}

// Album is a flushed media group. FileIDs keep arrival order, which for
// Telegram albums is the order the photos were attached, so the portrait
// comes first and the reference second.
type Album struct {
	ChatID  int64
	UserID  int64
	Prompt  string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Album)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Album)
	pending  map[string]*pendingAlbum
}

type pendingAlbum struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingAlbum),
	}
}

// Add records one photo of a media group and re-arms the debounce timer.
// Telegram attaches the album caption to a single photo, usually the first,
// so the first non-empty caption wins as the prompt.
func (a *Aggregator) Add(photo Photo) {
	if photo.MediaGroupID == "" || photo.FileID == "" {
		return
	}

	key := makeKey(photo.ChatID, photo.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pa, ok := a.pending[key]
	if !ok {
		pa = &pendingAlbum{
			album: Album{
				ChatID:  photo.ChatID,
				UserID:  photo.UserID,
				Prompt:  photo.Caption,
				FileIDs: []string{photo.FileID},
			},
		}
		a.pending[key] = pa
	} else {
		pa.album.FileIDs = append(pa.album.FileIDs, photo.FileID)
		if pa.album.Prompt == "" {
			pa.album.Prompt = photo.Caption
		}
	}

	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pa, ok := a.pending[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	album := pa.album
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(album)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
