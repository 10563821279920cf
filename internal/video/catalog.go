package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/schemasync/internal/db"
)

var (
	// ErrNotFound is returned when a video or shared link does not exist
	ErrNotFound = errors.New("not found")
	// ErrShareExpired is returned when resolving a shared link past its expiry
	ErrShareExpired = errors.New("shared link has expired")
	// ErrInvalidExpiry is returned for share expiries outside 1 to MaxShareHours hours
	ErrInvalidExpiry = errors.New("invalid share expiry")
)

const (
	// DefaultShareHours is the expiry used when none is given
	DefaultShareHours = 24
	// MaxShareHours is the longest a link stays valid
	MaxShareHours = 72
)

// Video is the stored metadata of one uploaded file
type Video struct {
	ID        string
	Filename  string
	Size      int64
	Duration  int64
	CreatedAt time.Time
}

// Share is a time-limited link to a video
type Share struct {
	ID        string
	VideoID   string
	ExpiresAt time.Time
}

// Catalog reads and writes videos and shared links through the data-access contract
type Catalog struct {
	dal db.DataAccess

	mu     sync.RWMutex
	limits Limits
}

// NewCatalog creates a catalog. The limits are validated up front.
func NewCatalog(dal db.DataAccess, limits Limits) (*Catalog, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Catalog{dal: dal, limits: limits}, nil
}

// Limits returns the limits new videos are checked against
func (c *Catalog) Limits() Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// UpdateLimits replaces the limits for videos added from now on.
// Invalid limits are rejected and the current ones kept.
func (c *Catalog) UpdateLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.limits = limits
	c.mu.Unlock()
	return nil
}

// AddVideo checks v against the limits and stores it. An empty ID is generated.
func (c *Catalog) AddVideo(ctx context.Context, v Video) (*Video, error) {
	if v.Filename == "" {
		return nil, fmt.Errorf("video filename is required")
	}
	if v.Size <= 0 {
		return nil, fmt.Errorf("video size must be positive, got %d", v.Size)
	}
	if err := c.Limits().Check(v.Size, v.Duration); err != nil {
		return nil, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	if _, err := c.dal.Run(ctx,
		`INSERT INTO videos (id, filename, size, duration) VALUES (?, ?, ?, ?)`,
		v.ID, v.Filename, v.Size, v.Duration,
	); err != nil {
		return nil, fmt.Errorf("failed to add video: %w", err)
	}

	return c.GetVideo(ctx, v.ID)
}

// GetVideo returns the video with the given ID
func (c *Catalog) GetVideo(ctx context.Context, id string) (*Video, error) {
	row, found, err := c.dal.Get(ctx,
		`SELECT id, filename, size, duration, created_at FROM videos WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return videoFromRow(row), nil
}

// ListVideos returns every video, newest first
func (c *Catalog) ListVideos(ctx context.Context) ([]Video, error) {
	rows, err := c.dal.All(ctx,
		`SELECT id, filename, size, duration, created_at FROM videos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	videos := make([]Video, 0, len(rows))
	for _, r := range rows {
		videos = append(videos, *videoFromRow(r))
	}
	return videos, nil
}

// DeleteVideo removes a video. Its shared links go with it through the
// ON DELETE CASCADE foreign key.
func (c *Catalog) DeleteVideo(ctx context.Context, id string) error {
	res, err := c.dal.Run(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

// ShareVideo creates a link to an existing video valid for the given number of hours
func (c *Catalog) ShareVideo(ctx context.Context, videoID string, hours int, now time.Time) (*Share, error) {
	if hours <= 0 || hours > MaxShareHours {
		return nil, fmt.Errorf("%w: %d hours, must be between 1 and %d", ErrInvalidExpiry, hours, MaxShareHours)
	}

	if _, err := c.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}

	share := &Share{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		ExpiresAt: now.UTC().Add(time.Duration(hours) * time.Hour),
	}
	if _, err := c.dal.Run(ctx,
		`INSERT INTO shared_links (id, video_id, expires_at) VALUES (?, ?, ?)`,
		share.ID, share.VideoID, share.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create shared link: %w", err)
	}
	return share, nil
}

// ResolveShare returns the video behind a shared link. A link found expired
// at now is deleted and ErrShareExpired is returned.
func (c *Catalog) ResolveShare(ctx context.Context, shareID string, now time.Time) (*Video, error) {
	row, found, err := c.dal.Get(ctx,
		`SELECT video_id, expires_at FROM shared_links WHERE id = ?`, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shared link: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("shared link %s: %w", shareID, ErrNotFound)
	}

	expiresAt, err := row.Time("expires_at")
	if err != nil {
		return nil, fmt.Errorf("shared link %s: %w", shareID, err)
	}
	if now.After(expiresAt) {
		if _, err := c.dal.Run(ctx, `DELETE FROM shared_links WHERE id = ?`, shareID); err != nil {
			return nil, fmt.Errorf("failed to delete expired link: %w", err)
		}
		return nil, fmt.Errorf("shared link %s: %w", shareID, ErrShareExpired)
	}

	return c.GetVideo(ctx, row.String("video_id"))
}

// CountShares returns the number of shared links of a video
func (c *Catalog) CountShares(ctx context.Context, videoID string) (int64, error) {
	row, _, err := c.dal.Get(ctx, `SELECT COUNT(*) AS n FROM shared_links WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, fmt.Errorf("failed to count shared links: %w", err)
	}
	return row.Int64("n"), nil
}

func videoFromRow(r db.Row) *Video {
	v := &Video{
		ID:       r.String("id"),
		Filename: r.String("filename"),
		Size:     r.Int64("size"),
		Duration: r.Int64("duration"),
	}
	if t, err := r.Time("created_at"); err == nil {
		v.CreatedAt = t
	}
	return v
}
