// Package video stores uploaded video metadata and the links used to share them.
//
// It is a consumer of the data-access contract: it owns the declarations of
// its tables but never creates or alters them itself.
package video

import "github.com/tordrt/schemasync/internal/schema"

// Table names
const (
	TableVideos      = "videos"
	TableSharedLinks = "shared_links"
)

// Tables returns the declarations of the catalog tables, parents first
func Tables() []schema.TableSchema {
	return []schema.TableSchema{
		{
			Name: TableVideos,
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "filename", Type: "TEXT", NotNull: true},
				{Name: "size", Type: "INTEGER", NotNull: true},
				{Name: "duration", Type: "INTEGER", NotNull: true},
				{Name: "created_at", Type: "DATETIME", Default: schema.Default("CURRENT_TIMESTAMP")},
			},
			Indexes: []schema.Index{
				{Name: "idx_videos_filename", Columns: []string{"filename"}, Unique: true},
				{Name: "idx_videos_created_at", Columns: []string{"created_at"}},
			},
		},
		{
			Name: TableSharedLinks,
			Columns: []schema.Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "video_id", Type: "TEXT", NotNull: true},
				{Name: "expires_at", Type: "DATETIME", NotNull: true},
				{Name: "created_at", Type: "DATETIME", Default: schema.Default("CURRENT_TIMESTAMP")},
			},
			Indexes: []schema.Index{
				{Name: "idx_shared_links_video_id", Columns: []string{"video_id"}},
				{Name: "idx_shared_links_expires_at", Columns: []string{"expires_at"}},
				{Name: "idx_shared_links_video_expiry", Columns: []string{"video_id", "expires_at"}},
			},
			ForeignKeys: []schema.ForeignKey{
				{
					Column:    "video_id",
					Reference: schema.Reference{Table: TableVideos, Column: "id"},
					OnDelete:  "CASCADE",
				},
			},
		},
	}
}

// Registry returns the registry of the catalog tables
func Registry() *schema.Registry {
	return schema.MustRegistry(Tables()...)
}
