package db

import (
	"encoding/json"
	"time"
)

// Source maps news.sources. Sources are created by ingestion; the clustering
// engine only reads reliability and type for scoring and rollups.
type Source struct {
	SourceID        int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID      string    `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name            string    `gorm:"column:name;type:text;not null;unique"`
	SourceType      string    `gorm:"column:source_type;type:text;not null;default:media"`
	ReliabilityTier int16     `gorm:"column:reliability_tier;type:smallint;not null;default:2"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "news.sources" }

// Item maps news.items. Read-only to the clustering engine except for
// best-effort backfill of arxiv_id/doi extracted from title and URL.
type Item struct {
	ItemID       int64      `gorm:"column:item_id;primaryKey;autoIncrement"`
	ItemUUID     string     `gorm:"column:item_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceID     int64      `gorm:"column:source_id;type:bigint;not null"`
	Title        string     `gorm:"column:title;type:text;not null"`
	CanonicalURL *string    `gorm:"column:canonical_url;type:text"`
	ContentType  string     `gorm:"column:content_type;type:text;not null;default:news"`
	PublishedAt  *time.Time `gorm:"column:published_at;type:timestamptz"`
	FetchedAt    time.Time  `gorm:"column:fetched_at;type:timestamptz;not null;default:now()"`
	ArxivID      *string    `gorm:"column:arxiv_id;type:text"`
	DOI          *string    `gorm:"column:doi;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Item) TableName() string { return "news.items" }

// StoryCluster maps news.story_clusters. Aggregate fields are always a
// deterministic function of current membership; they are recomputed, never
// incremented in place.
type StoryCluster struct {
	ClusterID            int64     `gorm:"column:cluster_id;primaryKey;autoIncrement"`
	ClusterUUID          string    `gorm:"column:cluster_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Status               string    `gorm:"column:status;type:text;not null;default:pending"`
	CanonicalTitle       string    `gorm:"column:canonical_title;type:text;not null"`
	RepresentativeItemID *int64    `gorm:"column:representative_item_id;type:bigint"`
	ItemCount            int       `gorm:"column:item_count;type:integer;not null;default:0"`
	SourceCount          int       `gorm:"column:source_count;type:integer;not null;default:0"`
	SourceTypeCount      int       `gorm:"column:source_type_count;type:integer;not null;default:0"`
	Velocity6h           int       `gorm:"column:velocity_6h;type:integer;not null;default:0"`
	Velocity24h          int       `gorm:"column:velocity_24h;type:integer;not null;default:0"`
	RecencyScore         float64   `gorm:"column:recency_score;type:double precision;not null;default:0"`
	TrendingScore        float64   `gorm:"column:trending_score;type:double precision;not null;default:0"`
	Takeaway             *string   `gorm:"column:takeaway;type:text"`
	Intuition            *string   `gorm:"column:intuition;type:text"`
	LastUpdatedAt        time.Time `gorm:"column:last_updated_at;type:timestamptz;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt            time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (StoryCluster) TableName() string { return "news.story_clusters" }

// ClusterTopic maps news.cluster_topics. Written by the enrichment layer;
// promotion gating reads it.
type ClusterTopic struct {
	ClusterID int64     `gorm:"column:cluster_id;type:bigint;primaryKey"`
	Tag       string    `gorm:"column:tag;type:text;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ClusterTopic) TableName() string { return "news.cluster_topics" }

// ClusterItem maps news.cluster_items. The unique item_id column is the
// at-most-one-membership invariant: an item, once attached, is never attached
// twice and never silently moved.
type ClusterItem struct {
	ClusterID int64     `gorm:"column:cluster_id;type:bigint;primaryKey"`
	ItemID    int64     `gorm:"column:item_id;type:bigint;primaryKey;unique"`
	Role      string    `gorm:"column:role;type:text;not null;default:supporting"`
	MatchedAt time.Time `gorm:"column:matched_at;type:timestamptz;not null;default:now()"`
}

func (ClusterItem) TableName() string { return "news.cluster_items" }

// ClusterSearchDoc maps news.cluster_search_docs: the denormalized full-text
// document (title + member titles + external IDs) behind lexical retrieval.
type ClusterSearchDoc struct {
	ClusterID int64     `gorm:"column:cluster_id;type:bigint;primaryKey"`
	DocText   string    `gorm:"column:doc_text;type:text;not null"`
	Language  string    `gorm:"column:language;type:text;not null;default:simple"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ClusterSearchDoc) TableName() string { return "news.cluster_search_docs" }

// ClusterAssignmentLog maps news.cluster_assignment_logs. Append-only; one
// row per processed item; never read by the engine itself.
type ClusterAssignmentLog struct {
	LogID           int64           `gorm:"column:log_id;primaryKey;autoIncrement"`
	ItemID          int64           `gorm:"column:item_id;type:bigint;not null;unique"`
	ClusterID       int64           `gorm:"column:cluster_id;type:bigint;not null"`
	Decision        string          `gorm:"column:decision;type:text;not null"`
	MatchPath       string          `gorm:"column:match_path;type:text;not null"`
	Candidates      json.RawMessage `gorm:"column:candidates;type:jsonb;not null"`
	ScoreBreakdown  json.RawMessage `gorm:"column:score_breakdown;type:jsonb;not null"`
	AttachThreshold float64         `gorm:"column:attach_threshold;type:double precision;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ClusterAssignmentLog) TableName() string { return "news.cluster_assignment_logs" }

// UpdateLogEntry maps news.update_log. Emitted only when hard evidence
// (peer-reviewed, preprint, report) joins an existing cluster.
type UpdateLogEntry struct {
	EntryID   int64     `gorm:"column:entry_id;primaryKey;autoIncrement"`
	ClusterID int64     `gorm:"column:cluster_id;type:bigint;not null"`
	ItemID    int64     `gorm:"column:item_id;type:bigint;not null;unique"`
	Kind      string    `gorm:"column:kind;type:text;not null;default:new_evidence"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (UpdateLogEntry) TableName() string { return "news.update_log" }

// ClusterRun maps news.cluster_runs: the ledger of batch clustering runs.
type ClusterRun struct {
	RunID           int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID         string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	StartedAt       time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt      *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status          string     `gorm:"column:status;type:text;not null;default:running"`
	ItemsProcessed  int        `gorm:"column:items_processed;type:integer;not null;default:0"`
	ItemsAttached   int        `gorm:"column:items_attached;type:integer;not null;default:0"`
	ClustersCreated int        `gorm:"column:clusters_created;type:integer;not null;default:0"`
	ErrorMessage    *string    `gorm:"column:error_message;type:text"`
}

func (ClusterRun) TableName() string { return "news.cluster_runs" }

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Item{},
		&StoryCluster{},
		&ClusterTopic{},
		&ClusterItem{},
		&ClusterSearchDoc{},
		&ClusterAssignmentLog{},
		&UpdateLogEntry{},
		&ClusterRun{},
	}
}
