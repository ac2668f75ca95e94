package db

import (
	"encoding/json"
	"time"
)

// LeadRecord maps reddit_leads.
type LeadRecord struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RedditID        string    `gorm:"column:reddit_id;type:text;not null;uniqueIndex:reddit_leads_reddit_id_key"`
	Title           string    `gorm:"column:title;type:text;not null"`
	Content         string    `gorm:"column:content;type:text;not null;default:''"`
	Subreddit       string    `gorm:"column:subreddit;type:text;not null"`
	Author          string    `gorm:"column:author;type:text;not null;default:''"`
	URL             string    `gorm:"column:url;type:text;not null;default:''"`
	RedditCreatedAt time.Time `gorm:"column:reddit_created_at;type:timestamptz;not null"`
	Summary         string    `gorm:"column:summary;type:text;not null;default:''"`
	Score           int       `gorm:"column:score;type:integer;not null;default:5"`
	Opportunity     string    `gorm:"column:opportunity;type:text;not null;default:''"`
	DraftReply      string    `gorm:"column:draft_reply;type:text;not null;default:''"`
	Language        string    `gorm:"column:language;type:text;not null;default:''"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (LeadRecord) TableName() string { return "reddit_leads" }

// SettingRecord maps settings.
type SettingRecord struct {
	Key       string          `gorm:"column:key;type:text;primaryKey"`
	Value     json.RawMessage `gorm:"column:value;type:jsonb;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (SettingRecord) TableName() string { return "settings" }

func autoMigrateModels() []any {
	return []any{
		&LeadRecord{},
		&SettingRecord{},
	}
}
