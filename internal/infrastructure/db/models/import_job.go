package models

import (
	"time"

	"gorm.io/datatypes"
)

type Import struct {
	ID               string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OriginalFilename string  `gorm:"type:text;not null"`
	StoredFilename   string  `gorm:"type:text;not null;uniqueIndex"`
	Kind             string  `gorm:"type:text;not null"`
	Status           string  `gorm:"type:text;not null;index"`
	TotalRows        int     `gorm:"not null;default:0"`
	LastRow          int     `gorm:"not null;default:0"`
	ProcessedRows    int     `gorm:"not null;default:0"`
	SuccessRows      int     `gorm:"not null;default:0"`
	ErrorRows        int     `gorm:"not null;default:0"`
	OwnerID          string  `gorm:"type:text;not null"`
	ErrorMessage     *string `gorm:"type:text"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Import) TableName() string {
	return "imports"
}

type ImportAnalysisResult struct {
	ID         string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ImportID   string         `gorm:"type:uuid;not null;index"`
	Operation  string         `gorm:"type:text;not null"`
	EntityType string         `gorm:"type:text;not null"`
	Count      int            `gorm:"not null"`
	Details    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (ImportAnalysisResult) TableName() string {
	return "import_analysis_results"
}

type ImportError struct {
	ID        string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ImportID  string         `gorm:"type:uuid;not null;index"`
	Phase     string         `gorm:"type:text;not null"`
	RowNumber int            `gorm:"not null"`
	Severity  string         `gorm:"type:text;not null"`
	Message   string         `gorm:"type:text;not null"`
	Field     *string        `gorm:"type:text"`
	RawData   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (ImportError) TableName() string {
	return "import_errors"
}

type ImportTask struct {
	ID             string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ImportID       string  `gorm:"type:uuid;not null;index"`
	Kind           string  `gorm:"type:text;not null"`
	StartRow       int     `gorm:"not null;default:0"`
	EndRow         int     `gorm:"not null;default:0"`
	NextRow        int     `gorm:"not null;default:0"`
	Status         string  `gorm:"type:text;not null"`
	Attempts       int     `gorm:"not null;default:0"`
	MaxAttempts    int     `gorm:"not null;default:3"`
	ErrorMessage   *string `gorm:"type:text"`
	HeartbeatAt    *time.Time
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ImportTask) TableName() string {
	return "import_tasks"
}
