package store

import (
	"time"
)

// Paper is an arXiv submission together with its stored summary and the
// provenance of that summary.
type Paper struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	ArxivID      string     `json:"arxiv_id" gorm:"size:64;uniqueIndex;not null"`
	Title        string     `json:"title" gorm:"type:text;not null"`
	Abstract     string     `json:"abstract" gorm:"type:text"`
	Authors      []string   `json:"authors" gorm:"type:text;serializer:json"`
	URL          string     `json:"url" gorm:"size:512"`
	PDFURL       string     `json:"pdf_url" gorm:"size:512"`
	DOI          string     `json:"doi,omitempty" gorm:"size:255"`
	JournalRef   string     `json:"journal_ref,omitempty" gorm:"size:512"`
	Comment      string     `json:"comment,omitempty" gorm:"type:text"`
	Published    time.Time  `json:"published" gorm:"index"`
	ArxivUpdated time.Time  `json:"updated"`
	Categories   []Category `json:"categories" gorm:"foreignKey:PaperID"`

	LLMSummary            *string    `json:"llm_summary" gorm:"type:longtext"`
	SummaryModel          *string    `json:"summary_model" gorm:"size:128"`
	SummaryUpdatedAt      *time.Time `json:"summary_updated_at"`
	SummaryPDFSHA256      *string    `json:"summary_pdf_sha256" gorm:"column:summary_pdf_sha256;size:64"`
	ExtractedTextSHA256   *string    `json:"extracted_text_sha256" gorm:"column:extracted_text_sha256;size:64"`
	ExtractionTool        *string    `json:"extraction_tool,omitempty" gorm:"size:255"`
	ExtractionToolVersion *string    `json:"extraction_tool_version,omitempty" gorm:"size:128"`
	// NormalizationSpec is the JSON form of textnorm.Spec.
	NormalizationSpec  *string `json:"normalization_spec,omitempty" gorm:"type:text"`
	PromptVersion      *string `json:"prompt_version,omitempty" gorm:"size:32"`
	SummaryChunks      int     `json:"summary_chunks"`
	PagesTotal         int     `json:"pages_total"`
	PagesFailed        int     `json:"pages_failed"`
	SummarySchemaValid *bool   `json:"summary_schema_valid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Category is one arXiv category term attached to a paper.
type Category struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	PaperID   uint   `json:"-" gorm:"index;not null"`
	Term      string `json:"term" gorm:"size:64;not null"`
	IsPrimary bool   `json:"is_primary"`
}

// User is keyed by the identity provider's stable subject.
type User struct {
	Sub       string    `json:"sub" gorm:"primaryKey;size:191"`
	Email     string    `json:"email,omitempty" gorm:"size:255"`
	Name      string    `json:"name,omitempty" gorm:"size:255"`
	Picture   string    `json:"picture,omitempty" gorm:"size:1024"`
	CreatedAt time.Time `json:"-"`
}

type Bookmark struct {
	ID        uint   `gorm:"primaryKey"`
	UserSub   string `gorm:"size:191;not null;uniqueIndex:uq_bookmark_user_paper"`
	PaperID   uint   `gorm:"not null;uniqueIndex:uq_bookmark_user_paper"`
	CreatedAt time.Time
}

// Vote holds one user's -1, 0 or +1 on a paper.
type Vote struct {
	ID        uint   `gorm:"primaryKey"`
	UserSub   string `gorm:"size:191;not null;uniqueIndex:uq_vote_user_paper"`
	PaperID   uint   `gorm:"not null;uniqueIndex:uq_vote_user_paper;index"`
	Value     int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

type UserSettings struct {
	UserSub   string         `gorm:"primaryKey;size:191"`
	Prefs     map[string]any `gorm:"type:text;serializer:json"`
	UpdatedAt time.Time
}

func (UserSettings) TableName() string { return "user_settings" }
