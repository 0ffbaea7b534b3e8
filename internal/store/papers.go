package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ryosukesatoh/researchtldr/internal/fetcher"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
)

// SavePapers inserts the papers whose arXiv id is not stored yet and returns
// how many were inserted.
func (s *Store) SavePapers(ctx context.Context, papers []fetcher.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(papers))
	for _, p := range papers {
		ids = append(ids, p.ArxivID)
	}

	stored := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&Paper{}).Where("arxiv_id IN ?", ids).Pluck("arxiv_id", &existing).Error; err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, id := range existing {
			seen[id] = true
		}

		for _, fp := range papers {
			if fp.ArxivID == "" || seen[fp.ArxivID] {
				continue
			}
			seen[fp.ArxivID] = true
			row := fromFeed(fp)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert %s: %w", fp.ArxivID, err)
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: save papers: %w", err)
	}
	return stored, nil
}

func fromFeed(fp fetcher.Paper) Paper {
	p := Paper{
		ArxivID:      fp.ArxivID,
		Title:        fp.Title,
		Abstract:     fp.Abstract,
		Authors:      fp.Authors,
		URL:          fp.URL,
		PDFURL:       fp.PDFURL,
		DOI:          fp.DOI,
		JournalRef:   fp.JournalRef,
		Comment:      fp.Comment,
		Published:    fp.Published,
		ArxivUpdated: fp.Updated,
	}
	for _, term := range fp.Categories {
		p.Categories = append(p.Categories, Category{Term: term, IsPrimary: term == fp.PrimaryCategory})
	}
	return p
}

// RecentPapers returns up to limit papers, newest submission first.
func (s *Store) RecentPapers(ctx context.Context, limit int) ([]Paper, error) {
	var papers []Paper
	err := s.db.WithContext(ctx).
		Preload("Categories").
		Order("published DESC").Order("id DESC").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent papers: %w", err)
	}
	return papers, nil
}

func (s *Store) PaperByID(ctx context.Context, id uint) (*Paper, error) {
	var p Paper
	if err := s.db.WithContext(ctx).Preload("Categories").First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// PaperByArxivID returns the pipeline view of the paper with the given
// arXiv id.
func (s *Store) PaperByArxivID(ctx context.Context, arxivID string) (*pipeline.Paper, error) {
	var p Paper
	if err := s.db.WithContext(ctx).Where("arxiv_id = ?", arxivID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	pp := p.pipelinePaper()
	return &pp, nil
}

// PapersToSummarize returns up to limit papers missing a summary or a PDF
// hash, most recently published first.
func (s *Store) PapersToSummarize(ctx context.Context, limit int) ([]pipeline.Paper, error) {
	var rows []Paper
	err := s.db.WithContext(ctx).
		Where("llm_summary IS NULL OR summary_pdf_sha256 IS NULL").
		Order("published DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: papers to summarize: %w", err)
	}
	out := make([]pipeline.Paper, len(rows))
	for i, r := range rows {
		out[i] = r.pipelinePaper()
	}
	return out, nil
}

// CommitSummary writes every field of res onto the paper in one update.
func (s *Store) CommitSummary(ctx context.Context, paperID uint, res *pipeline.Result) error {
	spec, err := json.Marshal(res.NormalizationSpec)
	if err != nil {
		return fmt.Errorf("store: encode normalization spec: %w", err)
	}
	summarizedAt := res.SummarizedAt
	if summarizedAt.IsZero() {
		summarizedAt = time.Now().UTC()
	}

	result := s.db.WithContext(ctx).Model(&Paper{}).Where("id = ?", paperID).Updates(map[string]any{
		"llm_summary":             res.SummaryText,
		"summary_model":           res.SummaryModel,
		"summary_updated_at":      summarizedAt,
		"summary_pdf_sha256":      res.PDFSHA256,
		"extracted_text_sha256":   res.TextSHA256,
		"extraction_tool":         res.ExtractionTool,
		"extraction_tool_version": res.ExtractionToolVersion,
		"normalization_spec":      string(spec),
		"prompt_version":          res.PromptVersion,
		"summary_chunks":          res.Chunks,
		"pages_total":             res.PagesTotal,
		"pages_failed":            res.PagesFailed,
		"summary_schema_valid":    res.SchemaValid,
	})
	if result.Error != nil {
		return fmt.Errorf("store: commit summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Paper) pipelinePaper() pipeline.Paper {
	pp := pipeline.Paper{
		ID:        p.ID,
		ArxivID:   p.ArxivID,
		Title:     p.Title,
		Authors:   p.Authors,
		Venue:     p.JournalRef,
		DOI:       p.DOI,
		URL:       p.URL,
		PDFURL:    p.PDFURL,
		PDFSHA256: p.SummaryPDFSHA256,
		Summary:   p.LLMSummary,
		Published: p.Published,
	}
	if !p.Published.IsZero() {
		year := p.Published.Year()
		pp.Year = &year
	}
	return pp
}
