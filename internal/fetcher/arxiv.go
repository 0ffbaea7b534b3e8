package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ryosukesatoh/researchtldr/internal/retry"
)

// DefaultArxivURL is the arXiv export API endpoint.
const DefaultArxivURL = "https://export.arxiv.org/api/query"

// arXiv Atom feed XML structures

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	Published       string          `xml:"published"`
	Updated         string          `xml:"updated"`
	Categories      []arxivCategory `xml:"category"`
	PrimaryCategory arxivCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	DOI             string          `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef      string          `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Comment         string          `xml:"http://arxiv.org/schemas/atom comment"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// ArxivFetcher lists papers from the arXiv export API.
type ArxivFetcher struct {
	client  *http.Client
	baseURL string
	retry   retry.Config
}

// NewArxivFetcher returns a fetcher for baseURL, or DefaultArxivURL when
// baseURL is empty.
func NewArxivFetcher(baseURL string) *ArxivFetcher {
	if baseURL == "" {
		baseURL = DefaultArxivURL
	}
	return &ArxivFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		retry:   retry.DefaultConfig(),
	}
}

// SearchQuery renders q in arXiv search_query syntax.
func SearchQuery(q Query) string {
	query := fmt.Sprintf("submittedDate:[%s0000 TO %s2359]",
		q.From.UTC().Format("20060102"), q.To.UTC().Format("20060102"))
	if len(q.Categories) == 0 {
		return query
	}
	cats := make([]string, len(q.Categories))
	for i, c := range q.Categories {
		cats[i] = "cat:" + c
	}
	if len(cats) == 1 {
		return query + " AND " + cats[0]
	}
	return query + " AND (" + strings.Join(cats, " OR ") + ")"
}

// Search returns the entries matching q, newest submissions first.
// Transient failures are retried with backoff.
func (f *ArxivFetcher) Search(ctx context.Context, q Query) ([]Paper, error) {
	params := url.Values{}
	params.Set("search_query", SearchQuery(q))
	params.Set("start", strconv.Itoa(q.Start))
	if q.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(q.MaxResults))
	}
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	reqURL := f.baseURL + "?" + params.Encode()

	var body []byte
	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		var err error
		body, err = f.get(ctx, reqURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: failed to parse XML: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entry.paper())
	}
	return papers, nil
}

func (f *ArxivFetcher) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Reason: "bad request", Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: reqURL, Err: err}
	}
	return body, nil
}

func (e arxivEntry) paper() Paper {
	authors := make([]string, len(e.Authors))
	for i, a := range e.Authors {
		authors[i] = strings.TrimSpace(a.Name)
	}

	var absURL, pdfURL string
	for _, link := range e.Links {
		switch {
		case link.Title == "pdf" || link.Type == "application/pdf":
			pdfURL = link.Href
		case link.Rel == "alternate":
			absURL = link.Href
		}
	}
	if absURL == "" {
		absURL = strings.TrimSpace(e.ID)
	}

	id := strings.TrimSpace(e.ID)
	if idx := strings.LastIndex(id, "/abs/"); idx >= 0 {
		id = id[idx+len("/abs/"):]
	}
	id = versionSuffix.ReplaceAllString(id, "")
	if pdfURL == "" && id != "" {
		pdfURL = "https://arxiv.org/pdf/" + id
	}

	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Term)
	}
	primary := e.PrimaryCategory.Term
	if primary == "" && len(categories) > 0 {
		primary = categories[0]
	}

	published, _ := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	updated, _ := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated))

	return Paper{
		ArxivID:         id,
		Title:           strings.Join(strings.Fields(e.Title), " "),
		Abstract:        strings.TrimSpace(e.Summary),
		Authors:         authors,
		URL:             absURL,
		PDFURL:          pdfURL,
		Published:       published,
		Updated:         updated,
		PrimaryCategory: primary,
		Categories:      categories,
		DOI:             strings.TrimSpace(e.DOI),
		JournalRef:      strings.TrimSpace(e.JournalRef),
		Comment:         strings.TrimSpace(e.Comment),
	}
}
