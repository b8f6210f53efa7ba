package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"jobwatch/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// Ensure GreenhouseAdapter implements model.SourceAdapter.
var _ model.SourceAdapter = (*GreenhouseAdapter)(nil)

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
	Departments []greenhouseDept   `json:"departments"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseDept struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// greenhouseDetail is the per-job endpoint response; Content is HTML-encoded.
type greenhouseDetail struct {
	Content  string             `json:"content"`
	Location greenhouseLocation `json:"location"`
}

// GreenhouseAdapter reads a company's public Greenhouse board API. Unlike
// the HTML-scraping variants, the board serves JSON, so no markup selectors
// are involved; the detail content still needs markup stripping.
type GreenhouseAdapter struct {
	source     string
	boardToken string
	baseURL    string
	client     Getter
	logger     *slog.Logger
}

// NewGreenhouseAdapter creates an adapter for a Greenhouse board token.
func NewGreenhouseAdapter(source, boardToken string, client Getter, logger *slog.Logger) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		source:     source,
		boardToken: boardToken,
		baseURL:    greenhouseBaseURL,
		client:     client,
		logger:     logger,
	}
}

func (a *GreenhouseAdapter) Source() string { return a.source }

// FetchListing retrieves all jobs from the board and normalizes them into
// postings keyed by the job's board URL.
func (a *GreenhouseAdapter) FetchListing(ctx context.Context) ([]model.Posting, error) {
	endpoint := fmt.Sprintf("%s/%s/jobs", a.baseURL, a.boardToken)
	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("greenhouse listing for %s: %w", a.boardToken, err)
	}

	var resp greenhouseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("greenhouse listing for %s: %w", a.boardToken, err)
	}

	now := time.Now().UTC()
	postings := make([]model.Posting, 0, len(resp.Jobs))
	for _, gj := range resp.Jobs {
		if gj.AbsoluteURL == "" || gj.Title == "" {
			a.logger.Warn("skipping malformed board entry", "source", a.source, "id", gj.ID)
			continue
		}
		p := model.Posting{
			Identity:  gj.AbsoluteURL,
			Title:     cleanText(gj.Title),
			Location:  normalizeLocation(gj.Location.Name),
			URL:       gj.AbsoluteURL,
			FetchedAt: now,
		}
		if len(gj.Departments) > 0 {
			p.Team = cleanText(gj.Departments[0].Name)
		}
		if gj.UpdatedAt != "" {
			if t, err := time.Parse(time.RFC3339, gj.UpdatedAt); err == nil {
				p.PostedDate = &t
			}
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// FetchDetail hits the per-job endpoint and strips the HTML-encoded content.
// The job id is the trailing path segment of the board URL; board URLs often
// carry tracking query params (gh_jid, gh_src) that must not leak into the
// endpoint.
func (a *GreenhouseAdapter) FetchDetail(ctx context.Context, p model.Posting) (*model.Detail, error) {
	id := jobIDFromURL(p.URL)
	if id == "" {
		return nil, fmt.Errorf("greenhouse detail for %s: no job id in url %q", a.boardToken, p.URL)
	}

	endpoint := fmt.Sprintf("%s/%s/jobs/%s", a.baseURL, a.boardToken, id)
	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("greenhouse detail for %s/%s: %w", a.boardToken, id, err)
	}

	var detail greenhouseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("greenhouse detail for %s/%s: %w", a.boardToken, id, err)
	}

	text := extractText(detail.Content)
	if text == "" {
		d := detailUnavailable
		return &d, nil
	}
	return &model.Detail{
		Text:     text,
		Location: normalizeLocation(detail.Location.Name),
	}, nil
}

// jobIDFromURL extracts the job id from a board URL, ignoring any query
// string or fragment.
func jobIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}
