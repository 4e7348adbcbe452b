package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/types"
)

const (
	maxPerPage       = 100
	maxFileListPages = 3 // files beyond 300 never influence ranking
)

// apiCommit mirrors the commit listing response.
type apiCommit struct {
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Commit struct {
		Author struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// CommitsForPath returns recent commits touching path, newest first.
func (c *Client) CommitsForPath(ctx context.Context, owner, repo, path string, since time.Time, limit int) ([]types.Commit, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits?path=%s&since=%s&per_page=%d",
		c.baseURL, owner, repo, url.QueryEscape(path), url.QueryEscape(since.UTC().Format(time.RFC3339)), limit)

	if cached, found := c.cache.Get(apiURL); found {
		if commits, ok := cached.([]types.Commit); ok {
			return commits, nil
		}
	}

	var raw []apiCommit
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", path, err)
	}

	commits := make([]types.Commit, 0, len(raw))
	for _, rc := range raw {
		if rc.Author == nil || rc.Author.Login == "" {
			continue // unlinked commit author, nothing to credit
		}
		commits = append(commits, types.Commit{
			Author:     rc.Author.Login,
			AuthoredAt: rc.Commit.Author.Date,
		})
	}

	c.cache.Set(apiURL, commits)
	return commits, nil
}

// apiPullRequest mirrors the pull request response.
type apiPullRequest struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	User      struct {
		Login string `json:"login"`
	} `json:"user"`
	RequestedReviewers []struct {
		Login string `json:"login"`
	} `json:"requested_reviewers"`
	Number int  `json:"number"`
	Draft  bool `json:"draft"`
}

func (pr *apiPullRequest) toType(owner, repo string) types.PullRequest {
	out := types.PullRequest{
		CreatedAt:  pr.CreatedAt,
		UpdatedAt:  pr.UpdatedAt,
		Title:      pr.Title,
		State:      pr.State,
		Author:     pr.User.Login,
		Owner:      owner,
		Repository: repo,
		Number:     pr.Number,
		Draft:      pr.Draft,
	}
	if pr.ClosedAt != nil {
		out.ClosedAt = *pr.ClosedAt
	}
	for _, r := range pr.RequestedReviewers {
		out.RequestedReviewers = append(out.RequestedReviewers, r.Login)
	}
	return out
}

// PullRequests lists pull requests in the given state, most recently updated first.
func (c *Client) PullRequests(ctx context.Context, owner, repo, state string, limit int) ([]types.PullRequest, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=%s&sort=updated&direction=desc&per_page=%d",
		c.baseURL, owner, repo, url.QueryEscape(state), limit)

	var raw []apiPullRequest
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}

	prs := make([]types.PullRequest, 0, len(raw))
	for i := range raw {
		prs = append(prs, raw[i].toType(owner, repo))
	}
	return prs, nil
}

// PullRequest fetches a single pull request with its changed files.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*types.PullRequest, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)

	var raw apiPullRequest
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	pr := raw.toType(owner, repo)
	files, err := c.changedFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	pr.ChangedFiles = files
	return &pr, nil
}

// changedFiles lists the files of a pull request, paging up to maxFileListPages.
func (c *Client) changedFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error) {
	var files []types.ChangedFile
	for page := 1; page <= maxFileListPages; page++ {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
			c.baseURL, owner, repo, number, maxPerPage, page)

		var raw []struct {
			Filename  string `json:"filename"`
			Additions int    `json:"additions"`
			Deletions int    `json:"deletions"`
		}
		if err := c.getJSON(ctx, apiURL, &raw); err != nil {
			return nil, fmt.Errorf("failed to list changed files: %w", err)
		}
		for _, f := range raw {
			files = append(files, types.ChangedFile{
				Path:      f.Filename,
				Additions: f.Additions,
				Deletions: f.Deletions,
			})
		}
		if len(raw) < maxPerPage {
			break
		}
	}
	return files, nil
}

// Reviews returns the submitted reviews for a pull request in submission order.
func (c *Client) Reviews(ctx context.Context, owner, repo string, number int) ([]types.Review, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews?per_page=%d", c.baseURL, owner, repo, number, maxPerPage)

	var raw []struct {
		SubmittedAt *time.Time `json:"submitted_at"`
		State       string     `json:"state"`
		User        struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	reviews := make([]types.Review, 0, len(raw))
	for _, r := range raw {
		if r.SubmittedAt == nil || r.User.Login == "" {
			continue // pending reviews have no submission time
		}
		reviews = append(reviews, types.Review{
			Author:      r.User.Login,
			State:       r.State,
			SubmittedAt: *r.SubmittedAt,
		})
	}
	return reviews, nil
}

// FileContent returns the raw content of a file on the default branch.
func (c *Client) FileContent(ctx context.Context, owner, repo, path string) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, escapePath(path))

	if cached, found := c.cache.Get(apiURL); found {
		if content, ok := cached.(string); ok {
			return content, nil
		}
	}

	var raw struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", path, err)
	}

	content := raw.Content
	if raw.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", path, err)
		}
		content = string(decoded)
	}

	c.cache.Set(apiURL, content)
	return content, nil
}

// escapePath escapes each path segment while preserving separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// Comment is an issue comment on a pull request.
type Comment struct {
	Body string
	ID   int64
}

// IssueComments lists the issue comments on a pull request.
func (c *Client) IssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=%d", c.baseURL, owner, repo, number, maxPerPage)

	var raw []struct {
		Body string `json:"body"`
		ID   int64  `json:"id"`
	}
	if err := c.getJSON(ctx, apiURL, &raw); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	comments := make([]Comment, 0, len(raw))
	for _, rc := range raw {
		comments = append(comments, Comment{ID: rc.ID, Body: rc.Body})
	}
	return comments, nil
}

// CreateComment posts a new issue comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, number)

	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to create comment (status %d)", resp.StatusCode)
	}
	return nil
}

// UpdateComment replaces the body of an existing issue comment.
func (c *Client) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, owner, repo, commentID)

	resp, err := c.doRequest(ctx, http.MethodPatch, apiURL, map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to update comment (status %d)", resp.StatusCode)
	}
	return nil
}
