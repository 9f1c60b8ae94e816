package github

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
)

// Repository is the subset of the repository resource we use.
type Repository struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	Fork        bool      `json:"fork"`
	Topics      []string  `json:"topics"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	Size        int       `json:"size"`
}

// Metadata converts the resource into the domain record.
func (r *Repository) Metadata() candidate.Metadata {
	return candidate.Metadata{
		Name:        r.Name,
		Description: r.Description,
		Stars:       r.Stars,
		Fork:        r.Fork,
		Topics:      r.Topics,
		Visibility:  r.Visibility,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		PushedAt:    r.PushedAt,
		SizeKB:      r.Size,
	}
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	var repo Repository
	if err := c.getJSON(ctx, repoPath(owner, name), nil, "Repository not found.", &repo); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched repository",
		zap.String("repo", owner+"/"+name),
		zap.Int("stars", repo.Stars),
		zap.Bool("fork", repo.Fork),
	)
	return &repo, nil
}

type contentFile struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ErrReadmeFormat is wrapped by README errors whose payload could not be decoded.
var ErrReadmeFormat = errors.New("unexpected README encoding")

// GetReadme fetches README.md from the default branch and returns its text.
func (c *Client) GetReadme(ctx context.Context, owner, name string) (string, error) {
	var file contentFile
	if err := c.getJSON(ctx, repoPath(owner, name, "contents", "README.md"), nil, "README.md not found.", &file); err != nil {
		return "", err
	}

	if file.Encoding != "base64" {
		return "", malformed("README content not in expected format.", ErrReadmeFormat)
	}
	// GitHub wraps base64 content at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", malformed("README content not in expected format.", err)
	}
	return string(raw), nil
}
