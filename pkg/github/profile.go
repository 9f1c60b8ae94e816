package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// RepoRef is one entry of a user's repository listing.
type RepoRef struct {
	Name     string `mapstructure:"name"`
	FullName string `mapstructure:"full_name"`
	HTMLURL  string `mapstructure:"html_url"`
	Fork     bool   `mapstructure:"fork"`
	Archived bool   `mapstructure:"archived"`
	Stars    int    `mapstructure:"stargazers_count"`
}

// ListUserRepositories returns every public repository owned by user.
// Pages are requested until one comes back shorter than PerPage.
func (c *Client) ListUserRepositories(ctx context.Context, user string) ([]RepoRef, error) {
	size := c.PerPage
	if size <= 0 || size > perPage {
		size = perPage
	}
	path := fmt.Sprintf("/users/%s/repos", url.PathEscape(user))
	q := url.Values{
		"per_page": {strconv.Itoa(size)},
		"type":     {"owner"},
	}

	var repos []RepoRef
	for page := 1; ; page++ {
		var items []map[string]any
		if err := c.getJSON(ctx, path, addPage(q, page), "User not found.", &items); err != nil {
			return nil, err
		}

		var refs []RepoRef
		if err := mapstructure.Decode(items, &refs); err != nil {
			return nil, malformed("Malformed repository listing.", err)
		}
		repos = append(repos, refs...)

		if len(items) < size {
			break
		}
		c.logger.Debug("additional request needed",
			zap.String("user", user),
			zap.Int("page", page+1),
		)
	}

	c.logger.Debug("listed user repositories", zap.String("user", user), zap.Int("count", len(repos)))
	return repos, nil
}
