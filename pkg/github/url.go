package github

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var userRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedPaths are top-level github.com paths that are not accounts.
var reservedPaths = map[string]bool{
	"orgs": true, "settings": true, "explore": true, "topics": true,
	"marketplace": true, "features": true, "login": true, "about": true,
	"pricing": true, "sponsors": true, "notifications": true, "search": true,
}

// RepoID identifies a repository by owner and name.
type RepoID struct {
	Owner string
	Name  string
}

// URL returns the canonical https URL of the repository.
func (r RepoID) URL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

func (r RepoID) String() string { return r.Owner + "/" + r.Name }

// ParseRepoURL extracts owner and name from a repository URL such as
// https://github.com/Owner/Repo.git/ or http://www.github.com/owner/repo/tree/main.
// Owner and name are lower-cased; GitHub treats them case-insensitively.
func ParseRepoURL(raw string) (RepoID, error) {
	parts, err := githubPath(raw)
	if err != nil {
		return RepoID{}, fmt.Errorf("repository url %q: %w", raw, err)
	}
	if len(parts) < 2 {
		return RepoID{}, fmt.Errorf("repository url %q has no owner/name", raw)
	}
	name := strings.TrimSuffix(parts[1], ".git")
	if parts[0] == "" || name == "" {
		return RepoID{}, fmt.Errorf("repository url %q has no owner/name", raw)
	}
	return RepoID{Owner: strings.ToLower(parts[0]), Name: strings.ToLower(name)}, nil
}

// githubPath returns the path segments of a github.com URL. The scheme is
// optional and the host is matched case-insensitively, with or without www.
func githubPath(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return nil, fmt.Errorf("not on github.com")
	}
	return strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' }), nil
}

// Canonical returns the normalized identity of a repository URL. Two URLs
// naming the same repository always have the same canonical form.
func Canonical(raw string) (string, error) {
	id, err := ParseRepoURL(raw)
	if err != nil {
		return "", err
	}
	return id.URL(), nil
}

// ProfileUser extracts the user name from a profile URL like
// https://github.com/octocat. Other hosts and site pages such as /orgs are
// rejected.
func ProfileUser(raw string) (string, bool) {
	parts, err := githubPath(raw)
	if err != nil || len(parts) == 0 {
		return "", false
	}
	user := parts[0]
	if !userRe.MatchString(user) || reservedPaths[strings.ToLower(user)] {
		return "", false
	}
	return user, true
}
