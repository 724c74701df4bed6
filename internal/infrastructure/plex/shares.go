package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Share is one current access grant on the server.
type Share struct {
	ID      string
	Emails  []string
	UserIDs []string
	Status  string
	Pending bool
}

// IsPending reports whether the share is a not-yet-accepted invitation.
func (s *Share) IsPending() bool {
	if s.Pending {
		return true
	}
	lowered := strings.ToLower(s.Status)
	return strings.Contains(lowered, "pending") || strings.Contains(lowered, "invited")
}

// ListShares returns the current shares of the target server.
func (c *Client) ListShares(ctx context.Context) ([]Share, error) {
	cfg := c.provider.GetPlexConfig(ctx)
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	desc, err := c.descriptor(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := plexTVBaseURL + "/api/v2/shared_servers?machineIdentifier=" + url.QueryEscape(desc.MachineIdentifier)
	body, status, err := c.do(ctx, http.MethodGet, endpoint, cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, fmt.Errorf("%w: shared servers returned status %d", ErrRejected, status)
	}

	// Older servers lack the v2 listing; the user list carries the same
	// membership information there.
	if status == http.StatusNotFound {
		users, err := c.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		return sharesFromUsers(users), nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("plex shared servers returned status %d", status)
	}

	users, err := parseUsers(body)
	if err != nil {
		return nil, err
	}
	return sharesFromUsers(users), nil
}

func sharesFromUsers(users []User) []Share {
	shares := make([]Share, 0, len(users))
	for i := range users {
		user := &users[i]
		emails := make([]string, 0, 4)
		for _, email := range user.EmailFields() {
			if email != "" {
				emails = append(emails, email)
			}
		}
		ids := make([]string, 0, 4)
		for _, id := range user.IDFields() {
			if id != "" {
				ids = append(ids, id)
			}
		}
		shares = append(shares, Share{
			ID:      user.ID,
			Emails:  emails,
			UserIDs: ids,
			Status:  user.Status,
			Pending: user.Pending,
		})
	}
	return shares
}
