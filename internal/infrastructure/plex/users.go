package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// userListPaths are probed in order; the first non-404 answer wins and is
// cached until a later 404 or auth failure invalidates it.
var userListPaths = []string{"/accounts", "/api/v2/home/users", "/api/home/users"}

// User is one current or invited account on the server, normalized from
// whichever user-list endpoint answered.
type User struct {
	ID                string
	UUID              string
	UserID            string
	MachineIdentifier string
	AccountID         string
	Email             string
	Username          string
	Title             string
	AccountEmail      string
	InvitationEmails  []string
	Emails            []string
	Pending           bool
	Status            string
}

// EmailFields returns every email-like field for donor matching.
func (u *User) EmailFields() []string {
	fields := []string{u.Email, u.Username, u.Title, u.AccountEmail}
	fields = append(fields, u.InvitationEmails...)
	fields = append(fields, u.Emails...)
	return fields
}

// IDFields returns every id-like field for donor matching.
func (u *User) IDFields() []string {
	return []string{u.ID, u.UUID, u.UserID, u.MachineIdentifier, u.AccountID}
}

// IsPending reports whether the user has not yet accepted their invite.
func (u *User) IsPending() bool {
	if u.Pending {
		return true
	}
	lowered := strings.ToLower(u.Status)
	return strings.Contains(lowered, "pending") || strings.Contains(lowered, "invited")
}

// ListUsers returns the server's current users, probing for the endpoint the
// server supports.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	cfg := c.provider.GetPlexConfig(ctx)
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	cachedPath := c.userListPath
	c.mu.Unlock()

	paths := userListPaths
	if cachedPath != "" {
		paths = []string{cachedPath}
	}

	var attempted []string
	for _, path := range paths {
		attempted = append(attempted, path)
		body, status, err := c.do(ctx, http.MethodGet, plexTVBaseURL+path, cfg.Token, nil)
		if err != nil {
			return nil, err
		}
		if isAuthStatus(status) {
			c.invalidateUserListPath()
			return nil, fmt.Errorf("%w: user list returned status %d", ErrRejected, status)
		}
		if status == http.StatusNotFound {
			c.invalidateUserListPath()
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("plex user list returned status %d", status)
		}

		users, err := parseUsers(body)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.userListPath = path
		c.mu.Unlock()
		return users, nil
	}

	// A cached path that has gone 404 falls back to a full probe once.
	if cachedPath != "" {
		return c.ListUsers(ctx)
	}
	return nil, fmt.Errorf("no plex user list endpoint answered, tried %s", strings.Join(attempted, ", "))
}

func (c *Client) invalidateUserListPath() {
	c.mu.Lock()
	c.userListPath = ""
	c.mu.Unlock()
}

// RevokeTarget identifies the user to remove, by account id first and email
// second.
type RevokeTarget struct {
	PlexAccountID string
	Email         string
}

// RevokeOutcome reports what a revoke call did.
type RevokeOutcome string

const (
	RevokeSuccess  RevokeOutcome = "success"
	RevokeNotFound RevokeOutcome = "not_found"
)

// RevokeUser removes a user's share. A user absent from the list, or a 404
// from the delete, counts as already gone.
func (c *Client) RevokeUser(ctx context.Context, target RevokeTarget) (RevokeOutcome, error) {
	if target.PlexAccountID == "" && target.Email == "" {
		return "", ErrNoIdentifier
	}

	users, err := c.ListUsers(ctx)
	if err != nil {
		return "", err
	}

	user := matchTarget(users, target)
	if user == nil {
		return RevokeNotFound, nil
	}
	userID := user.ID
	if userID == "" {
		userID = stringFirst(user.UUID, user.UserID, user.AccountID)
	}
	if userID == "" {
		return "", ErrNoIdentifier
	}

	cfg := c.provider.GetPlexConfig(ctx)
	c.mu.Lock()
	basePath := c.userListPath
	c.mu.Unlock()
	if basePath == "" {
		basePath = userListPaths[0]
	}

	body, status, err := c.do(ctx, http.MethodDelete, plexTVBaseURL+basePath+"/"+url.PathEscape(userID), cfg.Token, nil)
	if err != nil {
		return "", err
	}
	if isAuthStatus(status) {
		c.invalidateUserListPath()
		return "", fmt.Errorf("%w: revoke returned status %d", ErrRejected, status)
	}
	if status == http.StatusNotFound {
		return RevokeNotFound, nil
	}
	if status >= http.StatusMultipleChoices {
		return "", fmt.Errorf("plex revoke returned status %d: %s", status, string(body))
	}
	return RevokeSuccess, nil
}

// matchTarget applies the revocation selection rules: account id first, then
// email.
func matchTarget(users []User, target RevokeTarget) *User {
	if normalizedID := normalizeID(target.PlexAccountID); normalizedID != "" {
		for i := range users {
			for _, id := range users[i].IDFields() {
				if normalizeID(id) == normalizedID {
					return &users[i]
				}
			}
		}
	}
	if email := strings.ToLower(strings.TrimSpace(target.Email)); email != "" {
		for i := range users {
			for _, candidate := range users[i].EmailFields() {
				if strings.ToLower(strings.TrimSpace(candidate)) == email {
					return &users[i]
				}
			}
		}
	}
	return nil
}

func normalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "-", "")
}

func stringFirst(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseUsers handles the container shapes the three endpoint generations
// serve: a bare array, {"users": [...]}, or MediaContainer with Account or
// User entries.
func parseUsers(body []byte) ([]User, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to decode plex user list: %w", err)
	}

	entries := userEntries(root)
	users := make([]User, 0, len(entries))
	for _, entry := range entries {
		users = append(users, parseUser(entry))
	}
	return users, nil
}

func userEntries(root any) []map[string]any {
	switch value := root.(type) {
	case []any:
		return mapSlice(value)
	case map[string]any:
		for _, key := range []string{"users", "User", "Account", "accounts"} {
			if list, ok := value[key].([]any); ok {
				return mapSlice(list)
			}
		}
		if container, ok := value["MediaContainer"].(map[string]any); ok {
			return userEntries(container)
		}
	}
	return nil
}

func mapSlice(list []any) []map[string]any {
	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	return entries
}

func parseUser(m map[string]any) User {
	user := User{
		ID:                asString(m["id"]),
		UUID:              asString(m["uuid"]),
		UserID:            asString(m["userID"]),
		MachineIdentifier: asString(m["machineIdentifier"]),
		Email:             asString(m["email"]),
		Username:          asString(m["username"]),
		Title:             asString(m["title"]),
		Pending:           asBool(m["pending"]),
		Status:            asString(m["status"]),
	}

	if account, ok := m["account"].(map[string]any); ok {
		user.AccountEmail = asString(account["email"])
		user.AccountID = asString(account["id"])
	}
	if invitations, ok := m["invitations"].([]any); ok {
		for _, item := range invitations {
			if inv, ok := item.(map[string]any); ok {
				if email := asString(inv["email"]); email != "" {
					user.InvitationEmails = append(user.InvitationEmails, email)
				}
			}
		}
	}
	if emails, ok := m["emails"].([]any); ok {
		for _, item := range emails {
			if email := asString(item); email != "" {
				user.Emails = append(user.Emails, email)
			}
		}
	}
	return user
}
