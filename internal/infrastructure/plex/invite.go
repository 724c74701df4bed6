package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"plexward/internal/shared/biztime"
)

// InviteResult is what an invite attempt produced. PlexInviteID and
// InviteURL are both optional: the v2 endpoint shares immediately and
// returns no URL.
type InviteResult struct {
	PlexInviteID    string
	InviteURL       string
	SharedLibraries []string
	Status          string
	InvitedAt       time.Time
}

// Invite shares the configured library sections with the given address.
// The legacy endpoint is preferred when the server has a numeric id because
// it returns a shareable invite URL.
func (c *Client) Invite(ctx context.Context, invitedEmail string, sections []string) (*InviteResult, error) {
	cfg := c.provider.GetPlexConfig(ctx)
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if len(sections) == 0 {
		sections = cfg.LibrarySectionIDs
	}
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	desc, err := c.descriptor(ctx)
	if err != nil {
		return nil, err
	}

	if desc.LegacyServerID != "" {
		return c.inviteLegacy(ctx, cfg.Token, desc, invitedEmail, sections)
	}
	return c.inviteV2(ctx, cfg.Token, desc, invitedEmail, sections)
}

// inviteLegacy posts the form-shaped JSON the pre-v2 endpoint expects, with
// sharing settings as "0"/"1" strings.
func (c *Client) inviteLegacy(ctx context.Context, token string, desc *serverDescriptor, invitedEmail string, sections []string) (*InviteResult, error) {
	payload := map[string]any{
		"server_id": desc.LegacyServerID,
		"shared_server": map[string]any{
			"library_section_ids": sections,
			"invited_email":       invitedEmail,
		},
		"sharing_settings": map[string]any{
			"allow_sync":          "0",
			"allow_camera_upload": "0",
			"allow_channels":      "0",
		},
	}

	endpoint := fmt.Sprintf("%s/api/servers/%s/shared_servers", plexTVBaseURL, url.PathEscape(desc.LegacyServerID))
	body, status, err := c.do(ctx, http.MethodPost, endpoint, token, payload)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, fmt.Errorf("%w: invite returned status %d", ErrRejected, status)
	}
	if status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: invite returned status %d: %s", ErrRejected, status, string(body))
	}

	result := &InviteResult{
		SharedLibraries: sections,
		Status:          "invited",
		InvitedAt:       biztime.NowUTC(),
	}
	if entry := sharedServerEntry(body); entry != nil {
		result.PlexInviteID = stringField(entry, "id", "inviteID", "invite_id")
		result.InviteURL = stringField(entry, "inviteUrl", "invite_url")
		if result.InviteURL == "" {
			if inviteToken := stringField(entry, "inviteToken", "invite_token"); inviteToken != "" {
				result.InviteURL = "https://app.plex.tv/desktop#!/settings/manage-library-access?inviteToken=" + url.QueryEscape(inviteToken)
			}
		}
	}
	return result, nil
}

// inviteV2 uses the modern endpoint, which shares immediately and returns no
// invite URL.
func (c *Client) inviteV2(ctx context.Context, token string, desc *serverDescriptor, invitedEmail string, sections []string) (*InviteResult, error) {
	sectionIDs := make([]any, 0, len(sections))
	for _, section := range sections {
		if id, err := strconv.Atoi(section); err == nil {
			sectionIDs = append(sectionIDs, id)
		} else {
			sectionIDs = append(sectionIDs, section)
		}
	}

	payload := map[string]any{
		"machineIdentifier": desc.MachineIdentifier,
		"librarySectionIds": sectionIDs,
		"invitedEmail":      invitedEmail,
		"settings": map[string]any{
			"allowSync":   false,
			"allowTuners": 0,
		},
	}

	body, status, err := c.do(ctx, http.MethodPost, plexTVBaseURL+"/api/v2/shared_servers", token, payload)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, fmt.Errorf("%w: invite returned status %d", ErrRejected, status)
	}
	if status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: invite returned status %d: %s", ErrRejected, status, string(body))
	}

	result := &InviteResult{
		SharedLibraries: sections,
		Status:          "shared",
		InvitedAt:       biztime.NowUTC(),
	}
	var entry map[string]any
	if err := json.Unmarshal(body, &entry); err == nil {
		result.PlexInviteID = stringField(entry, "id")
		if result.PlexInviteID == "" {
			if invited, ok := entry["invited"].(map[string]any); ok {
				result.PlexInviteID = stringField(invited, "id")
			}
		}
	}
	return result, nil
}

// CancelInvite withdraws a pending invite. Returns false when the invite was
// already gone.
func (c *Client) CancelInvite(ctx context.Context, plexInviteID string) (bool, error) {
	cfg := c.provider.GetPlexConfig(ctx)
	if !cfg.Configured() {
		return false, ErrNotConfigured
	}
	if plexInviteID == "" {
		return false, ErrNoIdentifier
	}

	body, status, err := c.do(ctx, http.MethodDelete, plexTVBaseURL+"/api/v2/shared_servers/"+url.PathEscape(plexInviteID), cfg.Token, nil)
	if err != nil {
		return false, err
	}
	if isAuthStatus(status) {
		return false, fmt.Errorf("%w: cancel invite returned status %d", ErrRejected, status)
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= http.StatusMultipleChoices {
		return false, fmt.Errorf("plex cancel invite returned status %d: %s", status, string(body))
	}
	return true, nil
}

// sharedServerEntry digs the shared server object out of the legacy response
// shapes.
func sharedServerEntry(body []byte) map[string]any {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}
	if container, ok := root["MediaContainer"].(map[string]any); ok {
		root = container
	}
	if entry, ok := root["SharedServer"].(map[string]any); ok {
		return entry
	}
	if list, ok := root["SharedServer"].([]any); ok && len(list) > 0 {
		if entry, ok := list[0].(map[string]any); ok {
			return entry
		}
	}
	if entry, ok := root["shared_server"].(map[string]any); ok {
		return entry
	}
	return root
}
