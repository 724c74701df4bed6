package access

import (
	"strings"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/plex"
	"plexward/internal/shared/utils"
)

// DonorHasShare classifies the donor against the user list. A donor matches
// a user when any email-like field equals the donor's addresses, or any
// id-like field equals the normalized plex account id.
func DonorHasShare(d *donor.Donor, users []plex.User) Presence {
	for i := range users {
		if !MatchUser(d, &users[i]) {
			continue
		}
		if users[i].IsPending() {
			return PresencePending
		}
		return PresenceShared
	}
	return PresenceAbsent
}

// MatchUser reports whether the user record belongs to the donor.
func MatchUser(d *donor.Donor, user *plex.User) bool {
	emails := make([]string, 0, 2)
	if email := utils.NormalizeEmail(d.Email()); email != "" {
		emails = append(emails, email)
	}
	if plexEmail := utils.NormalizeEmail(d.PlexEmail()); plexEmail != "" {
		emails = append(emails, plexEmail)
	}
	for _, candidate := range user.EmailFields() {
		normalized := utils.NormalizeEmail(candidate)
		if normalized == "" {
			continue
		}
		for _, email := range emails {
			if normalized == email {
				return true
			}
		}
	}

	if accountID := utils.NormalizePlexID(d.PlexAccountID()); accountID != "" {
		for _, candidate := range user.IDFields() {
			if utils.NormalizePlexID(candidate) == accountID {
				return true
			}
		}
	}
	return false
}

// MatchShare reports whether a share record belongs to the donor.
func MatchShare(d *donor.Donor, share *plex.Share) bool {
	emails := []string{utils.NormalizeEmail(d.Email()), utils.NormalizeEmail(d.PlexEmail())}
	for _, candidate := range share.Emails {
		normalized := utils.NormalizeEmail(candidate)
		if normalized == "" {
			continue
		}
		for _, email := range emails {
			if email != "" && normalized == email {
				return true
			}
		}
	}
	if accountID := utils.NormalizePlexID(d.PlexAccountID()); accountID != "" {
		for _, candidate := range share.UserIDs {
			if utils.NormalizePlexID(candidate) == accountID {
				return true
			}
		}
	}
	return false
}

// identityOf extracts the first id and first email of a matched user for
// snapshotting onto the donor.
func identityOf(user *plex.User) (id string, email string) {
	for _, candidate := range user.IDFields() {
		if candidate != "" {
			id = candidate
			break
		}
	}
	for _, candidate := range []string{user.Email, user.AccountEmail} {
		if strings.TrimSpace(candidate) != "" {
			email = strings.TrimSpace(candidate)
			break
		}
	}
	return id, email
}

// FindDonorUser returns the matched user record, or nil.
func FindDonorUser(d *donor.Donor, users []plex.User) *plex.User {
	for i := range users {
		if MatchUser(d, &users[i]) {
			return &users[i]
		}
	}
	return nil
}

// IdentitySnapshot returns the donor's Plex id and email as seen on the
// server, for persisting after a match.
func IdentitySnapshot(user *plex.User) (string, string) {
	return identityOf(user)
}
