package auth

import (
	"time"

	"taskdesk/internal/domain"
)

// Per-record access rules layered above the role gate. All decisions
// are pure; the caller loads the record.

// CanReadTask: admins, assignees and the creator may read a task.
func CanReadTask(pc PrincipalContext, t domain.Task) bool {
	if pc.IsAdmin() {
		return true
	}
	return t.AssignedToContains(pc.ID) || t.AssignedBy == pc.ID
}

// CanMutateTask: admins may change anything. Non-admins qualify only if
// they are an assignee or the creator, and even then the server limits
// them to the status/comment allow-list; reassignment and deletion stay
// admin-only.
func CanMutateTask(pc PrincipalContext, t domain.Task) bool {
	if pc.IsAdmin() {
		return true
	}
	return t.AssignedToContains(pc.ID) || t.AssignedBy == pc.ID
}

// CanReadAnnouncement: admins see everything. Others see announcements
// that are unexpired and either unrestricted or addressed to them.
func CanReadAnnouncement(pc PrincipalContext, a domain.Announcement, now time.Time) bool {
	if pc.IsAdmin() {
		return true
	}
	if a.ExpiresAt != nil {
		exp, err := time.Parse(time.RFC3339, *a.ExpiresAt)
		if err != nil || !exp.After(now) {
			return false
		}
	}
	return len(a.VisibleTo) == 0 || a.VisibleToContains(pc.ID)
}

// CanAccessMessage: only sender, recipient or an admin may read or
// delete a message.
func CanAccessMessage(pc PrincipalContext, m domain.Message) bool {
	if pc.IsAdmin() {
		return true
	}
	return m.SenderID == pc.ID || m.RecipientID == pc.ID
}

// CanDeleteUser: admin only, and never the requesting principal itself.
// The self-delete guard holds regardless of role.
func CanDeleteUser(pc PrincipalContext, targetID string) bool {
	return pc.IsAdmin() && pc.ID != targetID
}
