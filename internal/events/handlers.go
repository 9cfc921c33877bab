package events

import (
	"fmt"
	"time"

	"loopchat-backend/internal/chat/domain"
	"loopchat-backend/internal/notification"
)

// Per-kind delivery hints. An unanswered call notification past the ring
// window is worse than none, so calls get a short TTL.
const (
	callTTL    = 30 * time.Second
	messageTTL = 24 * time.Hour
	storyTTL   = 24 * time.Hour
	backupTTL  = 24 * time.Hour
)

// MessageEffects decides what a new message triggers: unread increments and a
// notification for every room member except the sender and anyone who muted
// the room. Muted members still get the unread increment.
func MessageEffects(msg *domain.Message, senderName string, memberIDs, mutedIDs []string) []Effect {
	if msg == nil || msg.ID == "" || msg.RoomID == "" || msg.SenderID == "" {
		return []Effect{LogWarning{Reason: "message record missing required fields"}}
	}

	muted := make(map[string]bool, len(mutedIDs))
	for _, id := range mutedIDs {
		muted[id] = true
	}

	recipients := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != msg.SenderID && !muted[id] {
			recipients = append(recipients, id)
		}
	}

	preview := msg.Content
	if preview == "" && msg.MediaURL != "" {
		preview = "Sent an attachment"
	}

	title := senderName
	if title == "" {
		title = "New message"
	}

	effects := []Effect{
		IncrementUnread{
			RoomID:   msg.RoomID,
			SenderID: msg.SenderID,
			Preview:  preview,
			At:       msg.CreatedAt,
		},
	}
	if len(recipients) == 0 {
		return effects
	}

	return append(effects, SendNotification{Notice: notification.Notice{
		Type:       notification.TypeNewMessage,
		Category:   domain.CategoryMessages,
		Recipients: recipients,
		Title:      title,
		Body:       preview,
		Data: map[string]string{
			"roomId":     msg.RoomID,
			"messageId":  msg.ID,
			"senderId":   msg.SenderID,
			"senderName": senderName,
		},
		HighPriority: true,
		TTL:          messageTTL,
		Channel:      "messages",
	}})
}

// CallEffects pages the callee for a newly created call, but only while it is
// still ringing: a call that already connected or ended must not page anyone.
func CallEffects(call *domain.Call, callerName string) []Effect {
	if call == nil || call.ID == "" || call.CalleeID == "" {
		return []Effect{LogWarning{Reason: "call record missing required fields"}}
	}
	if call.Status != domain.CallStatusRinging {
		return []Effect{NoOp{}}
	}

	title := "Incoming call"
	if callerName != "" {
		title = fmt.Sprintf("%s is calling", callerName)
	}
	body := "Voice call"
	if call.Video {
		body = "Video call"
	}

	return []Effect{SendNotification{Notice: notification.Notice{
		Type:       notification.TypeIncomingCall,
		Category:   domain.CategoryCalls,
		Recipients: []string{call.CalleeID},
		Title:      title,
		Body:       body,
		Data: map[string]string{
			"callId":     call.ID,
			"callerId":   call.CallerID,
			"callerName": callerName,
			"video":      fmt.Sprintf("%t", call.Video),
		},
		HighPriority: true,
		TTL:          callTTL,
		Channel:      "calls",
	}}}
}

// StoryEffects notifies the poster's followers about new ephemeral content.
func StoryEffects(story *domain.Story, ownerName string, followerIDs []string) []Effect {
	if story == nil || story.ID == "" || story.OwnerID == "" {
		return []Effect{LogWarning{Reason: "story record missing required fields"}}
	}
	if len(followerIDs) == 0 {
		return []Effect{NoOp{}}
	}

	title := "New story"
	if ownerName != "" {
		title = fmt.Sprintf("%s posted a story", ownerName)
	}
	body := story.Caption
	if body == "" {
		body = "Tap to view"
	}

	return []Effect{SendNotification{Notice: notification.Notice{
		Type:       notification.TypeNewStory,
		Category:   domain.CategoryStories,
		Recipients: followerIDs,
		Title:      title,
		Body:       body,
		Data: map[string]string{
			"storyId": story.ID,
			"ownerId": story.OwnerID,
		},
		TTL:     storyTTL,
		Channel: "stories",
	}}}
}

// BackupEffects notifies the job owner exactly once, on the transition into
// completed. A rewrite that keeps status at completed must not re-notify.
func BackupEffects(before, after *domain.BackupJob) []Effect {
	if after == nil || after.ID == "" || after.UserID == "" {
		return []Effect{LogWarning{Reason: "backup record missing required fields"}}
	}
	if after.Status != domain.BackupStatusCompleted {
		return []Effect{NoOp{}}
	}
	if before != nil && before.Status == domain.BackupStatusCompleted {
		return []Effect{NoOp{}}
	}

	body := "Your backup is ready"
	if after.SizeBytes > 0 {
		body = fmt.Sprintf("Your backup (%d MB) is ready", after.SizeBytes/(1024*1024))
	}

	return []Effect{SendNotification{Notice: notification.Notice{
		Type:       notification.TypeBackupCompleted,
		Category:   domain.CategoryBackups,
		Recipients: []string{after.UserID},
		Title:      "Backup completed",
		Body:       body,
		Data: map[string]string{
			"backupId": after.ID,
		},
		TTL:     backupTTL,
		Channel: "backups",
	}}}
}

// IdentityDeletedEffects is the account-deletion safety net: any identity
// record deletion re-runs the idempotent cascade.
func IdentityDeletedEffects(userID string) []Effect {
	if userID == "" {
		return []Effect{LogWarning{Reason: "identity event missing user id"}}
	}
	return []Effect{RunCascade{UserID: userID}}
}
