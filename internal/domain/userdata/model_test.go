package userdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		attribute Attribute
		expected  string
	}{
		{
			name:      "sessions",
			userID:    "user-1",
			attribute: AttrSessions,
			expected:  "users/user-1/my_sessions",
		},
		{
			name:      "feedback",
			userID:    "user-1",
			attribute: AttrFeedback,
			expected:  "users/user-1/feedback",
		},
		{
			name:      "viewed videos",
			userID:    "abc",
			attribute: AttrViewedVideos,
			expected:  "users/abc/viewed_videos",
		},
		{
			name:      "notification ids",
			userID:    "abc",
			attribute: AttrNotificationIDs,
			expected:  "users/abc/gcm_ids",
		},
		{
			name:      "last activity",
			userID:    "abc",
			attribute: AttrLastActivity,
			expected:  "users/abc/last_activity_timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Path(tt.userID, tt.attribute))
		})
	}
}
