package userdata

import "path"

// Attribute - имя коллекции пользовательских данных в бэкенде.
// Каждая коллекция живет под users/{userID}/{attribute}.
type Attribute string

const (
	// AttrSessions - закладки сессий конференции
	AttrSessions Attribute = "my_sessions"
	// AttrFeedback - отправленные отзывы по сессиям
	AttrFeedback Attribute = "feedback"
	// AttrViewedVideos - просмотренные видео
	AttrViewedVideos Attribute = "viewed_videos"
	// AttrNotificationIDs - идентификаторы push-уведомлений
	AttrNotificationIDs Attribute = "gcm_ids"
	// AttrLastActivity - отметка последней активности клиента
	AttrLastActivity Attribute = "last_activity_timestamp"
)

// ServerTimeOffsetPath - зарезервированный путь бэкенда со смещением
// серверных часов относительно локальных (в миллисекундах).
const ServerTimeOffsetPath = ".info/serverTimeOffset"

// Path возвращает путь коллекции attribute пользователя userID.
func Path(userID string, attribute Attribute) string {
	return path.Join("users", userID, string(attribute))
}

// BookmarkedSession - запись в коллекции закладок.
type BookmarkedSession struct {
	Timestamp  int64 `json:"timestamp"`
	Bookmarked bool  `json:"bookmarked"`
}

// FeedbackEntry - запись в коллекции отзывов.
type FeedbackEntry struct {
	Timestamp int64 `json:"timestamp"`
}

// PendingAction - действие, записанное локально без соединения с бэкендом.
// LocalTimestamp - локальное время фиксации действия; при повторной отправке
// оно преобразуется в серверное через смещение часов.
type PendingAction struct {
	ID             int64     `json:"id"`
	Attribute      Attribute `json:"attribute"`
	Key            string    `json:"key"`
	Payload        []byte    `json:"payload"`
	LocalTimestamp int64     `json:"local_timestamp"`
}
