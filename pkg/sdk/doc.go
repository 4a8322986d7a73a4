// Package sdk is a Go client for the tutor HTTP API.
//
// A Client wraps one base URL and optional credentials:
//
//	c, err := sdk.New("http://localhost:8080", sdk.WithAPIKey("secret"))
//	if err != nil { ... }
//
//	answer, err := c.Chat(ctx, sdk.ChatRequest{
//		Message:       "What is a ROS 2 node?",
//		ChapterNumber: 3,
//		SessionID:     "session-1",
//	})
//
// API errors are returned as *APIError and common cases are matchable
// with errors.Is against the exported sentinels (ErrRateLimited,
// ErrUnsupportedLanguage).
package sdk
