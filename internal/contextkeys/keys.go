package contextkeys

import "context"

type messageTypeKey struct{}
type userKey struct{}
type callbackDataKey struct{}
type shareLinkKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeCommand     MessageType = "command"
	MessageTypeShareLink   MessageType = "shareLink"
	MessageTypeClickButton MessageType = "clickButton"
	MessageTypeUnknown     MessageType = "unknown"
)

// User identifies who sent the update and where replies go.
type User struct {
	ID       int64
	ChatID   int64
	Username string
}

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func GetUser(ctx context.Context) (User, bool) {
	v, ok := ctx.Value(userKey{}).(User)
	return v, ok
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackDataKey{}).(string)
	return v, ok
}

func WithShareLink(ctx context.Context, link string) context.Context {
	return context.WithValue(ctx, shareLinkKey{}, link)
}

func GetShareLink(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(shareLinkKey{}).(string)
	return v, ok && v != ""
}
