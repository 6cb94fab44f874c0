package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractText joins the readable text of message content parts.
// String parts are taken verbatim and object parts contribute
// their "text" field; any other shape (images, audio pointers,
// numbers) contributes nothing. Contributions are joined with a
// newline.
func ExtractText(parts []gjson.Result) string {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.Type == gjson.String:
			texts = append(texts, part.Str)
		case part.IsObject():
			if text := part.Get("text"); text.Exists() {
				texts = append(texts, text.String())
			}
		}
	}
	return strings.Join(texts, "\n")
}

// extractMessage converts a node payload into a Message. The
// second return is false when the payload has no readable text.
func extractMessage(msg *NodeMessage) (Message, bool) {
	if msg == nil {
		return Message{}, false
	}
	text := ExtractText(msg.Parts)
	if strings.TrimSpace(text) == "" {
		return Message{}, false
	}
	role := RoleType(msg.Role)
	if role == "" {
		role = RoleUnknown
	}
	return Message{
		ID:         msg.ID,
		Role:       role,
		Content:    text,
		CreateTime: msg.CreateTime,
		Model:      msg.ModelSlug,
	}, true
}
