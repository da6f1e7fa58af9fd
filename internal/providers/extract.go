package providers

// Extraction of primary text from decoded completion payloads. The rules are
// deliberately forgiving about upstream shape drift: anything that is not a
// string where text is expected collapses to "" rather than an error.

// extractCompletion interprets a decoded non-streaming completion payload.
//
// Preference order for the primary text:
//  1. choices[0].message (chat-completions shape)
//  2. the last messages[] entry with role "assistant"
//  3. the flat "text" field
func extractCompletion(payload map[string]any) *Result {
	res := &Result{}

	if rawMsgs, ok := payload["messages"].([]any); ok {
		res.RawMessages = rawMsgs
	}

	if msg := choiceMessage(payload); msg != nil {
		res.Text = contentText(msg["content"])
		res.Reasoning = reasoningText(msg)

		return res
	}

	if msg := lastAssistantMessage(res.RawMessages); msg != nil {
		res.Text = contentText(msg["content"])
		res.Reasoning = reasoningText(msg)

		return res
	}

	res.Text = asString(payload["text"])

	return res
}

func choiceMessage(payload map[string]any) map[string]any {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}

	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}

	msg, ok := first["message"].(map[string]any)
	if !ok {
		return nil
	}

	return msg
}

func lastAssistantMessage(messages []any) map[string]any {
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(map[string]any)
		if !ok {
			continue
		}

		if role, _ := msg["role"].(string); role == RoleAssistant {
			return msg
		}
	}

	return nil
}

// contentText flattens a message content slot: a plain string passes through,
// a block list joins its text-typed blocks in order, anything else is "".
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var text string

		for _, block := range v {
			blockMap, ok := block.(map[string]any)
			if !ok {
				continue
			}

			if blockType, _ := blockMap["type"].(string); blockType == ContentTypeText {
				text += asString(blockMap["text"])
			}
		}

		return text
	default:
		return ""
	}
}

func reasoningText(msg map[string]any) string {
	if r := asString(msg["reasoning"]); r != "" {
		return r
	}

	return asString(msg["reasoning_content"])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
