// Package parser turns the raw export archive into linearized
// Conversation/Message values ready for internal/ingest, following the
// node-graph shape described in spec.md §2 ("Export").
package parser

import "encoding/json"

// rawConversation mirrors one element of the export's conversations.json
// array. Field names follow the export's own JSON, not Go convention,
// since this struct exists only to decode that one format.
type rawConversation struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	CreateTime       float64            `json:"create_time"`
	UpdateTime       float64            `json:"update_time"`
	CurrentNode      string             `json:"current_node"`
	Mapping          map[string]rawNode `json:"mapping"`
	DefaultModelSlug string             `json:"default_model_slug"`
	GizmoID          string             `json:"gizmo_id"`
}

type rawNode struct {
	ID       string      `json:"id"`
	Parent   string      `json:"parent"`
	Children []string    `json:"children"`
	Message  *rawMessage `json:"message"`
}

type rawMessage struct {
	ID         string         `json:"id"`
	Author     rawAuthor      `json:"author"`
	CreateTime float64        `json:"create_time"`
	Content    rawContent     `json:"content"`
	Metadata   map[string]any `json:"metadata"`
}

type rawAuthor struct {
	Role string `json:"role"`
}

type rawContent struct {
	ContentType string `json:"content_type"`
	Parts       []any  `json:"parts"`
	Text        string `json:"text"`
	Result      string `json:"result"`
	Language    string `json:"language"`
}

// decodeConversations parses the export's top-level conversations.json
// array, returning each conversation alongside its generic
// map[string]any decoding so ComputeRawHash can be taken over the full
// record, unknown fields included, rather than over the typed struct.
func decodeConversations(data []byte) ([]rawConversation, []map[string]any, error) {
	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, err
	}

	convs := make([]rawConversation, 0, len(raws))
	for _, raw := range raws {
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, nil, err
		}
		var c rawConversation
		if err := json.Unmarshal(buf, &c); err != nil {
			return nil, nil, err
		}
		convs = append(convs, c)
	}
	return convs, raws, nil
}
