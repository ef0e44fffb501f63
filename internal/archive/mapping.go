package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Node is one entry of a conversation mapping.
type Node struct {
	ID      string   `json:"id"`
	Message *Message `json:"message"`
	Parent  string   `json:"parent"`
}

// Message is the payload of a node.
type Message struct {
	Author  Author  `json:"author"`
	Content Content `json:"content"`
}

// Author identifies who wrote a message.
type Author struct {
	Role string `json:"role"`
}

// Content holds message parts. Parts may be strings or objects (attachments);
// only string parts carry text.
type Content struct {
	ContentType string            `json:"content_type"`
	Parts       []json.RawMessage `json:"parts"`
}

// Strings returns the non-empty string parts.
func (c Content) Strings() []string {
	var out []string
	for _, p := range c.Parts {
		var s string
		if err := json.Unmarshal(p, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Text joins the string parts with newlines.
func (c Content) Text() string {
	return strings.Join(c.Strings(), "\n")
}

// Mapping is the node table of a conversation, kept in the order the keys
// appear in the JSON object.
type Mapping []Node

// UnmarshalJSON decodes the mapping object while preserving key order. It
// fails on the first node that cannot be decoded.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	nodes, err := decodeMapping(data)
	if err != nil {
		return err
	}
	*m = nodes
	return nil
}

// decodeMapping reads a mapping object in key order. A node that cannot be
// decoded is kept as a bare node with no message and reported in the error,
// alongside the nodes that decoded. A mapping that is not an object yields no
// nodes.
func decodeMapping(data []byte) (Mapping, error) {
	if isNull(data) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var (
		nodes   Mapping
		nodeErr error
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			if nodeErr == nil {
				nodeErr = fmt.Errorf("mapping node %s: %w", key, err)
			}
			n = Node{}
		}
		if n.ID == "" {
			n.ID = key
		}
		nodes = append(nodes, n)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return nodes, nodeErr
}
