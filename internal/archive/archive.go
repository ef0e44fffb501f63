// Package archive loads chat-export archives: a JSON array of conversations,
// or a .zip export containing conversations.json.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
)

// ErrLoad wraps every failure to read or parse an archive.
var ErrLoad = errors.New("load archive")

// ConversationsFile is the member name looked up inside .zip exports.
const ConversationsFile = "conversations.json"

// Conversation is one exported conversation. A conversation whose JSON is
// partly malformed keeps every field that could be read; Err records the
// first problem and the unreadable fragments are left out.
type Conversation struct {
	ID         string
	Title      string
	CreateTime float64
	UpdateTime float64
	Mapping    Mapping
	Err        error
}

// UnmarshalJSON decodes a conversation field by field, accepting either id or
// conversation_id. Only a value that is not a JSON object is an error; a bad
// field is recorded in Err.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("conversation is null")
	}
	*c = Conversation{}
	note := func(field string, err error) {
		if err != nil && c.Err == nil {
			c.Err = fmt.Errorf("%s: %w", field, err)
		}
	}
	var id, convID string
	note("id", decodeOptional(fields["id"], &id))
	note("conversation_id", decodeOptional(fields["conversation_id"], &convID))
	c.ID = id
	if c.ID == "" {
		c.ID = convID
	}
	note("title", decodeOptional(fields["title"], &c.Title))
	var err error
	c.CreateTime, err = decodeTimestamp(fields["create_time"])
	note("create_time", err)
	c.UpdateTime, err = decodeTimestamp(fields["update_time"])
	note("update_time", err)
	if raw, ok := fields["mapping"]; ok {
		c.Mapping, err = decodeMapping(raw)
		note("mapping", err)
	}
	return nil
}

// decodeOptional decodes raw into v unless it is absent or null.
func decodeOptional(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// decodeTimestamp reads epoch seconds given as a number or a numeric string.
func decodeTimestamp(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, nil
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return secs, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("timestamp %s: not a number", raw)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return secs, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Time returns create_time, falling back to update_time.
func (c *Conversation) Time() time.Time {
	secs := c.CreateTime
	if secs == 0 {
		secs = c.UpdateTime
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
}

// Messages returns the role-tagged text of every node that carries a message,
// in mapping order.
func (c *Conversation) Messages() []models.Message {
	var out []models.Message
	for _, n := range c.Mapping {
		if n.Message == nil {
			continue
		}
		text := n.Message.Content.Text()
		if text == "" {
			continue
		}
		out = append(out, models.Message{Role: n.Message.Author.Role, Content: text})
	}
	return out
}

// Text concatenates all text parts across all nodes in mapping order.
func (c *Conversation) Text() string {
	var b strings.Builder
	for _, n := range c.Mapping {
		if n.Message == nil {
			continue
		}
		for _, p := range n.Message.Content.Strings() {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(p)
		}
	}
	return b.String()
}

// Load reads the archive at p. Files ending in .zip are opened as exports and
// their conversations.json is parsed; anything else is parsed as JSON.
func Load(p string) ([]Conversation, error) {
	if strings.EqualFold(filepath.Ext(p), ".zip") {
		return loadZip(p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()
	return Parse(f)
}

func loadZip(p string) ([]Conversation, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %w", ErrLoad, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if path.Base(f.Name) != ConversationsFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrLoad, f.Name, err)
		}
		defer rc.Close()
		return Parse(rc)
	}
	return nil, fmt.Errorf("%w: %s not found in %s", ErrLoad, ConversationsFile, p)
}

// Parse decodes a JSON array of conversations. Only an unreadable stream or
// a top level that is not an array fails; each element is decoded on its own
// and a malformed one is kept, with Err set, so callers can record it.
// Conversations without an id get a positional one so they can still be
// tracked across runs.
func Parse(r io.Reader) ([]Conversation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrLoad, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrLoad, err)
	}
	convs := make([]Conversation, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &convs[i]); err != nil {
			convs[i] = Conversation{Err: fmt.Errorf("conversation %d: %w", i, err)}
		}
		if convs[i].ID == "" {
			convs[i].ID = fmt.Sprintf("conversation-%d", i)
		}
	}
	return convs, nil
}

// Malformed returns the conversations that could only be read in part.
func Malformed(convs []Conversation) []*Conversation {
	var out []*Conversation
	for i := range convs {
		if convs[i].Err != nil {
			out = append(out, &convs[i])
		}
	}
	return out
}
