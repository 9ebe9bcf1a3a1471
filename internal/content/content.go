// Package content implements the block-structured note content model:
// validation, serialization to and from the stored string form, and plain-text
// extraction for search. A note body is an ordered sequence of typed blocks;
// the set of block types is closed and each type carries its own data shape.
package content

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/blocknote-app/blocknote/internal/errs"
)

// EditorVersion is the content format version stamped on constructed content.
const EditorVersion = "2.31.0"

// ErrFormat is returned when a stored content string cannot be deserialized.
// Callers should treat it as a data-integrity fault, not caller error.
var ErrFormat = errors.New("invalid block content format")

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockHeader    BlockType = "header"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockQuote     BlockType = "quote"
	BlockDelimiter BlockType = "delimiter"
)

// ListStyle is the rendering style of a list block.
type ListStyle string

const (
	ListOrdered   ListStyle = "ordered"
	ListUnordered ListStyle = "unordered"
)

// QuoteAlignment is the alignment of a quote block.
type QuoteAlignment string

const (
	AlignLeft   QuoteAlignment = "left"
	AlignCenter QuoteAlignment = "center"
)

// BlockData is the closed set of per-type block payloads. Exactly the five
// data types below implement it; the block's Type field determines which
// shape is valid.
type BlockData interface {
	blockType() BlockType
}

// HeaderData is the payload of a header block.
type HeaderData struct {
	Text  string `json:"text"`
	Level int    `json:"level"` // 1-6
}

// ParagraphData is the payload of a paragraph block.
type ParagraphData struct {
	Text string `json:"text"`
}

// ListData is the payload of a list block.
type ListData struct {
	Style ListStyle `json:"style"`
	Items []string  `json:"items"`
}

// QuoteData is the payload of a quote block.
type QuoteData struct {
	Text      string         `json:"text"`
	Caption   string         `json:"caption,omitempty"`
	Alignment QuoteAlignment `json:"alignment,omitempty"`
}

// DelimiterData is the payload of a delimiter block. It carries no data.
type DelimiterData struct{}

func (HeaderData) blockType() BlockType    { return BlockHeader }
func (ParagraphData) blockType() BlockType { return BlockParagraph }
func (ListData) blockType() BlockType      { return BlockList }
func (QuoteData) blockType() BlockType     { return BlockQuote }
func (DelimiterData) blockType() BlockType { return BlockDelimiter }

// Block is a single typed content block.
type Block struct {
	ID   string
	Type BlockType
	Data BlockData
}

// Content is a versioned, timestamped ordered sequence of blocks.
type Content struct {
	Time    int64   `json:"time"`
	Blocks  []Block `json:"blocks"`
	Version string  `json:"version"`
}

// blockEnvelope is the wire shape of a block.
type blockEnvelope struct {
	ID   string          `json:"id"`
	Type BlockType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON writes the block in its wire shape {id, type, data}.
func (b Block) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(b.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockEnvelope{ID: b.ID, Type: b.Type, Data: data})
}

// UnmarshalJSON decodes the envelope and dispatches on the declared type.
// A type whose data does not match its declared shape is an error.
func (b *Block) UnmarshalJSON(raw []byte) error {
	var env blockEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.ID == "" {
		return errors.New("block id is required")
	}

	data, err := decodeBlockData(env.Type, env.Data)
	if err != nil {
		return err
	}

	b.ID = env.ID
	b.Type = env.Type
	b.Data = data
	return nil
}

func decodeBlockData(typ BlockType, raw json.RawMessage) (BlockData, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch typ {
	case BlockHeader:
		var aux struct {
			Text  *string `json:"text"`
			Level *int    `json:"level"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, fmt.Errorf("header data: %w", err)
		}
		if aux.Text == nil {
			return nil, errors.New("header block requires text")
		}
		if aux.Level == nil {
			return nil, errors.New("header block requires level")
		}
		if *aux.Level < 1 || *aux.Level > 6 {
			return nil, fmt.Errorf("header level must be 1-6, got %d", *aux.Level)
		}
		return HeaderData{Text: *aux.Text, Level: *aux.Level}, nil

	case BlockParagraph:
		var aux struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, fmt.Errorf("paragraph data: %w", err)
		}
		if aux.Text == nil {
			return nil, errors.New("paragraph block requires text")
		}
		return ParagraphData{Text: *aux.Text}, nil

	case BlockList:
		var aux struct {
			Style *ListStyle `json:"style"`
			Items []string   `json:"items"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, fmt.Errorf("list data: %w", err)
		}
		if aux.Style == nil {
			return nil, errors.New("list block requires style")
		}
		if *aux.Style != ListOrdered && *aux.Style != ListUnordered {
			return nil, fmt.Errorf("list style must be %q or %q, got %q", ListOrdered, ListUnordered, *aux.Style)
		}
		if aux.Items == nil {
			return nil, errors.New("list block requires items")
		}
		return ListData{Style: *aux.Style, Items: aux.Items}, nil

	case BlockQuote:
		var aux struct {
			Text      *string        `json:"text"`
			Caption   string         `json:"caption"`
			Alignment QuoteAlignment `json:"alignment"`
		}
		if err := json.Unmarshal(raw, &aux); err != nil {
			return nil, fmt.Errorf("quote data: %w", err)
		}
		if aux.Text == nil {
			return nil, errors.New("quote block requires text")
		}
		if aux.Alignment != "" && aux.Alignment != AlignLeft && aux.Alignment != AlignCenter {
			return nil, fmt.Errorf("quote alignment must be %q or %q, got %q", AlignLeft, AlignCenter, aux.Alignment)
		}
		return QuoteData{Text: *aux.Text, Caption: aux.Caption, Alignment: aux.Alignment}, nil

	case BlockDelimiter:
		// Delimiter data must at least be an object; extra keys are ignored.
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("delimiter data: %w", err)
		}
		return DelimiterData{}, nil

	default:
		return nil, fmt.Errorf("unknown block type %q", typ)
	}
}

// Validate decodes raw caller-supplied JSON into Content, rejecting anything
// that does not match the block content shape exactly. Errors are coded
// invalid_argument with field-level details.
func Validate(raw json.RawMessage) (Content, error) {
	var env struct {
		Time    *json.Number      `json:"time"`
		Blocks  []json.RawMessage `json:"blocks"`
		Version *string           `json:"version"`
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Content{}, errs.Invalid("content must be a JSON object",
			errs.FieldError{Field: "content", Message: err.Error()})
	}

	var fields []errs.FieldError
	if env.Time == nil {
		fields = append(fields, errs.FieldError{Field: "content.time", Message: "required"})
	}
	if env.Version == nil {
		fields = append(fields, errs.FieldError{Field: "content.version", Message: "required"})
	}
	if env.Blocks == nil {
		fields = append(fields, errs.FieldError{Field: "content.blocks", Message: "required"})
	}
	if len(fields) > 0 {
		return Content{}, errs.Invalid("content is missing required fields", fields...)
	}

	timestamp, err := timeFromNumber(*env.Time)
	if err != nil {
		return Content{}, errs.Invalid("content.time must be a number",
			errs.FieldError{Field: "content.time", Message: err.Error()})
	}

	blocks := make([]Block, 0, len(env.Blocks))
	for i, rawBlock := range env.Blocks {
		var block Block
		if err := json.Unmarshal(rawBlock, &block); err != nil {
			return Content{}, errs.Invalid("content has an invalid block",
				errs.FieldError{Field: fmt.Sprintf("content.blocks[%d]", i), Message: err.Error()})
		}
		blocks = append(blocks, block)
	}

	return Content{Time: timestamp, Blocks: blocks, Version: *env.Version}, nil
}

func timeFromNumber(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	// Editor clients send epoch milliseconds which may arrive as a float.
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// Serialize converts content to its stored string form. Block order and all
// fields are preserved; Deserialize(Serialize(c)) == c.
func Serialize(c Content) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("serialize content: %w", err)
	}
	return string(raw), nil
}

// Deserialize parses a stored content string. Malformed input returns a
// descriptive error wrapping ErrFormat, never a silent empty result.
func Deserialize(text string) (Content, error) {
	c, err := Validate(json.RawMessage(text))
	if err != nil {
		return Content{}, fmt.Errorf("%w: %s", ErrFormat, err.Error())
	}
	return c, nil
}

var textPolicy = bluemonday.StrictPolicy()

// ExtractText concatenates the searchable text of each block in order and
// strips embedded markup tags. The result is used only for search matching,
// never persisted.
func ExtractText(c Content) string {
	var parts []string
	for _, block := range c.Blocks {
		switch data := block.Data.(type) {
		case HeaderData:
			parts = append(parts, data.Text)
		case ParagraphData:
			parts = append(parts, data.Text)
		case ListData:
			parts = append(parts, data.Items...)
		case QuoteData:
			parts = append(parts, data.Text)
			if data.Caption != "" {
				parts = append(parts, data.Caption)
			}
		case DelimiterData:
			// no text
		}
	}
	joined := strings.Join(parts, " ")
	stripped := html.UnescapeString(textPolicy.Sanitize(joined))
	return strings.TrimSpace(stripped)
}

// NewEmpty returns content with no blocks, stamped now.
func NewEmpty() Content {
	return Content{
		Time:    time.Now().UnixMilli(),
		Blocks:  []Block{},
		Version: EditorVersion,
	}
}

// NewSimple returns content holding a single paragraph block.
func NewSimple(text string) Content {
	return Content{
		Time: time.Now().UnixMilli(),
		Blocks: []Block{
			{
				ID:   NewBlockID(),
				Type: BlockParagraph,
				Data: ParagraphData{Text: text},
			},
		},
		Version: EditorVersion,
	}
}

const blockIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewBlockID returns a 10-character alphanumeric block identifier.
func NewBlockID() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "block00000"
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = blockIDChars[int(b)%len(blockIDChars)]
	}
	return string(out)
}
