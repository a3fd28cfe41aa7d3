// Package extract pulls fenced structured blocks out of raw completion
// text. It is the single choke point between untyped model output and the
// typed envelopes the conversation stages consume: nothing downstream
// trusts a completion response that did not pass through here.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Error reports an absent, ambiguous or malformed structured block.
// Recoverable: callers fall back to stage-specific defaults and never
// surface it raw to the user.
type Error struct {
	Want   string // expected fence tag or envelope name
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %s: %v", e.Want, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract: %s: %s", e.Want, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Envelope is a typed wire object with a self-check for required fields.
// Unknown extra fields are ignored; missing required fields must be
// reported by Validate.
type Envelope interface {
	Validate() error
}

var fenceRE = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[ \t]*\n?(.*?)```")

type block struct {
	tag  string
	body string
}

func fences(raw string) []block {
	matches := fenceRE.FindAllStringSubmatch(raw, -1)
	out := make([]block, 0, len(matches))
	for _, m := range matches {
		out = append(out, block{
			tag:  strings.ToLower(strings.TrimSpace(m[1])),
			body: strings.TrimSpace(m[2]),
		})
	}
	return out
}

// taggedBlock returns the body of exactly one fenced block carrying the
// given tag. Zero or more than one block of that tag is ambiguous and
// fails; fences of other tags are ignored.
func taggedBlock(raw, tag string) (string, error) {
	var found []string
	for _, b := range fences(raw) {
		if b.tag == tag {
			found = append(found, b.body)
		}
	}
	switch len(found) {
	case 0:
		return "", &Error{Want: tag, Reason: "no fenced block"}
	case 1:
		if found[0] == "" {
			return "", &Error{Want: tag, Reason: "fenced block is empty"}
		}
		return found[0], nil
	default:
		return "", &Error{Want: tag, Reason: fmt.Sprintf("%d fenced blocks, expected one", len(found))}
	}
}

// JSONBlock returns the raw bytes of the single ```json fence in raw.
func JSONBlock(raw string) (json.RawMessage, error) {
	body, err := taggedBlock(raw, "json")
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(body)) {
		return nil, &Error{Want: "json", Reason: "fenced block is not valid JSON"}
	}
	return json.RawMessage(body), nil
}

// YAMLBlock returns the text of the single ```yaml fence in raw. Parsing
// is left to the artifact validator.
func YAMLBlock(raw string) (string, error) {
	return taggedBlock(raw, "yaml")
}

// PlainText strips every fenced block and returns the trimmed remaining
// prose. It never fails; empty prose comes back as "".
func PlainText(raw string) string {
	return strings.TrimSpace(fenceRE.ReplaceAllString(raw, ""))
}

// TypeTag peeks at the "type" discriminator of the single JSON fence
// without committing to a concrete envelope.
func TypeTag(raw string) (string, error) {
	blob, err := JSONBlock(raw)
	if err != nil {
		return "", err
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(blob, &head); err != nil {
		return "", &Error{Want: "json", Reason: "decode type tag", Err: err}
	}
	return head.Type, nil
}

// DecodeJSON extracts the single JSON fence from raw, decodes it into v
// and runs the envelope's required-field check. Any failure is an *Error;
// the caller decides the fallback.
func DecodeJSON(raw string, v Envelope) error {
	blob, err := JSONBlock(raw)
	if err != nil {
		return err
	}
	return DecodeRaw(blob, v)
}

// DecodeRaw decodes already-extracted JSON bytes into an envelope.
func DecodeRaw(blob json.RawMessage, v Envelope) error {
	name := fmt.Sprintf("%T", v)
	if err := json.Unmarshal(blob, v); err != nil {
		return &Error{Want: name, Reason: "decode", Err: err}
	}
	if err := v.Validate(); err != nil {
		return &Error{Want: name, Reason: "required fields", Err: err}
	}
	return nil
}
