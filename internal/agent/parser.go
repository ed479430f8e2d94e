// Package agent turns assistant replies into file operations. A reply carries
// zero or more directives of the form
//
//	ACTION: createFile
//	PARAMS: {"path": "/js/app.js", "content": "..."}
//	REASONING: why the change is needed
//
// which Parse extracts into a Plan and an Executor applies to a workspace.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	actionMarker    = "ACTION:"
	paramsMarker    = "PARAMS:"
	reasoningMarker = "REASONING:"
	fence           = "```"

	// NoReasoning stands in for a missing REASONING section.
	NoReasoning = "No reasoning provided."
)

var (
	ErrMissingName   = errors.New("invalid action format: missing action name")
	ErrMissingParams = errors.New("invalid action format: missing parameters")
	ErrInvalidParams = errors.New("invalid action format: parameters are not valid JSON")
)

// ParseError reports the first malformed directive in a reply.
type ParseError struct {
	Index  int    // position of the directive in the reply, from 0
	Action string // action name, when one was read
	Err    error
}

func (e *ParseError) Error() string { return e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// LineNumber accepts both 12 and "12" so models that quote numbers still parse.
type LineNumber int

// UnmarshalJSON implements json.Unmarshaler.
func (n *LineNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid line number %s", string(b))
	}
	*n = LineNumber(v)
	return nil
}

// Params is the union of every action's parameters. A file may be named by
// ID or by path.
type Params struct {
	Path            string     `json:"path,omitempty"`
	Content         *string    `json:"content,omitempty"`
	FileID          string     `json:"fileId,omitempty"`
	SourceID        string     `json:"sourceId,omitempty"`
	SourcePath      string     `json:"sourcePath,omitempty"`
	DestinationPath string     `json:"destinationPath,omitempty"`
	StartLine       LineNumber `json:"startLine,omitempty"`
	EndLine         LineNumber `json:"endLine,omitempty"`
}

// Action is one parsed directive.
type Action struct {
	Name      string
	Params    Params
	RawParams json.RawMessage
	Reasoning string
}

// Plan is a parsed reply: the prose before the first directive plus the directives.
type Plan struct {
	Preamble string
	Actions  []Action
}

// HasActions reports whether text contains at least one directive marker.
func HasActions(text string) bool {
	return strings.Contains(text, actionMarker)
}

// Parse extracts every directive from reply. On a malformed directive it
// returns the plan parsed so far together with a *ParseError, so the earlier
// actions can still be carried out.
func Parse(reply string) (*Plan, error) {
	start := strings.Index(reply, actionMarker)
	if start < 0 {
		return &Plan{Preamble: strings.TrimSpace(reply)}, nil
	}
	plan := &Plan{Preamble: strings.TrimSpace(reply[:start])}

	rest := reply[start:]
	for i := 0; strings.HasPrefix(rest, actionMarker); i++ {
		action, next, err := parseAction(rest[len(actionMarker):])
		if err != nil {
			return plan, &ParseError{Index: i, Action: action.Name, Err: err}
		}
		plan.Actions = append(plan.Actions, action)
		rest = next
	}
	return plan, nil
}

// parseAction reads one directive from s, which starts right after "ACTION:".
// It returns the text from the next "ACTION:" onward.
func parseAction(s string) (Action, string, error) {
	var a Action
	s = strings.TrimLeft(s, " \t")
	end := strings.IndexFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !unicode.IsLetter(r)
	})
	if end < 0 {
		end = len(s)
	}
	a.Name = s[:end]
	if a.Name == "" {
		return a, "", ErrMissingName
	}
	s = s[end:]

	p := strings.Index(s, paramsMarker)
	if n := strings.Index(s, actionMarker); p < 0 || (n >= 0 && n < p) {
		return a, "", ErrMissingParams
	}
	body := stripOpeningFence(s[p+len(paramsMarker):])

	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&a.RawParams); err != nil {
		return a, "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := json.Unmarshal(a.RawParams, &a.Params); err != nil {
		return a, "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	tail := strings.TrimLeft(body[dec.InputOffset():], " \t\r\n")
	tail = strings.TrimPrefix(tail, fence)

	next := len(tail)
	if n := strings.Index(tail, actionMarker); n >= 0 {
		next = n
	}
	a.Reasoning = NoReasoning
	if r := strings.Index(tail[:next], reasoningMarker); r >= 0 {
		if text := strings.TrimSpace(tail[r+len(reasoningMarker) : next]); text != "" {
			a.Reasoning = text
		}
	}
	return a, tail[next:], nil
}

// stripOpeningFence drops leading blanks and a ``` or ```json fence.
func stripOpeningFence(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, fence) {
		return s
	}
	return strings.TrimLeftFunc(s[len(fence):], unicode.IsLetter)
}
