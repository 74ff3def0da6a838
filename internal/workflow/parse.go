package workflow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
)

const (
	malformedPreviewLimit = 500

	malformedResultMessage = "workflow result holds no parseable JSON"
	notArrayMessage        = "workflow result is not an array"
)

var (
	arrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	fencedPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	extractions   = []extraction{
		{name: "direct", extract: func(raw string) (string, bool) { return raw, true }},
		{name: "array", extract: firstMatch(arrayPattern, 0)},
		{name: "fenced", extract: firstMatch(fencedPattern, 1)},
		{name: "object", extract: firstMatch(objectPattern, 0)},
	}
)

type extraction struct {
	name    string
	extract func(raw string) (string, bool)
}

func firstMatch(pattern *regexp.Regexp, group int) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		match := pattern.FindStringSubmatch(raw)
		if len(match) <= group {
			return "", false
		}
		return match[group], true
	}
}

// externalRecord keeps only the fields accepted from the workflow. A nil
// Parents means the field was absent.
type externalRecord struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	MIMEType     string             `json:"mimeType"`
	Parents      *[]string          `json:"parents"`
	CreatedTime  string             `json:"createdTime"`
	ModifiedTime string             `json:"modifiedTime"`
	Size         drivefile.ByteSize `json:"size"`
	WebViewLink  string             `json:"webViewLink"`
	Children     []externalRecord   `json:"children"`
}

// ParseResult recovers a flat record list from the workflow's textual result.
// Extraction strategies run in order (direct, greedy array, fenced block,
// greedy object); the first that yields valid JSON wins.
func ParseResult(raw string) ([]drivefile.Record, error) {
	trimmed := strings.TrimSpace(raw)
	var decoded json.RawMessage
	parsed := false
	for _, candidate := range extractions {
		text, ok := candidate.extract(trimmed)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return nil, &faults.Error{
			Kind:    faults.KindMalformedResponse,
			Message: malformedResultMessage,
			Preview: faults.Truncate(trimmed, malformedPreviewLimit),
		}
	}

	var items []externalRecord
	if err := json.Unmarshal(decoded, &items); err != nil || items == nil {
		return nil, &faults.Error{
			Kind:    faults.KindInvalidShape,
			Message: notArrayMessage,
			Preview: faults.Truncate(string(decoded), malformedPreviewLimit),
			Err:     err,
		}
	}
	return flattenExternal(items), nil
}

// flattenExternal walks the tree depth first. Children without parents are
// assigned their enclosing item before they are visited.
func flattenExternal(items []externalRecord) []drivefile.Record {
	flat := make([]drivefile.Record, 0, len(items))
	stack := make([]externalRecord, 0, len(items))
	for index := len(items) - 1; index >= 0; index-- {
		stack = append(stack, items[index])
	}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parents := []string{}
		if item.Parents != nil {
			parents = append(parents, (*item.Parents)...)
		}
		flat = append(flat, drivefile.Record{
			ID:           item.ID,
			Name:         item.Name,
			MIMEType:     item.MIMEType,
			Parents:      parents,
			CreatedTime:  item.CreatedTime,
			ModifiedTime: item.ModifiedTime,
			Size:         item.Size,
			WebViewLink:  item.WebViewLink,
		})
		for index := len(item.Children) - 1; index >= 0; index-- {
			child := item.Children[index]
			if child.Parents == nil {
				inherited := []string{item.ID}
				child.Parents = &inherited
			}
			stack = append(stack, child)
		}
	}
	return flat
}
