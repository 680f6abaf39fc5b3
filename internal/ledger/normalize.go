// Package ledger reads a concert's review history from the remote service
// and normalizes its varying response shapes into one ordered sequence.
package ledger

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/tickeasy/internal/models"
)

// Shape names, also used as metric labels.
const (
	ShapeNestedReviews = "nested_reviews" // {status, data:{reviews:[...]}}
	ShapeFlatData      = "flat_data"      // {status, data:[...]}
	ShapeBareArray     = "bare_array"     // [...]
	ShapeTopReviews    = "top_reviews"    // {reviews:[...]}
	ShapeUnrecognized  = "unrecognized"
)

// matcher tries one response shape, declining with ok=false. A shape that
// matches still accepts a record list where some entries fail to decode;
// those are counted in batch.skipped.
type matcher struct {
	name  string
	match func(raw []byte) (batch, bool)
}

type batch struct {
	records []wireRecord
	skipped int
}

// matchers are tried in order; the first that accepts wins.
var matchers = []matcher{
	{ShapeNestedReviews, matchNestedReviews},
	{ShapeFlatData, matchFlatData},
	{ShapeBareArray, matchBareArray},
	{ShapeTopReviews, matchTopReviews},
}

type wireAnalysis struct {
	Summary              string     `json:"summary"`
	Reasons              stringList `json:"reasons"`
	Suggestions          stringList `json:"suggestions"`
	Confidence           optFloat   `json:"confidence"`
	FlaggedContent       stringList `json:"flaggedContent"`
	IsAppropriate        *bool      `json:"isAppropriate"`
	RequiresManualReview bool       `json:"requiresManualReview"`
}

type wireRecord struct {
	ReviewID     flexString    `json:"reviewId"`
	ConcertID    flexString    `json:"concertId"`
	ReviewType   string        `json:"reviewType"`
	ReviewStatus string        `json:"reviewStatus"`
	ReviewerNote *string       `json:"reviewerNote"`
	ReviewNote   *string       `json:"reviewNote"` // legacy field
	ReviewerID   flexString    `json:"reviewerId"`
	AIResponse   *wireAnalysis `json:"aiResponse"`
	CreatedAt    string        `json:"createdAt"`
}

// stringList accepts either a JSON array of strings or a single string.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// flexString accepts a JSON string, number or bool. Remote ids are not
// consistently typed.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = flexString(strconv.FormatBool(b))
	return nil
}

// optFloat accepts a number or a numeric string. Anything else leaves it
// unset rather than failing the record.
type optFloat struct {
	val *float64
}

func (o *optFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		o.val = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			o.val = &v
		}
	}
	return nil
}

// Normalize converts a raw ledger body into records sorted by creation time,
// most recent first. It returns the matched shape name, or
// ShapeUnrecognized with no records when no matcher accepts the body.
// Entries that cannot be decoded are dropped.
func Normalize(raw []byte) ([]models.ReviewRecord, string) {
	records, shape, _ := normalize(raw)
	return records, shape
}

func normalize(raw []byte) ([]models.ReviewRecord, string, int) {
	for _, m := range matchers {
		b, ok := m.match(raw)
		if !ok {
			continue
		}
		records := make([]models.ReviewRecord, 0, len(b.records))
		for _, w := range b.records {
			records = append(records, w.toModel())
		}
		SortByCreatedDesc(records)
		return records, m.name, b.skipped
	}
	return []models.ReviewRecord{}, ShapeUnrecognized, 0
}

// SortByCreatedDesc orders records newest first. Records without a parseable
// timestamp sort last; ties keep their input order.
func SortByCreatedDesc(records []models.ReviewRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].CreatedAt, records[j].CreatedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// decodeRecords accepts any JSON array and decodes its entries one by one,
// so a single bad entry does not discard the rest of the history.
func decodeRecords(raw json.RawMessage) (batch, bool) {
	if !isArray(raw) {
		return batch{}, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return batch{}, false
	}
	b := batch{records: make([]wireRecord, 0, len(items))}
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			b.skipped++
			continue
		}
		var w wireRecord
		if err := json.Unmarshal(trimmed, &w); err != nil {
			b.skipped++
			continue
		}
		b.records = append(b.records, w)
	}
	return b, true
}

type statusEnvelope struct {
	Status *string         `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// failed reports an explicit non-success status; an absent status passes.
func (e statusEnvelope) failed() bool {
	return e.Status != nil && *e.Status != "success"
}

func matchNestedReviews(raw []byte) (batch, bool) {
	var env statusEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.failed() || len(env.Data) == 0 {
		return batch{}, false
	}
	var data struct {
		Reviews json.RawMessage `json:"reviews"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return batch{}, false
	}
	return decodeRecords(data.Reviews)
}

func matchFlatData(raw []byte) (batch, bool) {
	var env statusEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.failed() {
		return batch{}, false
	}
	return decodeRecords(env.Data)
}

func matchBareArray(raw []byte) (batch, bool) {
	return decodeRecords(raw)
}

func matchTopReviews(raw []byte) (batch, bool) {
	var env struct {
		Reviews json.RawMessage `json:"reviews"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return batch{}, false
	}
	return decodeRecords(env.Reviews)
}

func (w wireRecord) toModel() models.ReviewRecord {
	r := models.ReviewRecord{
		ReviewID:   string(w.ReviewID),
		ConcertID:  string(w.ConcertID),
		ReviewerID: string(w.ReviewerID),
		Type:       reviewType(w.ReviewType),
		Status:     models.ReviewStatus(w.ReviewStatus),
		CreatedAt:  parseTime(w.CreatedAt),
	}
	switch {
	case w.ReviewerNote != nil && *w.ReviewerNote != "":
		r.ReviewerNote = *w.ReviewerNote
	case w.ReviewNote != nil:
		r.ReviewerNote = *w.ReviewNote
	}
	if w.AIResponse != nil {
		r.Analysis = &models.Analysis{
			Summary:              w.AIResponse.Summary,
			Reasons:              w.AIResponse.Reasons,
			Suggestions:          w.AIResponse.Suggestions,
			Confidence:           w.AIResponse.Confidence.val,
			FlaggedContent:       w.AIResponse.FlaggedContent,
			Recommended:          w.AIResponse.IsAppropriate,
			RequiresManualReview: w.AIResponse.RequiresManualReview,
		}
	}
	return r
}

func reviewType(s string) models.ReviewType {
	switch strings.ToLower(s) {
	case "ai_auto", "ai", "auto", "automated":
		return models.ReviewTypeAutomated
	}
	return models.ReviewTypeManual
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
