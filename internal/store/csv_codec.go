package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"basegraph.app/copilot-survey/internal/model"
)

// Columns is the header row of the results file, in persisted order.
var Columns = []string{
	"enterprise_name",
	"organization_name",
	"repository_name",
	"issue_id",
	"issue_number",
	"PR_number",
	"assignee_name",
	"is_copilot_used",
	"saving_percentage",
	"usage_frequency",
	"savings_invested",
	"comment",
	"created_at",
	"completed_at",
}

// ResultsFile is a decoded results file. Rejected rows could not be decoded and
// are written back verbatim after the records so a rewrite never loses them.
type ResultsFile struct {
	Records  []model.SurveyRecord
	Rejected []RejectedRow
}

// RejectedRow is a row kept as read. IssueID is zero when it was unreadable.
type RejectedRow struct {
	Line    int
	IssueID int64
	Fields  []string
	Err     error
}

// EncodeCSV writes the header and one quoted row per record.
func EncodeCSV(records []model.SurveyRecord) ([]byte, error) {
	return (&ResultsFile{Records: records}).Encode()
}

func (f *ResultsFile) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, r := range f.Records {
		if err := w.Write(encodeRow(r)); err != nil {
			return nil, fmt.Errorf("writing issue %d: %w", r.IssueID, err)
		}
	}
	for _, r := range f.Rejected {
		if err := w.Write(r.Fields); err != nil {
			return nil, fmt.Errorf("writing rejected line %d: %w", r.Line, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Without drops rejected rows for issueID, used once a fresh record replaces them.
func (f *ResultsFile) Without(issueID int64) {
	kept := f.Rejected[:0]
	for _, r := range f.Rejected {
		if issueID == 0 || r.IssueID != issueID {
			kept = append(kept, r)
		}
	}
	f.Rejected = kept
}

// DecodeCSV returns the decodable records of a results file.
func DecodeCSV(data []byte) ([]model.SurveyRecord, error) {
	f, err := ParseResults(data)
	if err != nil {
		return nil, err
	}
	return f.Records, nil
}

// ParseResults reads a results file. Columns are matched by header name, so files
// written before savings_invested existed still load; unknown columns are skipped.
// Older files left the comment unquoted, so a row with surplus fields has them
// folded back into the comment. A row that still fails to decode is rejected
// rather than failing the file.
func ParseResults(data []byte) (*ResultsFile, error) {
	f := &ResultsFile{}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index["issue_id"]; !ok {
		return nil, fmt.Errorf("results file has no issue_id column")
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		rec, err := decodeRow(index, foldComment(index, len(header), row))
		if err != nil {
			f.Rejected = append(f.Rejected, RejectedRow{
				Line:    line,
				IssueID: rec.IssueID,
				Fields:  row,
				Err:     fmt.Errorf("line %d: %w", line, err),
			})
			continue
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

// foldComment joins the fields a comma inside an unquoted comment split off.
func foldComment(index map[string]int, width int, row []string) []string {
	ci, ok := index["comment"]
	extra := len(row) - width
	if !ok || extra <= 0 || ci >= width {
		return row
	}
	folded := make([]string, 0, width)
	folded = append(folded, row[:ci]...)
	folded = append(folded, strings.Join(row[ci:ci+extra+1], ","))
	folded = append(folded, row[ci+extra+1:]...)
	return folded
}

func encodeRow(r model.SurveyRecord) []string {
	used := "0"
	if r.CopilotUsed {
		used = "1"
	}
	return []string{
		r.EnterpriseName,
		r.OrganizationName,
		r.RepositoryName,
		strconv.FormatInt(r.IssueID, 10),
		strconv.Itoa(r.IssueNumber),
		strconv.Itoa(r.PRNumber),
		r.AssigneeName,
		used,
		r.SavingPercentage,
		r.UsageFrequency,
		r.SavingsInvested,
		r.Comment,
		formatTime(r.CreatedAt),
		formatTime(r.CompletedAt),
	}
}

func decodeRow(index map[string]int, row []string) (model.SurveyRecord, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var (
		rec model.SurveyRecord
		err error
	)
	rec.EnterpriseName = get("enterprise_name")
	rec.OrganizationName = get("organization_name")
	rec.RepositoryName = get("repository_name")
	rec.AssigneeName = get("assignee_name")
	rec.SavingPercentage = get("saving_percentage")
	rec.UsageFrequency = get("usage_frequency")
	rec.SavingsInvested = get("savings_invested")
	rec.Comment = get("comment")

	if rec.IssueID, err = strconv.ParseInt(strings.TrimSpace(get("issue_id")), 10, 64); err != nil {
		return rec, fmt.Errorf("issue_id: %w", err)
	}
	if rec.IssueNumber, err = parseOptionalInt(get("issue_number")); err != nil {
		return rec, fmt.Errorf("issue_number: %w", err)
	}
	if rec.PRNumber, err = parseOptionalInt(get("PR_number")); err != nil {
		return rec, fmt.Errorf("PR_number: %w", err)
	}
	if v := strings.TrimSpace(get("is_copilot_used")); v != "" {
		if rec.CopilotUsed, err = strconv.ParseBool(v); err != nil {
			return rec, fmt.Errorf("is_copilot_used: %w", err)
		}
	}
	if rec.CreatedAt, err = parseTime(get("created_at")); err != nil {
		return rec, fmt.Errorf("created_at: %w", err)
	}
	if rec.CompletedAt, err = parseTime(get("completed_at")); err != nil {
		return rec, fmt.Errorf("completed_at: %w", err)
	}
	return rec, nil
}

func parseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
