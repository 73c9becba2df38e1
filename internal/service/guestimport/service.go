package guestimport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
)

// MatchSummary is the part of a matched guest shown to the reviewer.
type MatchSummary struct {
	ID       string `json:"id"`
	LegacyID string `json:"legacy_id,omitempty"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// AnalysisRow is one proposed change. It is never persisted; the reviewer
// may override Action before sending the rows back to Execute.
type AnalysisRow struct {
	Line       int               `json:"line"`
	CSV        map[string]string `json:"csv"`
	Normalized NormalizedRow     `json:"normalized"`
	Match      *MatchSummary     `json:"match"`
	Action     Action            `json:"action"`
	Reason     string            `json:"reason"`
}

// Summary counts rows per action.
type Summary struct {
	Total    int `json:"total"`
	Create   int `json:"create"`
	Update   int `json:"update"`
	Conflict int `json:"conflict"`
	Skip     int `json:"skip"`
}

// Analysis is the result of the analyze phase.
type Analysis struct {
	Summary Summary       `json:"summary"`
	Rows    []AnalysisRow `json:"analysis"`
}

// Service runs the analyze and execute phases of a guest import.
type Service struct {
	matcher  *Matcher
	executor *Executor
	ledger   LedgerAppender
}

// NewService wires the import pipeline.
func NewService(tx Transactor, guests GuestRepository, appender LedgerAppender) *Service {
	return &Service{
		matcher:  NewMatcher(guests),
		executor: NewExecutor(tx, guests),
		ledger:   appender,
	}
}

// Analyze parses a CSV export and classifies every row against the store.
// It performs no writes.
func (s *Service) Analyze(ctx context.Context, r io.Reader) (*Analysis, error) {
	header, records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	mapping, err := MapColumns(header)
	if err != nil {
		return nil, err
	}

	out := &Analysis{Rows: make([]AnalysisRow, 0, len(records))}
	for i, rec := range records {
		// line 1 is the header
		row := AnalysisRow{Line: i + 2}
		normalized, raw, err := Normalize(rec, mapping)
		row.CSV = raw
		row.Normalized = normalized

		var malformed *MalformedRowError
		switch {
		case errors.As(err, &malformed):
			row.Action, row.Reason = ActionSkip, "Malformed row: "+malformed.Error()
		case err != nil:
			return nil, err
		case normalized.Incomplete():
			row.Action, row.Reason = Classify(normalized, nil)
		default:
			match, err := s.matcher.Match(ctx, normalized)
			if err != nil {
				return nil, fmt.Errorf("match line %d: %w", row.Line, err)
			}
			if match != nil {
				row.Match = &MatchSummary{
					ID:       match.ID,
					LegacyID: match.LegacyID,
					FullName: match.FullName,
					Email:    match.Email,
				}
			}
			row.Action, row.Reason = Classify(normalized, match)
		}

		out.Summary.add(row.Action)
		out.Rows = append(out.Rows, row)
	}

	logger.Info("guest import analyzed",
		"rows", out.Summary.Total, "create", out.Summary.Create, "update", out.Summary.Update,
		"conflict", out.Summary.Conflict, "skip", out.Summary.Skip)
	return out, nil
}

// Execute applies reviewed rows and records the run in the ledger. A ledger
// failure is logged; it does not undo or hide the committed rows.
func (s *Service) Execute(ctx context.Context, rows []AnalysisRow, actor string) *ExecuteResult {
	start := time.Now()
	res := s.executor.Execute(ctx, rows)

	entry := &domain.SyncLedgerEntry{
		SyncedAt:    time.Now().UTC(),
		Created:     res.Created,
		Updated:     res.Updated,
		Errors:      res.Errors,
		TriggeredBy: ledger.Trigger("csv_import", actor),
		Details: map[string]any{
			"rows":    len(rows),
			"skipped": res.Skipped,
			"aborted": res.Aborted,
		},
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		logger.Error("guest import ledger append failed", "error", err)
	}

	logger.Info("guest import executed",
		"actor", actor, "created", res.Created, "updated", res.Updated, "skipped", res.Skipped,
		"errors", len(res.Errors), "duration", time.Since(start).String())
	return res
}

func (s *Summary) add(a Action) {
	s.Total++
	switch a {
	case ActionCreate:
		s.Create++
	case ActionUpdate:
		s.Update++
	case ActionConflict:
		s.Conflict++
	default:
		s.Skip++
	}
}

const utf8BOM = "\ufeff"

// readCSV reads the header and data records. The delimiter (comma,
// semicolon or tab) is detected from the header line. Blank lines are
// dropped by encoding/csv.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, domain.ValidationError("guestimport.read", "read header: %v", err)
	}
	first = strings.TrimPrefix(first, utf8BOM)
	if strings.TrimSpace(first) == "" {
		return nil, nil, domain.ValidationError("guestimport.read", "file is empty")
	}

	cr := csv.NewReader(io.MultiReader(bytes.NewBufferString(first), br))
	cr.Comma = detectDelimiter(first)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, domain.ValidationError("guestimport.read", "parse csv: %v", err)
	}
	if len(all) == 0 {
		return nil, nil, domain.ValidationError("guestimport.read", "file is empty")
	}
	return all[0], all[1:], nil
}

func detectDelimiter(header string) rune {
	best, bestCount := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
