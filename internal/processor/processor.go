// Package processor performs one bounded pass over the reservation worksheet:
// classify every row, issue PINs for the eligible ones and write each outcome
// back before moving to the next row.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cainozoic1865/wensco-pin-server1/internal/clock"
	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
	"github.com/cainozoic1865/wensco-pin-server1/internal/reservation"
	"github.com/cainozoic1865/wensco-pin-server1/internal/sheet"
)

// Sheet is the tabular source boundary.
type Sheet interface {
	Snapshot(ctx context.Context) ([]reservation.Row, error)
	Write(ctx context.Context, row reservation.Row) error
	AppendLog(ctx context.Context, entry sheet.LogEntry) error
}

// Issuer is the access-control provider boundary.
type Issuer interface {
	Credential(ctx context.Context) (*oauth2.Token, error)
	IssuePin(ctx context.Context, token *oauth2.Token, interval reservation.Interval) (string, error)
}

// Outcome is one processed row's final state. Rows that already had a PIN are
// skipped and deliberately not reported.
type Outcome struct {
	Position int
	Status   reservation.Status
	PIN      string
	Detail   string
}

// Report is the ordered per-run record of row outcomes.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Summary renders the report as the text returned to the HTTP caller.
func (r *Report) Summary() string {
	var b strings.Builder

	if len(r.Outcomes) == 0 {
		fmt.Fprintf(&b, "run %s: no reservations needed processing\n", r.RunID)
		return b.String()
	}

	fmt.Fprintf(&b, "run %s: processed %d row(s)\n", r.RunID, len(r.Outcomes))

	for _, outcome := range r.Outcomes {
		switch {
		case outcome.PIN != "":
			fmt.Fprintf(&b, "row %-3d  %s  PIN %s\n", outcome.Position, outcome.Status, outcome.PIN)

		case outcome.Detail != "":
			fmt.Fprintf(&b, "row %-3d  %s  %s\n", outcome.Position, outcome.Status, outcome.Detail)

		default:
			fmt.Fprintf(&b, "row %-3d  %s\n", outcome.Position, outcome.Status)
		}
	}

	return b.String()
}

func (r *Report) count(status reservation.Status) int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == status {
			n++
		}
	}

	return n
}

type Processor struct {
	sheet  Sheet
	issuer Issuer
	parser reservation.TimeParser
	clock  clock.Clock
	logger *slog.Logger
}

func New(sheet Sheet, issuer Issuer, parser reservation.TimeParser, clock clock.Clock, logger *slog.Logger) *Processor {
	return &Processor{
		sheet:  sheet,
		issuer: issuer,
		parser: parser,
		clock:  clock,
		logger: logger,
	}
}

// Run executes one sequential pass. Rows are handled strictly in sheet order
// and each row's write-back completes before the next row is looked at, so a
// crash can never leave an earlier row less settled than a later one.
//
// Row-local failures (malformed fields, a rejected issuance) are recorded on
// the row and the pass continues. Credential and sheet failures abort the
// remaining rows and the error is returned instead of a report - a partial
// report is never presented as a complete one.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := p.logger.With("run", report.RunID)
	now := p.clock.Now()

	rows, err := p.sheet.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("worksheet snapshot loaded", "rows", len(rows))

	var token *oauth2.Token

	for _, row := range rows {
		status, interval, detail := reservation.Classify(row, p.parser, now)

		switch status {
		case reservation.StatusIssued:
			// already has a PIN - terminal, not reported
			continue

		case reservation.StatusExpired:
			row.Status = reservation.StatusExpired
			if err := p.sheet.Write(ctx, row); err != nil {
				return nil, err
			}

			logger.Info("reservation expired", "row", row.Position, "end", interval.End)

		case reservation.StatusFailed:
			row.Status = reservation.StatusFailed
			row.Detail = detail
			if err := p.sheet.Write(ctx, row); err != nil {
				return nil, err
			}

			logger.Warn("reservation rejected", "row", row.Position, "detail", detail)

		case reservation.StatusPending:
			if token == nil {
				if token, err = p.issuer.Credential(ctx); err != nil {
					return nil, err
				}
			}

			pin, err := p.issuer.IssuePin(ctx, token, interval)

			switch {
			case errs.Is(err, errs.ErrAuth):
				// the shared token is unusable - skipping silently would
				// strand every remaining pending row, so stop here
				return nil, err

			case err != nil:
				row.Status = reservation.StatusFailed
				row.Detail = err.Error()
				detail = row.Detail

				if werr := p.sheet.Write(ctx, row); werr != nil {
					return nil, werr
				}

				logger.Warn("PIN issuance failed", "row", row.Position, "error", err)
				status = reservation.StatusFailed

			default:
				row.Status = reservation.StatusIssued
				row.PIN = pin
				row.Detail = ""

				if werr := p.sheet.Write(ctx, row); werr != nil {
					// the PIN exists at the provider but the sheet does not
					// reflect it - surface it for manual reconciliation
					logger.Error("PIN issued but not recorded", "row", row.Position, "pin", pin, "error", werr)
					return nil, errs.Wrapf(werr, "PIN %s issued for row %d but not recorded", pin, row.Position)
				}

				logger.Info("PIN issued", "row", row.Position, "start", interval.Start, "end", interval.End)
				status = reservation.StatusIssued
			}
		}

		report.Outcomes = append(report.Outcomes, Outcome{
			Position: row.Position,
			Status:   status,
			PIN:      row.PIN,
			Detail:   detail,
		})
	}

	entry := sheet.LogEntry{
		Timestamp: now,
		RunID:     report.RunID,
		Issued:    report.count(reservation.StatusIssued),
		Failed:    report.count(reservation.StatusFailed),
		Expired:   report.count(reservation.StatusExpired),
	}

	// best effort - the outcomes are already durable in the main worksheet
	if err := p.sheet.AppendLog(ctx, entry); err != nil {
		logger.Warn("unable to append run log", "error", err)
	}

	return report, nil
}
