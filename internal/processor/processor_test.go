package processor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cainozoic1865/wensco-pin-server1/internal/clock"
	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
	"github.com/cainozoic1865/wensco-pin-server1/internal/localtime"
	"github.com/cainozoic1865/wensco-pin-server1/internal/reservation"
	"github.com/cainozoic1865/wensco-pin-server1/internal/sheet"
)

var loc = time.FixedZone("CST", 8*60*60)

// now is mid-2024 so '2024-01-01' rows are expired and '2024-06-01' rows are upcoming
var now = time.Date(2024, 5, 1, 12, 0, 0, 0, loc)

type fakeSheet struct {
	rows        []reservation.Row
	written     []reservation.Row
	log         []sheet.LogEntry
	snapshotErr error
	writeErr    map[int]error
}

func (f *fakeSheet) Snapshot(ctx context.Context) ([]reservation.Row, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}

	return f.rows, nil
}

func (f *fakeSheet) Write(ctx context.Context, row reservation.Row) error {
	if err, ok := f.writeErr[row.Position]; ok {
		return err
	}

	f.written = append(f.written, row)

	return nil
}

func (f *fakeSheet) AppendLog(ctx context.Context, entry sheet.LogEntry) error {
	f.log = append(f.log, entry)

	return nil
}

type fakeIssuer struct {
	pins          []string
	issued        int
	credentials   int
	credentialErr error
	issueErr      map[int]error
	intervals     []reservation.Interval
}

func (f *fakeIssuer) Credential(ctx context.Context) (*oauth2.Token, error) {
	f.credentials++
	if f.credentialErr != nil {
		return nil, f.credentialErr
	}

	return &oauth2.Token{AccessToken: "token-xyz"}, nil
}

func (f *fakeIssuer) IssuePin(ctx context.Context, token *oauth2.Token, interval reservation.Interval) (string, error) {
	call := f.issued
	f.issued++
	f.intervals = append(f.intervals, interval)

	if err, ok := f.issueErr[call]; ok {
		return "", err
	}

	return f.pins[call], nil
}

func processor(s *fakeSheet, i *fakeIssuer) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(s, i, localtime.NewParser(loc), clock.NewFixedClock(now), logger)
}

func TestRun(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "9:00", End: "11:00", PIN: "1234", Status: reservation.StatusIssued},
			{Position: 2, Date: "2024-01-01", Start: "上午 9:00", End: "上午 11:00", Status: reservation.StatusPending},
			{Position: 3, Date: "2024-06-01", Start: "上午 9:00", End: "下午 2:00", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{pins: []string{"48213657"}}

	report, err := processor(s, i).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	// row 1 is skipped, rows 2 and 3 are reported
	require.Len(t, report.Outcomes, 2)

	assert.Equal(t, 2, report.Outcomes[0].Position)
	assert.Equal(t, reservation.StatusExpired, report.Outcomes[0].Status)

	assert.Equal(t, 3, report.Outcomes[1].Position)
	assert.Equal(t, reservation.StatusIssued, report.Outcomes[1].Status)
	assert.Equal(t, "48213657", report.Outcomes[1].PIN)

	// write-backs mirror the report, in order
	require.Len(t, s.written, 2)
	assert.Equal(t, reservation.StatusExpired, s.written[0].Status)
	assert.Equal(t, "48213657", s.written[1].PIN)

	// one credential for the whole run, one issuance for the one pending row
	assert.Equal(t, 1, i.credentials)
	assert.Equal(t, 1, i.issued)

	// the issued interval is the parsed absolute window
	require.Len(t, i.intervals, 1)
	assert.True(t, i.intervals[0].Start.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, loc)))
	assert.True(t, i.intervals[0].End.Equal(time.Date(2024, 6, 1, 14, 0, 0, 0, loc)))
}

func TestRunNothingToDo(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "9:00", End: "11:00", PIN: "1234", Status: reservation.StatusIssued},
		},
	}
	i := &fakeIssuer{}

	report, err := processor(s, i).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Outcomes)
	assert.Zero(t, i.credentials)
	assert.Contains(t, report.Summary(), "no reservations needed processing")
}

func TestRunMalformedRow(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "half nine", End: "11:00", Status: reservation.StatusPending},
			{Position: 2, Date: "2024-06-01", Start: "9:00", End: "", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{}

	report, err := processor(s, i).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.Equal(t, reservation.StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Detail, "half nine")

	assert.Equal(t, reservation.StatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, "missing fields", report.Outcomes[1].Detail)

	// malformed rows never reach the issuer
	assert.Zero(t, i.credentials)
	assert.Zero(t, i.issued)
}

func TestRunIssuanceFailureContinues(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
			{Position: 2, Date: "2024-06-02", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{
		pins:     []string{"", "55512345"},
		issueErr: map[int]error{0: errs.Mark(errs.New("overlapping PIN interval"), errs.ErrIssuance)},
	}

	report, err := processor(s, i).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.Equal(t, reservation.StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Detail, "overlapping PIN interval")

	// the second pending row is still attempted
	assert.Equal(t, reservation.StatusIssued, report.Outcomes[1].Status)
	assert.Equal(t, "55512345", report.Outcomes[1].PIN)
	assert.Equal(t, 2, i.issued)

	// the failure is durable in the sheet, distinguishable from success
	require.Len(t, s.written, 2)
	assert.Equal(t, reservation.StatusFailed, s.written[0].Status)
	assert.NotEmpty(t, s.written[0].Detail)
}

func TestRunCredentialFailureAborts(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
			{Position: 2, Date: "2024-06-02", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{credentialErr: errs.Mark(errs.New("invalid_client"), errs.ErrAuth)}

	report, err := processor(s, i).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errs.Is(err, errs.ErrAuth))

	// zero issuance attempts occur
	assert.Zero(t, i.issued)
	assert.Empty(t, s.written)
}

func TestRunAuthFailureMidRunAborts(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-06-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
			{Position: 2, Date: "2024-06-02", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{
		pins:     []string{"48213657", ""},
		issueErr: map[int]error{1: errs.Mark(errs.New("token expired"), errs.ErrAuth)},
	}

	report, err := processor(s, i).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errs.Is(err, errs.ErrAuth))

	// the first row's PIN was written before the abort
	require.Len(t, s.written, 1)
	assert.Equal(t, "48213657", s.written[0].PIN)
}

func TestRunSnapshotFailureIsFatal(t *testing.T) {
	s := &fakeSheet{snapshotErr: errs.Mark(errs.New("quota exceeded"), errs.ErrSheetAccess)}

	report, err := processor(s, &fakeIssuer{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errs.Is(err, errs.ErrSheetAccess))
}

func TestRunWriteBackFailureAfterIssuance(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 4, Date: "2024-06-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
		},
		writeErr: map[int]error{4: errs.Mark(errs.New("write quota exceeded"), errs.ErrSheetAccess)},
	}
	i := &fakeIssuer{pins: []string{"48213657"}}

	report, err := processor(s, i).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	// the orphaned PIN is named for manual reconciliation
	assert.Contains(t, err.Error(), "48213657")
	assert.Contains(t, err.Error(), "row 4")
	assert.True(t, errs.Is(err, errs.ErrSheetAccess))
}

func TestRunLogEntry(t *testing.T) {
	s := &fakeSheet{
		rows: []reservation.Row{
			{Position: 1, Date: "2024-01-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
			{Position: 2, Date: "2024-06-01", Start: "9:00", End: "11:00", Status: reservation.StatusPending},
			{Position: 3, Date: "2024-06-01", Start: "bad", End: "11:00", Status: reservation.StatusPending},
		},
	}
	i := &fakeIssuer{pins: []string{"48213657"}}

	report, err := processor(s, i).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, s.log, 1)

	assert.Equal(t, report.RunID, s.log[0].RunID)
	assert.Equal(t, 1, s.log[0].Issued)
	assert.Equal(t, 1, s.log[0].Failed)
	assert.Equal(t, 1, s.log[0].Expired)
	assert.True(t, s.log[0].Timestamp.Equal(now))
}

func TestReportSummary(t *testing.T) {
	report := &Report{
		RunID: "run-1",
		Outcomes: []Outcome{
			{Position: 2, Status: reservation.StatusExpired},
			{Position: 3, Status: reservation.StatusIssued, PIN: "48213657"},
			{Position: 4, Status: reservation.StatusFailed, Detail: "missing fields"},
		},
	}

	summary := report.Summary()

	assert.Contains(t, summary, "processed 3 row(s)")
	assert.Contains(t, summary, "已過期")
	assert.Contains(t, summary, "PIN 48213657")
	assert.Contains(t, summary, "missing fields")
}
