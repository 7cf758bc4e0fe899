// Package sheet reads reservation rows from a Google Sheets worksheet and
// writes per-row outcomes back. A read is always a full snapshot of the
// worksheet; writes target the exact row position read during this run.
package sheet

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
	"github.com/cainozoic1865/wensco-pin-server1/internal/reservation"
)

const scope = "https://www.googleapis.com/auth/spreadsheets"

// columns maps canonical column names to the normalised worksheet headers that
// may carry them. The zh-TW headers are the ones the reservation form writes;
// the English ones cover manually maintained sheets.
var columns = map[string][]string{
	"email":   {"電子郵件", "電子郵件地址", "email"},
	"name":    {"姓名", "name"},
	"company": {"公司", "公司名稱", "company"},
	"date":    {"日期", "預約日期", "date"},
	"start":   {"開始時間", "starttime"},
	"end":     {"結束時間", "endtime"},
	"status":  {"狀態", "status"},
	"pin":     {"pin碼", "pin"},
	"detail":  {"錯誤訊息", "error", "detail"},
}

// required are the columns a worksheet must have; 'detail' is optional and
// silently skipped on write-back when absent.
var required = []string{"date", "start", "end", "status", "pin"}

type Config struct {
	SpreadsheetID       string
	Worksheet           string
	ServiceAccountEmail string
	PrivateKey          string
	LogRange            string
}

type Source struct {
	google        *sheets.Service
	spreadsheetID string
	worksheet     string
	logRange      string
	index         map[string]int
}

// NewSource authenticates with the service-account key pair and builds a
// Sheets client. The private key arrives via the environment with literal
// '\n' sequences; they are unescaped here.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	key := strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")

	auth := jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(key),
		Scopes:     []string{scope},
		TokenURL:   google.JWTTokenURL,
	}

	service, err := sheets.NewService(ctx, option.WithHTTPClient(auth.Client(ctx)))
	if err != nil {
		return nil, errs.Wrap(err, "unable to create new Sheets client")
	}

	return &Source{
		google:        service,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     cfg.Worksheet,
		logRange:      cfg.LogRange,
	}, nil
}

// Snapshot retrieves all data rows from the worksheet. The header row is
// resolved into a column index which is retained for write-back.
func (s *Source) Snapshot(ctx context.Context) ([]reservation.Row, error) {
	area := s.worksheet + "!A:Z"

	response, err := s.google.Spreadsheets.Values.Get(s.spreadsheetID, area).Context(ctx).Do()
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "unable to retrieve data from sheet"), errs.ErrSheetAccess)
	}

	index, rows, err := makeRows(response.Values)
	if err != nil {
		return nil, err
	}

	s.index = index

	return rows, nil
}

// Write updates the status, PIN and error-detail cells of one row, targeting
// the same row position read by Snapshot.
func (s *Source) Write(ctx context.Context, row reservation.Row) error {
	if s.index == nil {
		return errs.Mark(errs.New("no snapshot loaded"), errs.ErrSheetAccess)
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             writeData(s.worksheet, s.index, row),
	}

	if _, err := s.google.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &rq).Context(ctx).Do(); err != nil {
		return errs.Mark(errs.Wrapf(err, "unable to update row %d", row.Position), errs.ErrSheetAccess)
	}

	return nil
}

type LogEntry struct {
	Timestamp time.Time
	RunID     string
	Issued    int
	Failed    int
	Expired   int
}

// AppendLog appends a run summary to the log worksheet. No-op unless a log
// range is configured.
func (s *Source) AppendLog(ctx context.Context, entry LogEntry) error {
	if s.logRange == "" {
		return nil
	}

	rows := sheets.ValueRange{
		Values: [][]interface{}{
			{
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.RunID,
				entry.Issued,
				entry.Failed,
				entry.Expired,
			},
		},
	}

	if _, err := s.google.Spreadsheets.Values.Append(s.spreadsheetID, s.logRange, &rows).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return errs.Wrap(err, "unable to append to log sheet")
	}

	return nil
}

// makeRows resolves the header row into a column index and maps the remaining
// rows to reservations. Rows with no content in any consumed column are
// skipped (worksheet tails are usually padded with blanks).
func makeRows(values [][]interface{}) (map[string]int, []reservation.Row, error) {
	if len(values) == 0 {
		return nil, nil, errs.Mark(errs.New("no data in worksheet"), errs.ErrSheetAccess)
	}

	index, err := makeIndex(values[0])
	if err != nil {
		return nil, nil, err
	}

	rows := []reservation.Row{}
	for i, record := range values[1:] {
		row := reservation.Row{
			Position: i + 1,
			Email:    cell(record, index, "email"),
			Name:     cell(record, index, "name"),
			Company:  cell(record, index, "company"),
			Date:     cell(record, index, "date"),
			Start:    cell(record, index, "start"),
			End:      cell(record, index, "end"),
			Status:   reservation.Status(cell(record, index, "status")),
			PIN:      cell(record, index, "pin"),
			Detail:   cell(record, index, "detail"),
		}

		if blank(row) {
			continue
		}

		rows = append(rows, row)
	}

	return index, rows, nil
}

func makeIndex(header []interface{}) (map[string]int, error) {
	index := map[string]int{}

	for i, v := range header {
		text, ok := v.(string)
		if !ok {
			continue
		}

		k := normalise(text)
		for canonical, names := range columns {
			for _, name := range names {
				if k == name {
					if _, ok := index[canonical]; ok {
						return nil, errs.Mark(errs.Newf("duplicate column '%s'", text), errs.ErrSheetAccess)
					}

					index[canonical] = i
				}
			}
		}
	}

	for _, k := range required {
		if _, ok := index[k]; !ok {
			return nil, errs.Mark(errs.Newf("missing '%s' column", k), errs.ErrSheetAccess)
		}
	}

	return index, nil
}

// writeData builds the per-cell value ranges for one row's write-back. The
// detail cell is always rewritten when the column exists so stale errors do
// not outlive a successful reprocess.
func writeData(worksheet string, index map[string]int, row reservation.Row) []*sheets.ValueRange {
	line := row.Position + 1 // +1 for the header row

	data := []*sheets.ValueRange{
		cellRange(worksheet, index["status"], line, string(row.Status)),
	}

	if row.PIN != "" {
		data = append(data, cellRange(worksheet, index["pin"], line, row.PIN))
	}

	if ix, ok := index["detail"]; ok {
		data = append(data, cellRange(worksheet, ix, line, row.Detail))
	}

	return data
}

func cellRange(worksheet string, column int, line int, value string) *sheets.ValueRange {
	return &sheets.ValueRange{
		Range:  worksheet + "!" + colName(column) + strconv.Itoa(line),
		Values: [][]interface{}{{value}},
	}
}

func cell(record []interface{}, index map[string]int, column string) string {
	ix, ok := index[column]
	if !ok || ix >= len(record) {
		return ""
	}

	if v, ok := record[ix].(string); ok {
		return strings.TrimSpace(v)
	}

	return ""
}

func blank(row reservation.Row) bool {
	return row.Email == "" && row.Name == "" && row.Company == "" &&
		row.Date == "" && row.Start == "" && row.End == "" &&
		row.Status == "" && row.PIN == "" && row.Detail == ""
}

// colName converts a 0-based column offset to its A1 notation letter(s).
func colName(ix int) string {
	name := ""
	for ix >= 0 {
		name = string(rune('A'+ix%26)) + name
		ix = ix/26 - 1
	}

	return name
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}
