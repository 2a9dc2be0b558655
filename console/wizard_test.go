package console

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/apitest"
	"github.com/DachengChen/nlsql/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (*api.Client, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	return api.New(srv.URL, 5*time.Second), srv
}

func writeWorkbook(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))
	if size > 0 {
		require.NoError(t, os.Truncate(path, size))
	}
	return path
}

func ordersWorkbook(srv *apitest.Server) {
	srv.AddWorkbook("data.xlsx", map[string][]map[string]interface{}{
		"Sheet1": {
			{"id": 1, "amount": 10},
			{"id": 2, "amount": 20},
			{"id": 3, "amount": 30},
		},
		"Sheet2": {{"note": "x"}},
	})
}

func TestValidateWorkbook(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int64
		wantErr bool
	}{
		{"xlsx", "a.xlsx", 0, false},
		{"upper-case xls", "B.XLS", 0, false},
		{"csv rejected", "a.csv", 0, true},
		{"just under limit", "big.xlsx", MaxUploadSize - 1, false},
		{"at limit", "huge.xlsx", MaxUploadSize, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWorkbook(t, tt.file, tt.size)
			_, err := ValidateWorkbook(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errs.KindValidation, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := ValidateWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestWizard_RejectsBadFileWithoutNetwork(t *testing.T) {
	client, srv := newBackend(t)
	notes := NewNoticeLog(0)
	w := NewWizard(client, notes)

	err := w.Upload(context.Background(), writeWorkbook(t, "report.pdf", 0))
	require.Error(t, err)
	assert.Empty(t, srv.Calls())
	assert.Equal(t, StepUpload, w.Snapshot().Step)

	n, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, LevelWarning, n.Level)
}

func TestWizard_UploadListsSheets(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	w := NewWizard(client, nil)

	require.NoError(t, w.Upload(context.Background(), writeWorkbook(t, "data.xlsx", 0)))

	s := w.Snapshot()
	assert.Equal(t, StepSelectSheet, s.Step)
	assert.Equal(t, "data.xlsx", s.FileName)
	assert.NotEmpty(t, s.ServerPath)
	assert.Equal(t, []string{"Sheet1", "Sheet2"}, s.Sheets)
	assert.Equal(t, "Sheet1", s.Sheet)
	assert.False(t, s.Busy)
}

func TestWizard_StepNeverAdvancesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fail string
		f    apitest.Failure
	}{
		{"upload transport failure", "POST /excel/upload", apitest.Failure{Status: 500, Detail: "disk full"}},
		{"upload backend failure", "POST /excel/upload", apitest.Failure{Logical: true}},
		{"sheet listing failure", "POST /excel/sheets", apitest.Failure{Logical: true, Error: "corrupt workbook"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newBackend(t)
			ordersWorkbook(srv)
			srv.FailWith(tt.fail, tt.f)
			w := NewWizard(client, nil)

			err := w.Upload(context.Background(), writeWorkbook(t, "data.xlsx", 0))
			require.Error(t, err)
			s := w.Snapshot()
			assert.Equal(t, StepUpload, s.Step)
			assert.Empty(t, s.ServerPath)
			assert.False(t, s.Busy)
		})
	}
}

func TestWizard_PreviewValidation(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	w := NewWizard(client, nil)
	ctx := context.Background()
	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))
	before := len(srv.Calls())

	for _, tc := range []struct{ sheet, table string }{
		{"", "orders"},
		{"Sheet1", "   "},
		{"Nope", "orders"},
	} {
		err := w.Preview(ctx, tc.sheet, tc.table)
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	}
	assert.Len(t, srv.Calls(), before)
	assert.Equal(t, StepSelectSheet, w.Snapshot().Step)
}

func TestWizard_PreviewUsesScratchTable(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	w := NewWizard(client, nil)
	ctx := context.Background()
	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))

	require.NoError(t, w.Preview(ctx, " Sheet1 ", " orders "))

	s := w.Snapshot()
	assert.Equal(t, StepPreview, s.Step)
	assert.Equal(t, "orders", s.Table)
	assert.Equal(t, "preview_orders", s.PreviewTable())
	require.NotNil(t, s.Preview)
	assert.Equal(t, 3, s.Preview.RowCount)

	_, ok := srv.TableRows("orders")
	assert.False(t, ok, "preview must not create the target table")
	n, ok := srv.TableRows("preview_orders")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	// previewing again stays at the preview step
	require.NoError(t, w.Preview(ctx, "Sheet2", "notes"))
	assert.Equal(t, StepPreview, w.Snapshot().Step)
	assert.Equal(t, "Sheet2", w.Snapshot().Sheet)
}

func TestWizard_PreviewFailureKeepsStep(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	w := NewWizard(client, nil)
	ctx := context.Background()
	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))

	srv.FailWith("POST /excel/import", apitest.Failure{Logical: true, Error: "bad header row"})
	err := w.Preview(ctx, "Sheet1", "orders")
	require.Error(t, err)
	assert.Equal(t, "bad header row", errs.Message(err))
	assert.Equal(t, StepSelectSheet, w.Snapshot().Step)
	assert.Nil(t, w.Snapshot().Preview)
}

func TestWizard_OutOfOrderEventsRejected(t *testing.T) {
	client, srv := newBackend(t)
	w := NewWizard(client, nil)
	ctx := context.Background()

	err := w.Confirm(ctx)
	require.Error(t, err)
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	err = w.Preview(ctx, "Sheet1", "orders")
	require.Error(t, err)
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	assert.Empty(t, srv.Calls())
}

func TestWizard_ConfirmAndReset(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	notes := NewNoticeLog(0)
	w := NewWizard(client, notes)
	ctx := context.Background()

	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))
	require.NoError(t, w.Preview(ctx, "Sheet1", "orders"))
	require.NoError(t, w.Confirm(ctx))

	s := w.Snapshot()
	assert.Equal(t, StepDone, s.Step)
	assert.True(t, s.ConfigRefreshed)
	require.NotNil(t, s.Result)
	assert.Equal(t, "orders", s.Result.TableName)
	assert.Equal(t, 1, srv.Count("POST /excel/update_config"))

	// Done is terminal until reset.
	err := w.Confirm(ctx)
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	w.Reset()
	assert.Equal(t, WizardState{}, w.Snapshot())
}

func TestWizard_StepIsMonotonic(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	w := NewWizard(client, nil)
	ctx := context.Background()

	var steps []Step
	record := func() { steps = append(steps, w.Snapshot().Step) }

	srv.FailWith("POST /excel/sheets", apitest.Failure{Status: 503})
	_ = w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0))
	record()
	srv.Recover("POST /excel/sheets")
	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))
	record()
	srv.FailWith("POST /excel/import", apitest.Failure{Status: 500})
	_ = w.Preview(ctx, "Sheet1", "orders")
	record()
	srv.Recover("POST /excel/import")
	require.NoError(t, w.Preview(ctx, "Sheet1", "orders"))
	record()
	require.NoError(t, w.Confirm(ctx))
	record()

	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1])
	}
	assert.Equal(t, []Step{StepUpload, StepSelectSheet, StepSelectSheet, StepPreview, StepDone}, steps)
}

func TestWizard_ResetDropsInFlightResult(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	srv.FailWith("POST /excel/upload", apitest.Failure{Delay: 200 * time.Millisecond})
	w := NewWizard(client, nil)

	done := make(chan error, 1)
	go func() { done <- w.Upload(context.Background(), writeWorkbook(t, "data.xlsx", 0)) }()

	require.Eventually(t, func() bool { return w.Snapshot().Busy }, time.Second, 5*time.Millisecond)
	w.Reset()
	require.NoError(t, <-done)
	assert.Equal(t, WizardState{}, w.Snapshot())
}

func TestWizard_BusyRejectsOverlap(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	srv.FailWith("POST /excel/upload", apitest.Failure{Delay: 200 * time.Millisecond})
	w := NewWizard(client, nil)
	path := writeWorkbook(t, "data.xlsx", 0)

	done := make(chan error, 1)
	go func() { done <- w.Upload(context.Background(), path) }()
	require.Eventually(t, func() bool { return w.Snapshot().Busy }, time.Second, 5*time.Millisecond)

	err := w.Upload(context.Background(), path)
	assert.Equal(t, errs.KindState, errs.KindOf(err))
	require.NoError(t, <-done)
	assert.Equal(t, StepSelectSheet, w.Snapshot().Step)
}

func TestSuggestTableName(t *testing.T) {
	tests := map[string]string{
		"data.xlsx":             "data",
		"/tmp/Sales 2024.xlsx":  "sales_2024",
		"Q1-orders (final).xls": "q1_orders_final",
	}
	for in, want := range tests {
		assert.Equal(t, want, SuggestTableName(in), in)
	}
}
