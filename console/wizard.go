package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/errs"
)

// MaxUploadSize is the exclusive upper bound on workbook size.
const MaxUploadSize int64 = 50 << 20

// PreviewPrefix is prepended to the target table name for scratch imports.
const PreviewPrefix = "preview_"

// Step is a wizard stage.
type Step int

const (
	StepUpload Step = iota
	StepSelectSheet
	StepPreview
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepSelectSheet:
		return "select-sheet"
	case StepPreview:
		return "preview"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type wizardEvent string

const (
	eventUploaded  wizardEvent = "uploaded"
	eventPreviewed wizardEvent = "previewed"
	eventConfirmed wizardEvent = "confirmed"
)

// wizardTransitions lists every legal move. Previewing again from the
// preview step (another sheet or table name) keeps the step where it is.
var wizardTransitions = map[Step]map[wizardEvent]Step{
	StepUpload:      {eventUploaded: StepSelectSheet},
	StepSelectSheet: {eventPreviewed: StepPreview},
	StepPreview:     {eventPreviewed: StepPreview, eventConfirmed: StepDone},
}

func nextStep(from Step, ev wizardEvent) (Step, bool) {
	to, ok := wizardTransitions[from][ev]
	return to, ok
}

// WizardState is a copy of the wizard's state.
type WizardState struct {
	Step Step
	Busy bool

	LocalPath  string
	FileName   string
	FileSize   int64
	ServerPath string

	Sheets []string
	Sheet  string
	Table  string

	Preview *api.ImportResult
	Result  *api.ImportResult
	// ConfigRefreshed is false when the post-import refresh failed.
	ConfigRefreshed bool
}

// PreviewTable is the scratch table the current selection previews into.
func (s WizardState) PreviewTable() string {
	if s.Table == "" {
		return ""
	}
	return PreviewPrefix + s.Table
}

// Wizard drives the spreadsheet import: upload, pick a sheet, preview
// into a scratch table, confirm into the real table.
type Wizard struct {
	backend ImportBackend
	note    notifier

	mu    sync.Mutex
	state WizardState
	gen   uint64 // bumped by Reset; stale results are dropped
}

// NewWizard creates a wizard at StepUpload.
func NewWizard(backend ImportBackend, sink Notifier) *Wizard {
	return &Wizard{backend: backend, note: notifier{category: "wizard", sink: sink}}
}

// Snapshot returns a copy of the current state.
func (w *Wizard) Snapshot() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.Sheets = append([]string(nil), w.state.Sheets...)
	return s
}

// begin checks that ev is legal now and marks the wizard busy.
func (w *Wizard) begin(op string, ev wizardEvent) (WizardState, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Busy {
		return WizardState{}, 0, errs.Statef(op, "another import action is still running")
	}
	if _, ok := nextStep(w.state.Step, ev); !ok {
		return WizardState{}, 0, errs.Statef(op, "not allowed at step %s", w.state.Step)
	}
	w.state.Busy = true
	return w.state, w.gen, nil
}

// finish clears the busy flag and, when the wizard was not reset in the
// meantime, applies commit and moves along ev.
func (w *Wizard) finish(gen uint64, ev wizardEvent, commit func(*WizardState)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return false
	}
	w.state.Busy = false
	if commit == nil {
		return true
	}
	to, ok := nextStep(w.state.Step, ev)
	if !ok {
		return false
	}
	commit(&w.state)
	from := w.state.Step
	w.state.Step = to
	if from != to {
		w.note.info(fmt.Sprintf("import step %s -> %s", from, to))
	}
	return true
}

// ValidateWorkbook checks a local file before upload.
func ValidateWorkbook(path string) (os.FileInfo, error) {
	const op = "wizard.upload"
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xls" {
		return nil, errs.Validationf(op, "only Excel files (.xlsx or .xls) can be imported")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Validationf(op, "cannot read %s: %v", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, errs.Validationf(op, "%s is a directory", filepath.Base(path))
	}
	if info.Size() >= MaxUploadSize {
		return nil, errs.Validationf(op, "file must be smaller than 50 MB")
	}
	return info, nil
}

// Upload sends the workbook at path and lists its sheets. The wizard
// moves to StepSelectSheet only when both calls succeed.
func (w *Wizard) Upload(ctx context.Context, path string) error {
	const op = "wizard.upload"

	info, err := ValidateWorkbook(path)
	if err != nil {
		w.note.fail("", err)
		return err
	}
	_, gen, err := w.begin(op, eventUploaded)
	if err != nil {
		w.note.fail("", err)
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		w.finish(gen, eventUploaded, nil)
		err = errs.Validationf(op, "cannot open %s: %v", filepath.Base(path), err)
		w.note.fail("", err)
		return err
	}
	defer f.Close()

	up, err := w.backend.UploadExcel(ctx, info.Name(), f)
	if err != nil {
		w.finish(gen, eventUploaded, nil)
		w.note.fail("upload failed", err)
		return err
	}
	w.note.success("uploaded " + info.Name())

	sheets, err := w.backend.ListSheets(ctx, up.FilePath)
	if err != nil {
		w.finish(gen, eventUploaded, nil)
		w.note.fail("reading sheets failed", err)
		return err
	}

	applied := w.finish(gen, eventUploaded, func(s *WizardState) {
		s.LocalPath = path
		s.FileName = info.Name()
		s.FileSize = info.Size()
		s.ServerPath = up.FilePath
		s.Sheets = sheets
		if len(sheets) > 0 {
			s.Sheet = sheets[0]
		}
	})
	if applied {
		w.note.success(fmt.Sprintf("found %d sheet(s)", len(sheets)))
	}
	return nil
}

// Preview imports sheet into preview_<table> so the result can be
// inspected without touching the real table.
func (w *Wizard) Preview(ctx context.Context, sheet, table string) error {
	const op = "wizard.preview"

	sheet = strings.TrimSpace(sheet)
	table = strings.TrimSpace(table)
	if sheet == "" {
		err := errs.Validationf(op, "select a sheet")
		w.note.fail("", err)
		return err
	}
	if table == "" {
		err := errs.Validationf(op, "enter a target table name")
		w.note.fail("", err)
		return err
	}

	cur, gen, err := w.begin(op, eventPreviewed)
	if err != nil {
		w.note.fail("", err)
		return err
	}
	if !contains(cur.Sheets, sheet) {
		w.finish(gen, eventPreviewed, nil)
		err := errs.Validationf(op, "sheet %q is not in the uploaded workbook", sheet)
		w.note.fail("", err)
		return err
	}

	res, err := w.backend.ImportSheet(ctx, api.ImportRequest{
		ExcelPath: cur.ServerPath,
		SheetName: sheet,
		TableName: PreviewPrefix + table,
		IfExists:  api.IfExistsReplace,
	})
	if err != nil {
		w.finish(gen, eventPreviewed, nil)
		w.note.fail("preview failed", err)
		return err
	}

	if w.finish(gen, eventPreviewed, func(s *WizardState) {
		s.Sheet = sheet
		s.Table = table
		s.Preview = res
	}) {
		w.note.success(fmt.Sprintf("preview loaded: %d rows, %d columns", res.RowCount, res.ColumnCount))
	}
	return nil
}

// Confirm imports the selected sheet into the real table, then asks the
// backend to pick the table up. A failed refresh is only a warning.
func (w *Wizard) Confirm(ctx context.Context) error {
	const op = "wizard.confirm"

	cur, gen, err := w.begin(op, eventConfirmed)
	if err != nil {
		w.note.fail("", err)
		return err
	}

	res, err := w.backend.ImportSheet(ctx, api.ImportRequest{
		ExcelPath: cur.ServerPath,
		SheetName: cur.Sheet,
		TableName: cur.Table,
		IfExists:  api.IfExistsReplace,
	})
	if err != nil {
		w.finish(gen, eventConfirmed, nil)
		w.note.fail("import failed", err)
		return err
	}

	_, refreshErr := w.backend.UpdateConfig(ctx, "add")

	if !w.finish(gen, eventConfirmed, func(s *WizardState) {
		s.Result = res
		s.ConfigRefreshed = refreshErr == nil
	}) {
		return nil
	}
	if refreshErr != nil {
		w.note.fail("data imported, but the config update failed", errs.AsSecondary(op, refreshErr))
		return nil
	}
	w.note.success(fmt.Sprintf("imported %d rows into %s, config updated", res.RowCount, res.TableName))
	return nil
}

// Reset returns the wizard to StepUpload. Results of calls still in
// flight are discarded.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.state = WizardState{}
}

// SuggestTableName derives a table name from a workbook path:
// "Sales 2024.xlsx" becomes "sales_2024".
func SuggestTableName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ToLower(strings.TrimSpace(base))
	return strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	}), "_")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
