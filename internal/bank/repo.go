package bank

import (
	"context"

	"github.com/mind-engage/kokushi-qbank/internal/extract"
)

// SelectOpts filters questions for annotation templates. Serials must already
// be expanded (see extract.ExpandSerials).
type SelectOpts struct {
	Serials      []string
	ExamTypeCode string
	ExamSession  int
	Subject      string
	Unannotated  []Kind // only questions lacking every listed kind
	Order        string // serial (default) | new
	Limit        int
}

type Store interface {
	// UpsertDocument writes one document's records in a single transaction,
	// keyed by serial.
	UpsertDocument(ctx context.Context, recs []extract.QuestionRecord) (int, error)
	WithTx(ctx context.Context, fn func(*Tx) error) error

	GetQuestion(ctx context.Context, serial string) (QuestionDetail, error)
	Select(ctx context.Context, opts SelectOpts) ([]Question, error)
	ListDetails(ctx context.Context) ([]QuestionDetail, error)

	Progress(ctx context.Context) (Progress, error)
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
	Preview(ctx context.Context, query string) ([]PreviewItem, error)
	Missing(ctx context.Context, kinds []Kind, limit int) ([]MissingRow, error)
	Subjects(ctx context.Context) ([]string, error)

	AddReport(ctx context.Context, serial string, kind Kind) error
	ListReports(ctx context.Context) ([]FeedbackReport, error)
	ClearReports(ctx context.Context, items []ClearItem) error
}
