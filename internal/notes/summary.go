package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/docroute/pkg/document"
	"github.com/nimburion/docroute/pkg/worker"
)

// SummaryWorkerName is the queue name of SummaryWorker.
const SummaryWorkerName = "notes.summary"

// SummaryWorker recomputes the word count of one note.
type SummaryWorker struct {
	worker.Base
	NoteID string `json:"note_id"`

	store *document.Store
}

// SummaryFactory rebuilds SummaryWorkers bound to store on the runner side.
func SummaryFactory(store *document.Store) worker.Factory {
	return func() worker.Worker { return &SummaryWorker{store: store} }
}

func (w *SummaryWorker) Name() string { return SummaryWorkerName }

// BeforeRun rejects jobs whose note ID is not an ObjectID.
func (w *SummaryWorker) BeforeRun(context.Context) error {
	_, err := document.ObjectID(w.NoteID)
	return err
}

func (w *SummaryWorker) Run(ctx context.Context) error {
	if w.store == nil {
		return errors.New("summary worker has no store")
	}
	rec, err := w.store.FindByID(ctx, w.NoteID)
	if err != nil {
		return err
	}
	if rec == nil {
		// deleted since it was scheduled
		return nil
	}

	body, _ := rec.Lookup("body")
	text, _ := body.(string)
	if err := rec.Set("words", len(strings.Fields(text))); err != nil {
		return err
	}
	ok, err := w.store.Save(ctx, rec)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("note %s: word count not saved", w.NoteID)
	}
	return nil
}

// ShouldRetry retries once; failures are transient database errors.
func (w *SummaryWorker) ShouldRetry() bool { return true }

// RegisterWorkers binds the notes workers to r.
func RegisterWorkers(r *worker.Runner, store *document.Store) error {
	return r.Register(SummaryWorkerName, SummaryFactory(store))
}
