package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"famledger/internal/core"
	"famledger/internal/feed"
)

type fakeReader struct {
	expenses map[string][]core.Expense
	err      error
}

func (f *fakeReader) ListExpenses(_ context.Context, familyID string) ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expenses[familyID], nil
}

type recordingWriter struct {
	snapshots [][]core.Expense
	err       error
}

func (w *recordingWriter) MirrorSnapshot(_ context.Context, expenses []core.Expense) error {
	if w.err != nil {
		return w.err
	}
	w.snapshots = append(w.snapshots, expenses)
	return nil
}

func expense(id string, cents int64) core.Expense {
	return core.Expense{
		ID:           id,
		Date:         core.NewDate(2025, 1, 10),
		MainCategory: "Food",
		SubCategory:  "Groceries",
		Amount:       core.Money{Cents: cents},
		PaymentMode:  "Cash",
	}
}

func TestExpenseNotificationMirrorsFullSnapshot(t *testing.T) {
	reader := &fakeReader{expenses: map[string][]core.Expense{
		"fam-1": {expense("e1", 1000), expense("e2", 2500)},
	}}
	writer := &recordingWriter{}
	m := NewMirror(reader, writer, slog.Default())

	n := feed.NewNotification("fam-1", feed.CollectionExpenses)
	if err := m.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if len(writer.snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(writer.snapshots))
	}
	if len(writer.snapshots[0]) != 2 {
		t.Errorf("snapshot rows = %d, want 2", len(writer.snapshots[0]))
	}
}

func TestCategoryNotificationIsIgnored(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMirror(&fakeReader{}, writer, slog.Default())

	n := feed.NewNotification("fam-1", feed.CollectionCategories)
	if err := m.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(writer.snapshots) != 0 {
		t.Errorf("snapshots = %d, want 0", len(writer.snapshots))
	}
}

func TestHandlerErrorPropagatesForRequeue(t *testing.T) {
	writer := &recordingWriter{err: errors.New("sheets unavailable")}
	m := NewMirror(&fakeReader{expenses: map[string][]core.Expense{"fam-1": {expense("e1", 1000)}}}, writer, slog.Default())

	n := feed.NewNotification("fam-1", feed.CollectionExpenses)
	if err := m.HandleNotification(context.Background(), n); err == nil {
		t.Fatal("expected error to propagate so the delivery is requeued")
	}
}

func TestReconcileSeenCoversAllObservedFamilies(t *testing.T) {
	reader := &fakeReader{expenses: map[string][]core.Expense{
		"fam-1": {expense("e1", 1000)},
		"fam-2": {expense("e2", 2000)},
	}}
	writer := &recordingWriter{}
	m := NewMirror(reader, writer, slog.Default())

	for _, fam := range []string{"fam-1", "fam-2"} {
		if err := m.HandleNotification(context.Background(), feed.NewNotification(fam, feed.CollectionExpenses)); err != nil {
			t.Fatalf("HandleNotification(%s): %v", fam, err)
		}
	}
	writer.snapshots = nil

	if err := m.ReconcileSeen(context.Background()); err != nil {
		t.Fatalf("ReconcileSeen: %v", err)
	}
	if len(writer.snapshots) != 2 {
		t.Errorf("reconcile snapshots = %d, want 2", len(writer.snapshots))
	}
}
