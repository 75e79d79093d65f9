// Package worker contains the background mirror that keeps an external
// spreadsheet converged with the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/feed"
)

// SnapshotWriter is the external mirror target.
type SnapshotWriter interface {
	MirrorSnapshot(ctx context.Context, expenses []core.Expense) error
}

// Mirror consumes feed notifications and pushes the family's full snapshot to
// the writer. Like every other consumer it ignores the notification payload
// beyond family and collection, re-reading the whole set instead.
type Mirror struct {
	reader docstore.ExpenseReader
	writer SnapshotWriter
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]bool // family IDs observed since startup
}

func NewMirror(reader docstore.ExpenseReader, writer SnapshotWriter, logger *slog.Logger) *Mirror {
	return &Mirror{
		reader: reader,
		writer: writer,
		logger: logger,
		seen:   make(map[string]bool),
	}
}

// HandleNotification implements feed.Handler. Category changes do not affect
// the mirrored rows and are acked without work.
func (m *Mirror) HandleNotification(ctx context.Context, n feed.Notification) error {
	if n.Collection != feed.CollectionExpenses {
		return nil
	}

	m.mu.Lock()
	m.seen[n.FamilyID] = true
	m.mu.Unlock()

	return m.mirrorFamily(ctx, n.FamilyID)
}

// ReconcileSeen re-mirrors every family observed so far. Run periodically to
// cover notifications lost while the worker was down.
func (m *Mirror) ReconcileSeen(ctx context.Context) error {
	m.mu.Lock()
	families := make([]string, 0, len(m.seen))
	for id := range m.seen {
		families = append(families, id)
	}
	m.mu.Unlock()

	for _, id := range families {
		if err := m.mirrorFamily(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) mirrorFamily(ctx context.Context, familyID string) error {
	expenses, err := m.reader.ListExpenses(ctx, familyID)
	if err != nil {
		return fmt.Errorf("list expenses for mirror: %w", err)
	}
	if err := m.writer.MirrorSnapshot(ctx, expenses); err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}

	m.logger.InfoContext(ctx, "Family snapshot mirrored",
		"family_id", familyID,
		"rows", len(expenses))
	return nil
}
