//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "github.com/okatech-org/digitalium-archive/pkg/platform/audit"
	auditpostgres "github.com/okatech-org/digitalium-archive/pkg/platform/audit/store/postgres"
	txcontext "github.com/okatech-org/digitalium-archive/pkg/platform/tx"
	"github.com/okatech-org/digitalium-archive/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestOutboxStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *OutboxStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "audit_outbox")
	s.Require().NoError(err)
}

func transitionEvent(documentID string) audit.Event {
	return audit.Event{
		Timestamp:     time.Now().UTC(),
		DocumentID:    documentID,
		Action:        string(audit.EventStatusChanged),
		Actor:         "m.obame",
		FromStatus:    "inactive",
		ToStatus:      "archived",
		Justification: "audit fiscal clos",
		RequestID:     "req-42",
	}
}

// =====================================
// Append and read back
// =====================================

func (s *OutboxStoreSuite) TestAppendAndListByDocument() {
	ctx := context.Background()

	event := transitionEvent("doc-1")
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp:  time.Now().UTC(),
		DocumentID: "doc-2",
		Action:     string(audit.EventVersionAdded),
		Actor:      "p.ndong",
	}))

	events, err := s.store.ListByDocument(ctx, "doc-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	got := events[0]
	s.Equal(event.DocumentID, got.DocumentID)
	s.Equal(event.Action, got.Action)
	s.Equal(event.Actor, got.Actor)
	s.Equal(event.FromStatus, got.FromStatus)
	s.Equal(event.ToStatus, got.ToStatus)
	s.Equal(event.Justification, got.Justification)
	s.Equal(event.RequestID, got.RequestID)

	events, err = s.store.ListByDocument(ctx, "doc-3")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *OutboxStoreSuite) TestListByDocumentOrdersOldestFirst() {
	ctx := context.Background()

	for _, action := range []audit.AuditEvent{
		audit.EventDocumentCreated,
		audit.EventStatusChanged,
		audit.EventVersionLocked,
	} {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp:  time.Now().UTC(),
			DocumentID: "doc-1",
			Action:     string(action),
			Actor:      "system",
		}))
		// Outbox ordering keys on created_at; keep inserts apart.
		time.Sleep(2 * time.Millisecond)
	}

	events, err := s.store.ListByDocument(ctx, "doc-1")
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(string(audit.EventDocumentCreated), events[0].Action)
	s.Equal(string(audit.EventStatusChanged), events[1].Action)
	s.Equal(string(audit.EventVersionLocked), events[2].Action)
}

// =====================================
// Outbox draining
// =====================================

func (s *OutboxStoreSuite) TestFetchUnpublishedAndMarkPublished() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, transitionEvent("doc-1")))
	s.Require().NoError(s.store.Append(ctx, transitionEvent("doc-2")))

	entries, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(string(audit.CategoryCompliance), entries[0].Category)
	s.NotEmpty(entries[0].Payload)

	s.Require().NoError(s.store.MarkPublished(ctx, entries[0].ID))

	remaining, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(entries[1].ID, remaining[0].ID)

	// Marking is idempotent and the trail still shows both events.
	s.Require().NoError(s.store.MarkPublished(ctx, entries[0].ID))
	events, err := s.store.ListByDocument(ctx, "doc-1")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *OutboxStoreSuite) TestFetchUnpublishedHonorsLimit() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, transitionEvent("doc-1")))
	}

	entries, err := s.store.FetchUnpublished(ctx, 3)
	s.Require().NoError(err)
	s.Len(entries, 3)
}

// TestAppendJoinsAmbientTransaction verifies the outbox write rolls back with
// the caller's transaction, so an aborted transition leaves no audit entry.
func (s *OutboxStoreSuite) TestAppendJoinsAmbientTransaction() {
	ctx := context.Background()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	err = s.store.Append(txcontext.WithTx(ctx, tx), transitionEvent("doc-1"))
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback())

	events, err := s.store.ListByDocument(ctx, "doc-1")
	s.Require().NoError(err)
	s.Empty(events)

	entries, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}
