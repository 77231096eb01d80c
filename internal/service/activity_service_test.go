package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/middleware"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

func TestRecordLogRequiresExactlyOneArtifact(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		documentID *uint
		formID     *uint
		valid      bool
	}{
		{name: "neither"},
		{name: "both", documentID: ptrUint(1), formID: ptrUint(2)},
		{name: "document", documentID: ptrUint(1), valid: true},
		{name: "form", formID: ptrUint(2), valid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stack.activity.RecordLog(ctx, ActivityEntry{
				Action:     models.ActionVisualisation,
				ActorID:    3,
				ClientID:   7,
				DocumentID: tc.documentID,
				FormID:     tc.formID,
			})
			if tc.valid {
				require.NoError(t, err)
				return
			}
			var validationErr *apperror.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, "errors.validation.artifact_reference", apperror.MessageKeyOf(err))
		})
	}

	require.Len(t, stack.entries(t, 7), 2)
}

func TestRecordLogAssignsServerSideFields(t *testing.T) {
	stack := newServiceStack(t)
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")

	first, err := stack.activity.RecordLog(ctx, ActivityEntry{Action: models.ActionCreation, ActorID: 3, ClientID: 7, FormID: ptrUint(4)})
	require.NoError(t, err)
	require.Equal(t, "corr-1", first.CorrelationID)
	require.Empty(t, first.PrevHash)
	require.NotEmpty(t, first.RecordHash)
	require.Equal(t, time.UTC, first.ActionDate.Location())
	require.Zero(t, first.ActionDate.Nanosecond()%1000)

	second, err := stack.activity.RecordLog(ctx, ActivityEntry{Action: models.ActionModification, ActorID: 3, ClientID: 7, FormID: ptrUint(4)})
	require.NoError(t, err)
	require.Equal(t, first.RecordHash, second.PrevHash)

	_, err = stack.activity.RecordLog(ctx, ActivityEntry{Action: "Archived", ActorID: 3, ClientID: 7, FormID: ptrUint(4)})
	require.True(t, apperror.IsValidation(err))
}

func TestRecordLogPropagatesPersistenceFailure(t *testing.T) {
	errDisk := errors.New("disk full")
	stack := newServiceStack(t, withActivityRepo(failingActivityRepo{err: errDisk}))

	_, err := stack.activity.RecordLog(context.Background(), ActivityEntry{Action: models.ActionDeletion, ActorID: 1, ClientID: 7, DocumentID: ptrUint(1)})
	require.ErrorIs(t, err, errDisk)
}

func seedLogs(t *testing.T, stack *serviceStack, clientID uint, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := stack.activity.RecordLog(context.Background(), ActivityEntry{
			Action:     models.ActionVisualisation,
			ActorID:    uint(i + 1),
			ClientID:   clientID,
			DocumentID: ptrUint(uint(i + 1)),
		})
		require.NoError(t, err)
	}
}

func TestListForClientIsNewestFirst(t *testing.T) {
	stack := newServiceStack(t)
	seedLogs(t, stack, 7, 4)
	seedLogs(t, stack, 8, 1)

	logs, err := stack.activity.ListForClient(context.Background(), adminPrincipal, 7)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	for i := 1; i < len(logs); i++ {
		require.Greater(t, logs[i-1].ID, logs[i].ID)
	}

	_, err = stack.activity.ListForClient(context.Background(), clientPrincipal, 8)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPaginateForClient(t *testing.T) {
	stack := newServiceStack(t)
	seedLogs(t, stack, 7, 20)
	ctx := context.Background()

	seen := map[uint]struct{}{}
	for page := 1; page <= 3; page++ {
		result, err := stack.activity.PaginateForClient(ctx, clientPrincipal, 7, page, 8)
		require.NoError(t, err)
		require.Equal(t, 3, result.PageCount)
		for _, entry := range result.Logs {
			seen[entry.ID] = struct{}{}
		}
	}
	require.Len(t, seen, 20)

	beyond, err := stack.activity.PaginateForClient(ctx, clientPrincipal, 7, 4, 8)
	require.NoError(t, err)
	require.Empty(t, beyond.Logs)
	require.Equal(t, 3, beyond.PageCount)

	_, err = stack.activity.PaginateForClient(ctx, clientPrincipal, 7, 0, 8)
	require.True(t, apperror.IsInvalidArgument(err))
	_, err = stack.activity.PaginateForClient(ctx, clientPrincipal, 7, 1, 0)
	require.True(t, apperror.IsInvalidArgument(err))

	empty, err := stack.activity.PaginateForClient(ctx, adminPrincipal, 99, 1, 8)
	require.NoError(t, err)
	require.Zero(t, empty.PageCount)
	require.Empty(t, empty.Logs)
}

func TestActivityListingCacheIsInvalidatedByNewEntries(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	stack := newServiceStack(t, withActivityOptions(ActivityServiceOptions{Cache: redisClient, CacheTTL: time.Minute}))
	ctx := context.Background()
	seedLogs(t, stack, 7, 2)

	first, err := stack.activity.ListForClient(ctx, adminPrincipal, 7)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Served from cache even though the table changed underneath.
	require.NoError(t, stack.db.Exec("DELETE FROM activity_logs WHERE client_id = ?", 7).Error)
	cached, err := stack.activity.ListForClient(ctx, adminPrincipal, 7)
	require.NoError(t, err)
	require.Len(t, cached, 2)

	seedLogs(t, stack, 7, 1)
	fresh, err := stack.activity.ListForClient(ctx, adminPrincipal, 7)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	version, err := redisClient.Get(ctx, "docflow:activity:v1:7:version").Result()
	require.NoError(t, err)
	require.Equal(t, "3", version)
}

func TestCreateActivityLogOverride(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()
	form := seedForm(t, stack, false, false)

	payload := dto.ActivityLogCreateRequest{Action: "signature", ClientID: 7, FormID: ptrUint(form.ID)}

	payload.ActorIsAdmin = ptrBool(true)
	_, err := stack.activity.Create(ctx, clientPrincipal, payload)
	require.ErrorIs(t, err, ErrOverrideNotPermitted)

	payload.ActorIsAdmin = ptrBool(false)
	entry, err := stack.activity.Create(ctx, clientPrincipal, payload)
	require.NoError(t, err)
	require.False(t, entry.ActorIsAdmin)
	require.Equal(t, clientPrincipal.ID, entry.ActorID)
	require.Equal(t, string(models.ActionSignature), entry.Action)

	payload.ActorIsAdmin = nil
	payload.ActorID = clientPrincipal.ID
	entry, err = stack.activity.Create(ctx, adminPrincipal, payload)
	require.NoError(t, err)
	require.True(t, entry.ActorIsAdmin)

	payload.ActorIsAdmin = ptrBool(false)
	entry, err = stack.activity.Create(ctx, adminPrincipal, payload)
	require.NoError(t, err)
	require.False(t, entry.ActorIsAdmin)
}

func TestCreateActivityLogChecksTenantAndOwnership(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()
	form := seedForm(t, stack, false, false)

	_, err := stack.activity.Create(ctx, clientPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded", ClientID: 8, FormID: ptrUint(form.ID)})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = stack.activity.Create(ctx, clientPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded", ActorID: 99, ClientID: 7, FormID: ptrUint(form.ID)})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = stack.activity.Create(ctx, adminPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded", ClientID: 8, FormID: ptrUint(form.ID)})
	require.True(t, apperror.IsValidation(err))

	_, err = stack.activity.Create(ctx, adminPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded", ClientID: 7, DocumentID: ptrUint(404)})
	require.ErrorIs(t, err, ErrArtifactNotFound)

	_, err = stack.activity.Create(ctx, adminPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded", ClientID: 7})
	require.True(t, apperror.IsValidation(err))

	_, err = stack.activity.Create(ctx, adminPrincipal, dto.ActivityLogCreateRequest{Action: "Loaded"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()
	seedLogs(t, stack, 7, 5)

	result, err := stack.activity.VerifyChain(ctx, 7)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 5, result.Entries)

	entries := stack.entries(t, 7)
	target := entries[2].ID
	// Raw SQL bypasses the immutability hooks, as an attacker with database access would.
	require.NoError(t, stack.db.Exec("UPDATE activity_logs SET actor_id = ? WHERE id = ?", 999, target).Error)

	result, err = stack.activity.VerifyChain(ctx, 7)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotNil(t, result.BrokenAt)
	require.Equal(t, target, *result.BrokenAt)

	_, err = stack.activity.VerifyChain(ctx, 0)
	require.True(t, apperror.IsInvalidArgument(err))
}

func TestVerifyChainCoversCorrelationID(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()
	seedLogs(t, stack, 7, 3)

	target := stack.entries(t, 7)[1].ID
	require.NoError(t, stack.db.Exec("UPDATE activity_logs SET correlation_id = ? WHERE id = ?", "rewritten", target).Error)

	result, err := stack.activity.VerifyChain(ctx, 7)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, target, *result.BrokenAt)
	require.Equal(t, "record hash does not match the entry contents", result.Reason)
}

func TestRecordLogPublishesToStream(t *testing.T) {
	stream := NewAuditStream(nil, nil, "", testLogger())
	stack := newServiceStack(t, withActivityOptions(ActivityServiceOptions{Stream: stream}))

	events, cancel := stream.Subscribe(7)
	defer cancel()

	recorded, err := stack.activity.RecordLog(context.Background(), ActivityEntry{Action: models.ActionLoaded, ActorID: 2, ClientID: 7, DocumentID: ptrUint(3)})
	require.NoError(t, err)

	select {
	case event := <-events:
		require.Equal(t, recorded.ID, event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected activity event")
	}
}
