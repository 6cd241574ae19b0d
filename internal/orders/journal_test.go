package orders

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupJournal(t *testing.T) *Journal {
	if testing.Short() {
		t.Skip("journal tests need docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.Connect(ctx, dsn, "storefront-test")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	j := &Journal{DB: pool}
	require.NoError(t, j.EnsureSchema(ctx))
	return j
}

func TestJournal_RecordDedupes(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	ev := WebhookEvent{
		EventID:      "evnt_1",
		Key:          "charge.complete",
		ObjectType:   "charge",
		ChargeID:     "chrg_1",
		ChargeStatus: "successful",
		ReceivedAt:   time.Now().UTC(),
		Payload:      []byte(`{"object":"event","id":"evnt_1"}`),
	}
	inserted, err := j.Record(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = j.Record(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestJournal_MarkProcessedAndRecent(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	for i, id := range []string{"evnt_a", "evnt_b"} {
		_, err := j.Record(ctx, WebhookEvent{
			EventID:    id,
			Key:        "charge.complete",
			ObjectType: "charge",
			ChargeID:   "chrg_" + id,
			ReceivedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	require.NoError(t, j.MarkProcessed(ctx, "evnt_b", "order-1", StatusSuccessful))

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "evnt_b", all[0].EventID)
	assert.Equal(t, StatusSuccessful, all[0].Outcome)
	assert.NotNil(t, all[0].ProcessedAt)
	assert.Nil(t, all[1].ProcessedAt)

	byOrder, err := j.Recent(ctx, "order-1", 10)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, "chrg_evnt_b", byOrder[0].ChargeID)
}
