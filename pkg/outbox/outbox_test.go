package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-Hooson/Bonsai-Biz/pkg/contracts"
)

type recordingPublisher struct {
	got    []Record
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, rec Record) error {
	if rec.EventID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, rec)
	return nil
}

var fetchSQL = regexp.QuoteMeta(`SELECT id, event_id, topic, key, payload, created_at FROM outbox`)

func pendingRows(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "event_id", "topic", "key", "payload", "created_at"}).
		AddRow(int64(1), "evt-1", "bonsai.orders", "order-1", []byte(`{"type":"order.completed"}`), now).
		AddRow(int64(2), "evt-2", "bonsai.orders", "order-2", []byte(`{"type":"order.completed"}`), now)
}

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := contracts.NewEvent(contracts.EventOrderCompleted, "order-1", map[string]any{"payment_transaction_id": "pi_1"})
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox`)).
		WithArgs(evt.EventID, "bonsai.orders", "order-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, Insert(context.Background(), mock, "bonsai.orders", evt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelay_RunOncePublishesInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(fetchSQL).WithArgs(10).WillReturnRows(pendingRows(time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET sent_at`)).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET sent_at`)).WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pub := &recordingPublisher{}
	n, err := (&Relay{DB: mock, Publisher: pub, Batch: 10}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.got, 2)
	assert.Equal(t, "evt-1", pub.got[0].EventID)
	assert.Equal(t, "order-2", pub.got[1].Key)
	assert.JSONEq(t, `{"type":"order.completed"}`, string(pub.got[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelay_StopsAtFirstFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(fetchSQL).WithArgs(100).WillReturnRows(pendingRows(time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET sent_at`)).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pub := &recordingPublisher{failOn: "evt-2"}
	n, err := (&Relay{DB: mock, Publisher: pub}).RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-2")
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelay_FetchError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(fetchSQL).WillReturnError(errors.New("connection reset"))

	_, err = (&Relay{DB: mock, Publisher: &recordingPublisher{}}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "fetch pending")
}
