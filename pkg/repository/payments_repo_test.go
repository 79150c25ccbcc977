package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/payportal/pkg/domain"
)

var paymentColumnNames = []string{
	"id", "owner_id", "amount_cents", "currency", "provider", "payee_account", "swift_code",
	"status", "verified_by", "verified_at", "created_at", "updated_at",
}

func newPaymentsRepo(t *testing.T) (*PaymentsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPaymentsRepository(db), mock
}

func TestPaymentsRepository_Transition(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	owner := uuid.New()
	verifier := uuid.New()
	now := time.Now()

	verify := domain.PaymentTransition{
		PaymentID:  id,
		From:       domain.PaymentPending,
		To:         domain.PaymentProcessing,
		VerifiedBy: &verifier,
		At:         now,
	}

	t.Run("pending to processing", func(t *testing.T) {
		repo, mock := newPaymentsRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
			WithArgs(id, "pending", "processing", verifier.String(), now).
			WillReturnRows(sqlmock.NewRows(paymentColumnNames).AddRow(
				id.String(), owner.String(), int64(10000), "USD", "SWIFT", "123456789", "ABCDUS33",
				"processing", verifier.String(), now, now, now,
			))

		p, err := repo.Transition(ctx, verify)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentProcessing, p.Status)
		require.NotNil(t, p.VerifiedBy)
		assert.Equal(t, verifier, *p.VerifiedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong status is a conflict", func(t *testing.T) {
		repo, mock := newPaymentsRepo(t)
		mock.ExpectQuery("UPDATE payments SET status").
			WillReturnRows(sqlmock.NewRows(paymentColumnNames))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM payments WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))

		_, err := repo.Transition(ctx, verify)
		var conflict *domain.StateConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, domain.PaymentProcessing, conflict.Current)
		assert.Equal(t, domain.PaymentPending, conflict.Required)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown payment", func(t *testing.T) {
		repo, mock := newPaymentsRepo(t)
		mock.ExpectQuery("UPDATE payments SET status").
			WillReturnRows(sqlmock.NewRows(paymentColumnNames))
		mock.ExpectQuery("SELECT status FROM payments").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Transition(ctx, verify)
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	t.Run("illegal transition never reaches the database", func(t *testing.T) {
		repo, mock := newPaymentsRepo(t)
		_, err := repo.Transition(ctx, domain.PaymentTransition{
			PaymentID: id, From: domain.PaymentCompleted, To: domain.PaymentPending, At: now,
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentsRepository_ListByStatus(t *testing.T) {
	repo, mock := newPaymentsRepo(t)
	now := time.Now()
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows(paymentColumnNames).
			AddRow(first.String(), uuid.NewString(), int64(100), "USD", "SWIFT", "123456", "ABCDUS33", "pending", nil, nil, now, now).
			AddRow(second.String(), uuid.NewString(), int64(200), "EUR", "SWIFT", "654321", "ABCDDEFF", "pending", nil, nil, now.Add(time.Second), now))

	payments, err := repo.ListByStatus(context.Background(), domain.PaymentPending)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, first, payments[0].ID)
	assert.Equal(t, second, payments[1].ID)
	assert.Nil(t, payments[0].VerifiedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentsRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newPaymentsRepo(t)
	mock.ExpectQuery("FROM payments WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
