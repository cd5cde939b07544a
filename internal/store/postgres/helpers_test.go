package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

func TestWrapClassifiesDriverErrors(t *testing.T) {
	err := wrap("get hold h1", pgx.ErrNoRows)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	err = wrap("create hold h2", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = wrap("get bid nope", &pgconn.PgError{Code: "22P02"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	boom := errors.New("boom")
	err = wrap("list", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestPaginateAndWindow(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := window("SELECT 1 FROM bids WHERE buyer_id = $1", []any{"b1"}, domain.ListOpts{Since: &since})
	q, args = paginate(q, args, domain.ListOpts{Limit: 10, Offset: 20})

	assert.Equal(t, "SELECT 1 FROM bids WHERE buyer_id = $1 AND created_at >= $2 LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"b1", since, 10, 20}, args)

	q, args = paginate("SELECT 1", nil, domain.ListOpts{})
	assert.Equal(t, "SELECT 1", q)
	assert.Empty(t, args)
}

func TestNullableConversions(t *testing.T) {
	assert.False(t, nullDecimal(nil).Valid)
	d := decimal.RequireFromString("12.50")
	nd := nullDecimal(&d)
	assert.True(t, nd.Valid)
	assert.True(t, decimalPtr(nd).Equal(d))
	assert.Nil(t, decimalPtr(decimal.NullDecimal{}))

	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", *nullString("x"))
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
