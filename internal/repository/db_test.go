package repository

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$3, $4, $5", placeholders(3, 3))
	assert.Equal(t, "", placeholders(1, 0))
}

func TestConstraintViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "categories_name_key"}
	wrapped := fmt.Errorf("exec: %w", pgErr)

	assert.True(t, constraintViolation(wrapped, pgUniqueViolation, "categories_name_key"))
	assert.False(t, constraintViolation(wrapped, pgUniqueViolation, "users_email_key"))
	assert.False(t, constraintViolation(wrapped, pgForeignKeyViolation, "categories_name_key"))
	assert.False(t, constraintViolation(errors.New("boom"), pgUniqueViolation, "categories_name_key"))
}

func TestProductFilterOffset(t *testing.T) {
	tests := []struct {
		name   string
		filter ProductFilter
		want   int
	}{
		{"first page", ProductFilter{Page: 1, PageSize: 10}, 0},
		{"second page", ProductFilter{Page: 2, PageSize: 5}, 5},
		{"page below one", ProductFilter{Page: -4, PageSize: 10}, 0},
		{"page past int range", ProductFilter{Page: math.MaxInt, PageSize: 10}, math.MaxInt},
		{"largest exact offset", ProductFilter{Page: math.MaxInt/10 + 1, PageSize: 10}, math.MaxInt / 10 * 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Offset())
		})
	}
}

func TestRecoverSetup(t *testing.T) {
	teardown, err := recoverSetup(func() (teardownFunc, error) {
		panic("rootless Docker not found")
	})
	assert.Nil(t, teardown)
	assert.ErrorContains(t, err, "rootless Docker not found")

	setupErr := errors.New("pull failed")
	teardown, err = recoverSetup(func() (teardownFunc, error) {
		return nil, setupErr
	})
	assert.Nil(t, teardown)
	assert.ErrorIs(t, err, setupErr)
}
