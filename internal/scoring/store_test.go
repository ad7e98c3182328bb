// internal/scoring/store_test.go
package scoring

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-engine/internal/common/logger"
)

func TestModelStore_Production_LoadsAndCaches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	payload, err := json.Marshal(logisticArtifact())
	require.NoError(t, err)

	// One registry query, however many lookups follow.
	mock.ExpectQuery("SELECT model_id, artifact FROM model_registry").
		WithArgs("scheme-pension").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "artifact"}).
			AddRow("model-pension-v3", payload))

	store := NewModelStore(db, logger.NewTestLogger(t))

	first, err := store.Production(context.Background(), "scheme-pension")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "model-pension-v3", first.ID)

	second, err := store.Production(context.Background(), "scheme-pension")
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModelStore_Production_MissIsCachedAsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT model_id, artifact FROM model_registry").
		WithArgs("scheme-housing").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "artifact"}))

	store := NewModelStore(db, logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		artifact, err := store.Production(context.Background(), "scheme-housing")
		require.NoError(t, err)
		assert.Nil(t, artifact)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModelStore_Production_InvalidArtifactRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	broken := logisticArtifact()
	broken.Coefficients = []float64{1}
	payload, err := json.Marshal(broken)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT model_id, artifact FROM model_registry").
		WithArgs("scheme-pension").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "artifact"}).
			AddRow("model-pension-v3", payload))

	store := NewModelStore(db, logger.NewTestLogger(t))
	_, err = store.Production(context.Background(), "scheme-pension")
	assert.Error(t, err)
}

func TestModelStore_Forget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	payload, err := json.Marshal(logisticArtifact())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT model_id, artifact FROM model_registry").
		WithArgs("scheme-pension").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "artifact"}).
			AddRow("model-pension-v3", payload))
	mock.ExpectQuery("SELECT model_id, artifact FROM model_registry").
		WithArgs("scheme-pension").
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "artifact"}).
			AddRow("model-pension-v4", payload))

	store := NewModelStore(db, logger.NewTestLogger(t))

	_, err = store.Production(context.Background(), "scheme-pension")
	require.NoError(t, err)

	store.Forget("scheme-pension")

	again, err := store.Production(context.Background(), "scheme-pension")
	require.NoError(t, err)
	require.NotNil(t, again)

	assert.NoError(t, mock.ExpectationsWereMet())
}
