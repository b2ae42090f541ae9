package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StefanHaberl/VoiceFox/app/models"
)

func createTestConversion(t *testing.T, repo ConversionRepository) *models.VoiceConversion {
	t.Helper()
	conversion := &models.VoiceConversion{
		UUID:         "11111111-1111-4111-8111-111111111111",
		UserID:       1,
		AudioFileID:  1,
		VoiceModelID: 1,
		Status:       models.ConversionStatusPendingPreprocessing,
	}
	require.NoError(t, repo.Create(conversion))
	require.NotZero(t, conversion.ID)
	return conversion
}

func TestConversionTryClaim_AtMostOneWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	created := createTestConversion(t, repo)

	// two workers observe the row at the same token
	first, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	require.Equal(t, first.LockVersion, second.LockVersion)

	won, err := repo.TryClaim(first, map[string]interface{}{
		"status": models.ConversionStatusQueued,
	})
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.TryClaim(second, map[string]interface{}{
		"status": models.ConversionStatusFailed,
	})
	require.NoError(t, err)
	assert.False(t, won, "stale token must lose the claim")

	current, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversionStatusQueued, current.Status, "loser must not overwrite the winner's state")
	assert.Equal(t, created.LockVersion+1, current.LockVersion, "exactly one claim bumps the token")
}

func TestConversionTryClaim_WinnerKeepsWinning(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	created := createTestConversion(t, repo)

	won, err := repo.TryClaim(created, map[string]interface{}{
		"status": models.ConversionStatusQueued,
	})
	require.NoError(t, err)
	require.True(t, won)

	// the in-memory token advanced with the claim, so the same worker's
	// follow-up write goes through without a re-read
	won, err = repo.TryClaim(created, map[string]interface{}{
		"status": models.ConversionStatusProcessing,
	})
	require.NoError(t, err)
	assert.True(t, won)

	current, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversionStatusProcessing, current.Status)
	assert.Equal(t, created.LockVersion, current.LockVersion)
}
