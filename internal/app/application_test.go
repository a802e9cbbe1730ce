package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvvdotnet/crusades/internal/app/auth"
	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/logging"
)

func testTokens(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager("application-test-secret-0123456789", 0)
	require.NoError(t, err)
	return m
}

func TestNewRequiresTokens(t *testing.T) {
	_, err := New(Stores{}, Options{}, logging.NewDiscard())
	assert.Error(t, err)
}

func TestNewDefaultsToMemory(t *testing.T) {
	application, err := New(Stores{}, Options{Tokens: testTokens(t), PostHandle: "gymrats"}, logging.NewDiscard())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)

	seeded, err := application.Crusades.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Len(t, seeded, len(crusade.Defaults()))

	active, err := application.Crusades.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, len(seeded))

	names := make([]string, 0)
	for _, d := range application.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"auth", "crusades", "progress", "leaderboard", "photos"}, names)
}

func TestNewUsesCatalog(t *testing.T) {
	catalog := []crusade.Crusade{{Name: "Plank Month", Description: "Hold it", Type: crusade.TypeFitness, IsActive: true}}
	application, err := New(Stores{}, Options{Tokens: testTokens(t), Catalog: catalog}, logging.NewDiscard())
	require.NoError(t, err)

	seeded, err := application.Crusades.SeedDefaults(context.Background())
	require.NoError(t, err)
	require.Len(t, seeded, 1)
	assert.Equal(t, "Plank Month", seeded[0].Name)
}
