package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/models"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plain path gets pragmas",
			path: "./data/leadflow.db",
			want: "./data/leadflow.db?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on",
		},
		{
			name: "explicit query is kept",
			path: "file:test.db?mode=memory",
			want: "file:test.db?mode=memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDSN(tt.path))
		})
	}
}

func TestNewInMemoryClient_Migrates(t *testing.T) {
	client, err := NewInMemoryClient(t.Name())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	for _, table := range []any{
		&models.Lead{},
		&models.StatsCounter{},
		&models.EmailAccount{},
		&models.EmailTemplate{},
		&models.EmailCampaign{},
		&models.EmailSend{},
		&models.EmailEvent{},
	} {
		assert.True(t, client.DB.Migrator().HasTable(table))
	}

	assert.Equal(t, 1, client.Stats().MaxOpenConnections)
}

func TestLead_JSONColumnsRoundTrip(t *testing.T) {
	client, err := NewInMemoryClient(t.Name())
	require.NoError(t, err)
	defer client.Close()

	lead := &models.Lead{
		Company: "Café Sonne",
		Tags:    []string{"mittag", "terrasse"},
		History: []models.HistoryEntry{{Action: "Erstellt", Details: "Lead angelegt"}},
	}
	require.NoError(t, client.DB.Create(lead).Error)

	var got models.Lead
	require.NoError(t, client.DB.First(&got, lead.ID).Error)
	assert.Equal(t, []string{"mittag", "terrasse"}, got.Tags)
	require.Len(t, got.History, 1)
	assert.Equal(t, "Erstellt", got.History[0].Action)
}
