package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smarthub/internal/migrate"
	"smarthub/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), filepath.Join(t.TempDir(), "rules.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	d.migrator = &migrate.Migrator{Loc: time.UTC}
	return d
}

func sampleRule() models.RuleDescription {
	onValue := true
	return models.RuleDescription{
		Name:    "porch light",
		Enabled: true,
		Trigger: models.TriggerDescription{
			Type:     models.BooleanTriggerType,
			Property: &models.PropertyDescription{Type: models.TypeBoolean, Thing: "motion", ID: "detected"},
			OnValue:  &onValue,
		},
		Effect: models.EffectDescription{
			Type:     models.SetEffectType,
			Property: &models.PropertyDescription{Type: models.TypeBoolean, Thing: "porch", ID: "on"},
			Value:    true,
		},
	}
}

func TestDB_CRUD(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	id, err := d.CreateRule(ctx, sampleRule())
	require.NoError(t, err)
	assert.Positive(t, id)

	rules, err := d.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	want := sampleRule()
	want.ID = id
	assert.Equal(t, want, rules[0])

	updated := sampleRule()
	updated.Enabled = false
	require.NoError(t, d.UpdateRule(ctx, id, updated))
	rules, err = d.GetRules(ctx)
	require.NoError(t, err)
	assert.False(t, rules[0].Enabled)

	require.NoError(t, d.DeleteRule(ctx, id))
	rules, err = d.GetRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestDB_UnknownID(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	assert.ErrorIs(t, d.UpdateRule(ctx, 42, sampleRule()), ErrNotFound)
	assert.ErrorIs(t, d.DeleteRule(ctx, 42), ErrNotFound)
}

func TestDB_IDsIncrease(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	first, err := d.CreateRule(ctx, sampleRule())
	require.NoError(t, err)
	second, err := d.CreateRule(ctx, sampleRule())
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestDB_GetRulesMigratesAndWritesBack(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	legacy := `{"enabled":true,"trigger":{"type":"BooleanTrigger","onValue":true,` +
		`"property":{"name":"on","type":"boolean","href":"/things/light1/properties/on"}},` +
		`"effect":{"type":"NotificationEffect","message":"light on"}}`
	id, err := d.backend.insert(ctx, legacy)
	require.NoError(t, err)

	rules, err := d.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
	assert.Equal(t, &models.PropertyDescription{Type: models.TypeBoolean, Thing: "light1", ID: "on"}, rules[0].Trigger.Property)

	stored, err := d.backend.all(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0].description, "href")
	assert.Contains(t, stored[0].description, `"thing":"light1"`)
}

func TestDB_GetRulesSkipsUnreadableRows(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	_, err := d.backend.insert(ctx, "not json")
	require.NoError(t, err)
	_, err = d.backend.insert(ctx, `{"trigger": "nope"}`)
	require.NoError(t, err)
	good, err := d.CreateRule(ctx, sampleRule())
	require.NoError(t, err)

	rules, err := d.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, good, rules[0].ID)
}

func TestDB_MigrateReportsRewrites(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	_, err := d.backend.insert(ctx, `{"trigger":{"type":"TimeTrigger","time":"08:15"},"effect":{"type":"NotificationEffect","message":"m"}}`)
	require.NoError(t, err)
	_, err = d.CreateRule(ctx, sampleRule())
	require.NoError(t, err)

	n, err := d.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rules, err := d.GetRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, "08:15", rules[0].Trigger.Time)
	require.NotNil(t, rules[0].Trigger.Localized)
	assert.True(t, *rules[0].Trigger.Localized)
}

func TestDB_CurrentTimeTriggersAreNotMigrated(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	d.migrator = &migrate.Migrator{Loc: time.FixedZone("UTC+2", 2*60*60)}

	for _, localized := range []bool{false, true} {
		localized := localized
		rule := sampleRule()
		rule.Trigger = models.TriggerDescription{Type: models.TimeTriggerType, Time: "07:30", Localized: &localized}
		_, err := d.CreateRule(ctx, rule)
		require.NoError(t, err)
	}

	n, err := d.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rules, err := d.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	for i, want := range []bool{false, true} {
		assert.Equal(t, "07:30", rules[i].Trigger.Time)
		require.NotNil(t, rules[i].Trigger.Localized)
		assert.Equal(t, want, *rules[i].Trigger.Localized)
	}
}
