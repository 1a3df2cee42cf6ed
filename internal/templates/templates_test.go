package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/database/dbtest"
)

func str(s string) *string { return &s }

func TestCreateDefaultsMarket(t *testing.T) {
	store := NewStore(dbtest.Open(t, &Template{}))

	tpl, err := store.Create(context.Background(), "owner-1", CreateTemplateInput{
		TemplateName: "London breakout",
		SetupType:    str("breakout"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMarket, tpl.Market)
	assert.Equal(t, "breakout", *tpl.SetupType)
	assert.Nil(t, tpl.RiskRewardRatio)

	_, err = store.Create(context.Background(), "owner-1", CreateTemplateInput{TemplateName: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateTouchesOnlySuppliedFields(t *testing.T) {
	store := NewStore(dbtest.Open(t, &Template{}))
	ctx := context.Background()
	ratio := 2.5

	tpl, err := store.Create(ctx, "owner-1", CreateTemplateInput{
		TemplateName:    "NY reversal",
		Market:          "Silver",
		Notes:           str("wait for sweep"),
		RiskRewardRatio: &ratio,
	})
	require.NoError(t, err)

	newRatio := 3.0
	updated, err := store.Update(ctx, "owner-1", tpl.ID, TemplatePatch{
		Notes:           str("wait for sweep and displacement"),
		RiskRewardRatio: &newRatio,
	})
	require.NoError(t, err)

	assert.Equal(t, "NY reversal", updated.TemplateName)
	assert.Equal(t, "Silver", updated.Market)
	assert.Equal(t, "wait for sweep and displacement", *updated.Notes)
	assert.Equal(t, 3.0, *updated.RiskRewardRatio)
	assert.Nil(t, updated.Tags)

	same, err := store.Update(ctx, "owner-1", tpl.ID, TemplatePatch{})
	require.NoError(t, err)
	assert.Equal(t, updated.Notes, same.Notes)

	_, err = store.Update(ctx, "owner-1", tpl.ID, TemplatePatch{TemplateName: str("")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTemplatesAreOwnerScoped(t *testing.T) {
	store := NewStore(dbtest.Open(t, &Template{}))
	ctx := context.Background()

	tpl, err := store.Create(ctx, "owner-1", CreateTemplateInput{TemplateName: "mine"})
	require.NoError(t, err)

	_, err = store.Get(ctx, "owner-2", tpl.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.Update(ctx, "owner-2", tpl.ID, TemplatePatch{Notes: str("hijack")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "owner-2", tpl.ID), apperr.ErrNotFound)

	list, err := store.List(ctx, "owner-2", database.NewPage(0, 0))
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Delete(ctx, "owner-1", tpl.ID))
	_, err = store.Get(ctx, "owner-1", tpl.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
