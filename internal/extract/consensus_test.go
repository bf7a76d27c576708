package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepulse/pricewatch/internal/model"
)

func TestResolveConsensusEmpty(t *testing.T) {
	assert.Nil(t, ResolveConsensus(nil))
	assert.Nil(t, ResolveConsensus([]model.PriceCandidate{}))
}

func TestResolveConsensusSingleCandidate(t *testing.T) {
	got := ResolveConsensus([]model.PriceCandidate{
		{Source: model.SourceElements, Price: 1299.50},
	})
	require.NotNil(t, got)
	assert.Equal(t, 1299.50, *got)
}

func TestResolveConsensusModalValue(t *testing.T) {
	got := ResolveConsensus([]model.PriceCandidate{
		{Source: model.SourceStructuredData, Price: 999},
		{Source: model.SourceElements, Price: 999},
		{Source: model.SourceFreeText, Price: 1050},
	})
	require.NotNil(t, got)
	assert.Equal(t, 999.0, *got)
}

func TestResolveConsensusRoundsBeforeVoting(t *testing.T) {
	// 999.00 and 999.49 agree once rounded to whole units
	got := ResolveConsensus([]model.PriceCandidate{
		{Source: model.SourceElements, Price: 999.00},
		{Source: model.SourcePageMeta, Price: 999.49},
		{Source: model.SourceFreeText, Price: 1050},
	})
	require.NotNil(t, got)
	assert.Equal(t, 999.0, *got)
}

func TestResolveConsensusTieBreaksOnSourceTrust(t *testing.T) {
	got := ResolveConsensus([]model.PriceCandidate{
		{Source: model.SourceFreeText, Price: 1050},
		{Source: model.SourceStructuredData, Price: 999},
	})
	require.NotNil(t, got)
	assert.Equal(t, 999.0, *got)
}

func TestResolveConsensusFiltersImplausible(t *testing.T) {
	got := ResolveConsensus([]model.PriceCandidate{
		{Source: model.SourceElements, Price: 0.2},
		{Source: model.SourceFreeText, Price: 9_999_999},
	})
	assert.Nil(t, got)
}
