package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "nse-pulse/database/models_pkg"
)

func TestRankImbalance(t *testing.T) {
	var secs []models.PreopenSecurity
	bidLabels := []string{"BID", "bid", "BUY", "Buy"}
	for i := 0; i < 13; i++ {
		secs = append(secs, models.PreopenSecurity{
			Symbol: fmt.Sprintf("B%02d", i),
			SpreadAnalysis: &models.SpreadAnalysis{
				VolumeDominantSide:     bidLabels[i%len(bidLabels)],
				VolumeImbalancePercent: float64(i * 7),
			},
		})
	}
	askLabels := []string{"ASK", "sell"}
	for i := 0; i < 12; i++ {
		secs = append(secs, models.PreopenSecurity{
			Symbol: fmt.Sprintf("A%02d", i),
			SpreadAnalysis: &models.SpreadAnalysis{
				VolumeDominantSide:     askLabels[i%len(askLabels)],
				VolumeImbalancePercent: float64(90 - i*5),
			},
		})
	}
	secs = append(secs,
		models.PreopenSecurity{Symbol: "NOSPREAD"},
		models.PreopenSecurity{Symbol: "NEUTRAL", SpreadAnalysis: &models.SpreadAnalysis{VolumeDominantSide: "NEUTRAL", VolumeImbalancePercent: 99}},
		models.PreopenSecurity{Symbol: "EMPTY", SpreadAnalysis: &models.SpreadAnalysis{VolumeImbalancePercent: 99}},
	)

	got := RankImbalance(secs)

	require.Len(t, got.BidDominant, ImbalanceTopN)
	require.Len(t, got.AskDominant, ImbalanceTopN)
	for _, side := range [][]ImbalanceEntry{got.BidDominant, got.AskDominant} {
		for i := 1; i < len(side); i++ {
			assert.GreaterOrEqual(t, side[i-1].VolumeImbalancePercent, side[i].VolumeImbalancePercent)
		}
	}
	assert.Equal(t, "B12", got.BidDominant[0].Symbol)
	assert.Equal(t, "BID", got.BidDominant[0].Side)
	assert.Equal(t, "A00", got.AskDominant[0].Symbol)
	assert.Equal(t, "ASK", got.AskDominant[0].Side)

	assert.Equal(t, 13, got.Summary.TotalBidDominant)
	assert.Equal(t, 12, got.Summary.TotalAskDominant)
	// bids: 56, 63, 70, 77, 84 are > 50
	assert.Equal(t, 5, got.Summary.StrongBidDominant)
	// asks: 90..55 (eight values) are > 50
	assert.Equal(t, 8, got.Summary.StrongAskDominant)
}

func TestRankImbalanceTiesBySymbol(t *testing.T) {
	secs := []models.PreopenSecurity{
		{Symbol: "ZED", SpreadAnalysis: &models.SpreadAnalysis{VolumeDominantSide: "BID", VolumeImbalancePercent: 40}},
		{Symbol: "ABC", SpreadAnalysis: &models.SpreadAnalysis{VolumeDominantSide: "BID", VolumeImbalancePercent: 40}},
	}
	got := RankImbalance(secs)
	require.Len(t, got.BidDominant, 2)
	assert.Equal(t, "ABC", got.BidDominant[0].Symbol)
	assert.Empty(t, got.AskDominant)
	assert.NotNil(t, got.AskDominant)
}

func TestDominantSide(t *testing.T) {
	assert.Equal(t, "BID", DominantSide(" buy "))
	assert.Equal(t, "ASK", DominantSide("Sell"))
	assert.Equal(t, "", DominantSide("BALANCED"))
}
