package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProperty() PropertyRecord {
	return PropertyRecord{
		Address:        "123 Main St",
		City:           "Austin",
		State:          "TX",
		Zip:            "78701",
		EstimatedValue: 300000,
	}
}

func TestBuildRequiresAddress(t *testing.T) {
	p := validProperty()
	p.Address = ""
	_, err := Build(p, nil, nil, "")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "missing_required_field", ve.Reason)
	assert.Equal(t, "address", ve.Field)
}

func TestBuildRequiresPositiveEstimatedValue(t *testing.T) {
	p := validProperty()
	p.EstimatedValue = 0
	_, err := Build(p, nil, nil, "")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "missing_required_field", ve.Reason)
}

func TestBuildComputesAverages(t *testing.T) {
	comps := []ComparableRecord{
		{Address: "1 Oak St", Price: 285000, PricePerSquareFoot: 190},
		{Address: "2 Oak St", Price: 310000, PricePerSquareFoot: 210},
	}
	m, err := Build(validProperty(), comps, nil, "")
	require.NoError(t, err)

	require.NotNil(t, m.AveragePrice)
	assert.Equal(t, 297500.0, *m.AveragePrice)
	require.NotNil(t, m.AveragePricePerSqft)
	assert.Equal(t, 200.0, *m.AveragePricePerSqft)
}

func TestBuildNoComparablesYieldsNilAverages(t *testing.T) {
	m, err := Build(validProperty(), nil, nil, "")
	require.NoError(t, err)
	assert.Nil(t, m.AveragePrice)
	assert.Nil(t, m.AveragePricePerSqft)
	assert.False(t, m.HasComparables())
}

func TestBuildPreservesComparableOrder(t *testing.T) {
	comps := []ComparableRecord{
		{Address: "far", Price: 100, DistanceMiles: 9},
		{Address: "near", Price: 900, DistanceMiles: 0.1},
	}
	m, err := Build(validProperty(), comps, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "far", m.Comparables[0].Address)
	assert.Equal(t, "near", m.Comparables[1].Address)
}

func TestBuildCopiesInputs(t *testing.T) {
	comps := []ComparableRecord{{Address: "1 Oak St", Price: 100000}}
	narrative := &NarrativeBlock{KeyFeatures: []string{"pool"}}
	m, err := Build(validProperty(), comps, narrative, "")
	require.NoError(t, err)

	comps[0].Address = "mutated"
	narrative.KeyFeatures[0] = "mutated"

	assert.Equal(t, "1 Oak St", m.Comparables[0].Address)
	assert.Equal(t, "pool", m.Narrative.KeyFeatures[0])
}
