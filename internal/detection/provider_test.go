package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tumourscan/internal/model"
)

func TestSimulated_DetectTumour(t *testing.T) {
	p := NewSimulated(NewGenerator(NewSource(3)), SimulatedConfig{TumourDelay: 5 * time.Millisecond})

	res, err := p.DetectTumour(context.Background(), &model.MRIImage{})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, res.Detection.TumourDetected, res.Phenotype != nil)
}

func TestSimulated_DetectBiomarkers(t *testing.T) {
	p := NewSimulated(NewGenerator(NewSource(3)), SimulatedConfig{})

	bms, err := p.DetectBiomarkers(context.Background(), &model.TumourAnalysis{})

	require.NoError(t, err)
	assert.Len(t, bms, 5)
}

func TestSimulated_Timeout(t *testing.T) {
	p := NewSimulated(NewGenerator(NewSource(3)), SimulatedConfig{
		TumourDelay:    time.Second,
		BiomarkerDelay: time.Second,
		Timeout:        10 * time.Millisecond,
	})

	_, err := p.DetectTumour(context.Background(), &model.MRIImage{})
	assert.ErrorIs(t, err, ErrInferenceTimeout)

	_, err = p.DetectBiomarkers(context.Background(), &model.TumourAnalysis{})
	assert.ErrorIs(t, err, ErrInferenceTimeout)
}

func TestSimulated_Cancelled(t *testing.T) {
	p := NewSimulated(NewGenerator(NewSource(3)), SimulatedConfig{TumourDelay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.DetectTumour(ctx, &model.MRIImage{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInferenceTimeout)
}
