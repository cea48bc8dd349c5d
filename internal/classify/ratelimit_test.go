package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

func TestRateLimited_Delegates(t *testing.T) {
	rl := NewRateLimited(NewStub(NewRand(1)), worker.NewLimiter(1000, 1), "stub")

	assert.Equal(t, "stub", rl.Name())
	assert.True(t, rl.IsAvailable(context.Background()))

	c, err := rl.Classify(context.Background(), model.SequenceRecord{ID: "a", Sequence: "ACGT"})
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
}

func TestRateLimited_HonoursContext(t *testing.T) {
	rl := NewRateLimited(NewStub(NewRand(1)), worker.NewLimiter(0.001, 1), "stub")
	rec := model.SequenceRecord{ID: "a", Sequence: "ACGT"}

	_, err := rl.Classify(context.Background(), rec)
	require.NoError(t, err, "first call uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rl.Classify(ctx, rec)
	assert.Error(t, err)
}
