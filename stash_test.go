package recrawl_test

import (
	"testing"

	"github.com/fwojciec/recrawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	t.Parallel()

	for _, d := range []recrawl.Decision{recrawl.DecisionResume, recrawl.DecisionDiscard, recrawl.DecisionStash} {
		got, err := recrawl.ParseDecision(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	got, err := recrawl.ParseDecision("s")
	require.NoError(t, err)
	assert.Equal(t, recrawl.DecisionStash, got)

	_, err = recrawl.ParseDecision("maybe")
	assert.Equal(t, recrawl.EINVALID, recrawl.ErrorCode(err))
}
