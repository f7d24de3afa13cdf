package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/models"
)

func candidate(id int64, active, maxChats int) operatorCandidate {
	return operatorCandidate{
		Operator:    models.Operator{ID: id, MaxChats: maxChats},
		ActiveChats: active,
	}
}

func TestPickOperator(t *testing.T) {
	tests := []struct {
		name       string
		candidates []operatorCandidate
		wantID     int64
		wantFound  bool
	}{
		{
			name: "least loaded wins",
			candidates: []operatorCandidate{
				candidate(1, 2, 4),
				candidate(2, 0, 4),
			},
			wantID:    2,
			wantFound: true,
		},
		{
			name: "lowest id breaks load ties",
			candidates: []operatorCandidate{
				candidate(2, 1, 4),
				candidate(1, 1, 4),
			},
			wantID:    1,
			wantFound: true,
		},
		{
			name: "full operator is skipped even when least loaded by rank",
			candidates: []operatorCandidate{
				candidate(1, 2, 2),
				candidate(2, 3, 4),
			},
			wantID:    2,
			wantFound: true,
		},
		{
			name: "one under capacity among full peers",
			candidates: []operatorCandidate{
				candidate(1, 2, 2),
				candidate(2, 2, 2),
				candidate(3, 1, 2),
			},
			wantID:    3,
			wantFound: true,
		},
		{
			name: "everyone at capacity",
			candidates: []operatorCandidate{
				candidate(1, 2, 2),
				candidate(2, 4, 4),
			},
			wantFound: false,
		},
		{
			name:       "no operators",
			candidates: nil,
			wantFound:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			operator, found := pickOperator(tt.candidates)
			require.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantID, operator.ID)
			}
		})
	}
}

func TestPickOperatorNeverExceedsCapacity(t *testing.T) {
	// Counts one below, at, and above the limit; only the first is eligible.
	candidates := []operatorCandidate{
		candidate(1, 4, 4),
		candidate(2, 5, 4),
		candidate(3, 3, 4),
	}

	operator, found := pickOperator(candidates)
	require.True(t, found)
	assert.EqualValues(t, 3, operator.ID)
}
