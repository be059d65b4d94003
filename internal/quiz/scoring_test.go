package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePoints(t *testing.T) {
	tests := map[string]struct {
		elapsedMillis   int64
		timeLimitMillis int64
		want            int
	}{
		"instant answer": {
			elapsedMillis:   0,
			timeLimitMillis: 10000,
			want:            100,
		},
		"3s of 10s": {
			elapsedMillis:   3000,
			timeLimitMillis: 10000,
			want:            85,
		},
		"halfway": {
			elapsedMillis:   5000,
			timeLimitMillis: 10000,
			want:            75,
		},
		"at the limit": {
			elapsedMillis:   10000,
			timeLimitMillis: 10000,
			want:            50,
		},
		"past the limit": {
			elapsedMillis:   12000,
			timeLimitMillis: 10000,
			want:            50,
		},
		"uneven division rounds up": {
			// 1000/3000 remaining 2/3: 100*(0.5+1/3) = 83.33.. -> 84.
			elapsedMillis:   1000,
			timeLimitMillis: 3000,
			want:            84,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorePoints(tt.elapsedMillis, tt.timeLimitMillis))
		})
	}
}

func TestScorePoints_Bounds(t *testing.T) {
	const limit = int64(30000)

	for elapsed := int64(0); elapsed <= limit+5000; elapsed += 500 {
		got := scorePoints(elapsed, limit)
		assert.GreaterOrEqual(t, got, 50, "elapsed=%d", elapsed)
		assert.LessOrEqual(t, got, 100, "elapsed=%d", elapsed)
	}
}
