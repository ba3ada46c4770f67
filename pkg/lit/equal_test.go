package lit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultEqual(t *testing.T) {
	type point struct{ X, Y int }
	type holder struct{ V any }
	ptr := &point{1, 2}
	ch := make(chan int)

	tests := []struct {
		name  string
		last  any
		value any
		want  bool
	}{
		{"equal strings", "a", "a", true},
		{"different strings", "a", "b", false},
		{"equal ints", 3, 3, true},
		{"int vs int64", 3, int64(3), false},
		{"both nil", nil, nil, true},
		{"nil vs value", nil, "", false},
		{"same pointer", ptr, ptr, true},
		{"equal pointees", ptr, &point{1, 2}, false},
		{"same channel", ch, ch, true},
		{"comparable struct", point{1, 2}, point{1, 2}, true},
		{"uncomparable dynamic field", holder{[]int{1}}, holder{[]int{1}}, false},
		{"slices", []any{1}, []any{1}, false},
		{"maps", map[string]int{}, map[string]int{}, false},
		{"template results", greeting.With("x"), greeting.With("x"), false},
		{"sentinels", Nothing, Nothing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultEqual(tt.last, tt.value))
		})
	}
}

func TestNeverEqual(t *testing.T) {
	assert.False(t, NeverEqual("a", "a"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(1))
	assert.True(t, truthy(struct{}{}))
	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy(0))
	assert.False(t, truthy(nil))
	assert.False(t, truthy(Nothing))
	assert.False(t, truthy((*int)(nil)))
}
