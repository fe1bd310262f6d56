package cluster

import (
	"reflect"
	"testing"
)

func TestSortedClusterIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   map[int64]struct{}
		want []int64
	}{
		{
			name: "empty set",
			in:   map[int64]struct{}{},
			want: []int64{},
		},
		{
			name: "ordered ascending",
			in:   map[int64]struct{}{42: {}, 7: {}, 19: {}},
			want: []int64{7, 19, 42},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := sortedClusterIDs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sortedClusterIDs = %v, want %v", got, tt.want)
			}
		})
	}
}
