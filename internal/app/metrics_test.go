package app

import (
	"reflect"
	"testing"
)

func TestParseClusterIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		csv     string
		want    []int64
		wantErr bool
	}{
		{
			name: "empty means all",
			csv:  "",
			want: nil,
		},
		{
			name: "single id",
			csv:  "42",
			want: []int64{42},
		},
		{
			name: "list with spaces",
			csv:  " 1, 2 ,3 ",
			want: []int64{1, 2, 3},
		},
		{
			name: "trailing comma tolerated",
			csv:  "7,",
			want: []int64{7},
		},
		{
			name:    "non numeric",
			csv:     "1,abc",
			wantErr: true,
		},
		{
			name:    "zero rejected",
			csv:     "0",
			wantErr: true,
		},
		{
			name:    "negative rejected",
			csv:     "-3",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseClusterIDs(tt.csv)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseClusterIDs(%q) accepted invalid input", tt.csv)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseClusterIDs(%q) returned error: %v", tt.csv, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseClusterIDs(%q) = %v, want %v", tt.csv, got, tt.want)
			}
		})
	}
}
