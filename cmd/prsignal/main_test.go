package main

import (
	"reflect"
	"testing"
)

func TestParsePRURL(t *testing.T) {
	cases := []struct {
		input   string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{"https://github.com/acme/api/pull/123", "acme", "api", 123, false},
		{"http://github.com/acme/api/pull/7", "acme", "api", 7, false},
		{"acme/api#42", "acme", "api", 42, false},
		{"acme/api/pull/123", "", "", 0, true},
		{"https://gitlab.com/acme/api/pull/1", "", "", 0, true},
		{"acme#42", "", "", 0, true},
		{"acme/api#notanumber", "", "", 0, true},
		{"", "", "", 0, true},
	}
	for _, tc := range cases {
		owner, repo, number, err := parsePRURL(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("parsePRURL(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if owner != tc.owner || repo != tc.repo || number != tc.number {
			t.Errorf("parsePRURL(%q) = %s/%s#%d, want %s/%s#%d",
				tc.input, owner, repo, number, tc.owner, tc.repo, tc.number)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Errorf("empty input should return nil, got %v", got)
	}
	got := splitList("alice, bob ,,charlie")
	want := []string{"alice", "bob", "charlie"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList = %v, want %v", got, want)
	}
}
