package main

import "testing"

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base, name, want string
		wantErr          bool
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/ws", false},
		{"http://localhost:8080/", "pool", "ws://localhost:8080/ws/pool", false},
		{"https://watch.flexifi.xyz", "pool", "wss://watch.flexifi.xyz/ws/pool", false},
		{"ws://10.0.0.2:8080", "", "ws://10.0.0.2:8080/ws", false},
		{"ftp://host", "", "", true},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.base, tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("streamURL(%q, %q) err = %v", tt.base, tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("streamURL(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}
