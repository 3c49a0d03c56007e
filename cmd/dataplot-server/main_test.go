package main

import "testing"

func TestMakeUIURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/"},
		{":9000", "http://127.0.0.1:9000/"},
		{"[::]:9000", "http://127.0.0.1:9000/"},
		{"[::1]:9000", "http://[::1]:9000/"},
		{"localhost", "http://localhost/"},
	}
	for _, tt := range tests {
		if got := makeUIURL(tt.addr); got != tt.want {
			t.Errorf("makeUIURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
