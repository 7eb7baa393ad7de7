package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelativize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<a href="/a/b.html">`, `<a href="a/b.html">`},
		{`<img src="/assets/x.png">`, `<img src="assets/x.png">`},
		{`<a href="a/b.html">`, `<a href="a/b.html">`},
		{`<script src="//cdn.example.com/x.js">`, `<script src="//cdn.example.com/x.js">`},
		{`<a href="/">`, `<a href="/">`},
		{`<a href="https://example.com/x">`, `<a href="https://example.com/x">`},
		{`<a data-href="/x">`, `<a data-href="x">`},
		{`<a href='/x'>`, `<a href='/x'>`},
		{`<link href="/css/a.css"><img src="/b.png">`, `<link href="css/a.css"><img src="b.png">`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Relativize(tt.in))
		})
	}
}

func TestRelativizeIsIdempotent(t *testing.T) {
	in := `<a href="/a/b.html"><img src="/x.png"><a href="//cdn/x">`
	once := Relativize(in)
	assert.Equal(t, once, Relativize(once))
}
