package fbapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "//", want: ""},
		{in: "docs", want: "/docs"},
		{in: "/docs/", want: "/docs"},
		{in: "docs//reports/", want: "/docs/reports"},
		{in: " /a/b ", want: "/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDir(tt.in))
		})
	}
}

func TestURLs(t *testing.T) {
	const srv = "https://files.example.com"

	assert.Equal(t, srv+"/api/login", LoginURL(srv+"/"))
	assert.Equal(t, srv+"/api/resources/a.txt?override=true", ResourceURL(srv, "/", "a.txt"))
	assert.Equal(t, srv+"/api/resources/docs/a.txt?override=true", ResourceURL(srv, "docs/", "a.txt"))
	assert.Equal(t, srv+"/api/tus/a.txt", TusURL(srv, "a.txt"))
	assert.Equal(t, srv+"/files/docs/a.txt", AccessURL(srv, "/docs", "a.txt"))
	assert.Equal(t, srv+"/files/a.txt", AccessURL(srv, "", "a.txt"))
	assert.Equal(t, srv+"/files/my%20docs/report%201.pdf", AccessURL(srv, "my docs", "report 1.pdf"))
}

func TestValidServerURL(t *testing.T) {
	assert.True(t, ValidServerURL("http://localhost:8080"))
	assert.True(t, ValidServerURL("https://files.example.com"))
	assert.False(t, ValidServerURL("ftp://files.example.com"))
	assert.False(t, ValidServerURL("https://"))
	assert.False(t, ValidServerURL(""))
}
