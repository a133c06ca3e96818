package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{prefix: "clavis", parts: []string{"oauth", "state", "abc"}, want: "clavis:oauth:state:abc"},
		{prefix: "", parts: []string{"ratelimit", "login:/x:1.2.3.4"}, want: "ratelimit:login:/x:1.2.3.4"},
	}

	for _, tt := range tests {
		r := &Redis{prefix: tt.prefix}
		assert.Equal(t, tt.want, r.Key(tt.parts...))
	}
}
