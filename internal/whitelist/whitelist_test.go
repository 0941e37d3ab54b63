package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsNotJunk(t *testing.T) {
	base := NewChecker([]string{" Example.ORG ", "@corp.example", ""}, zap.NewNop())
	c := base.WithAddresses([]string{"Friend@Mail.com"})

	tests := []struct {
		from string
		want bool
	}{
		{"friend@mail.com", true},
		{"FRIEND@mail.com", true},
		{"stranger@mail.com", false},
		{"boss@example.org", true},
		{"boss@sub.example.org", false},
		{"it@corp.example", true},
		{"not-an-address", false},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsNotJunk(tt.from))
		})
	}

	assert.False(t, base.IsNotJunk("friend@mail.com"), "base checker is not modified")
	assert.False(t, NewChecker(nil, nil).IsNotJunk("a@b.c"))
}
