package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefValid(t *testing.T) {
	assert.True(t, Ref("room/playlist/1_a.mp4").Valid())
	assert.Equal(t, "room/playlist", Ref("room/playlist/1_a.mp4").Scope())
	assert.Equal(t, "1_a.mp4", Ref("room/playlist/1_a.mp4").Name())

	for _, ref := range []Ref{"", "/etc/passwd", "room/../secret", "room//x", "./x", "room\\x"} {
		assert.False(t, ref.Valid(), string(ref))
	}
}
