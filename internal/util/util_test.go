package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "panel-local", Slugify("panel.local"))
	assert.Equal(t, "192-168-1-10", Slugify("192.168.1.10"))
	assert.Equal(t, "tuxedo-touch", Slugify(" Tuxedo Touch! "))
	assert.Equal(t, "cocina", Slugify("Cocína"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Armed Away", Normalize(" Armed Away\x00 "))
	assert.Equal(t, "", Normalize("\x00\x00"))
}
