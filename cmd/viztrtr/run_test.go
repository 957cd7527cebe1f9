package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viztrtr/viztrtr-core/internal/iteration"
)

func TestExitCodeLabelCoversEveryExitCode(t *testing.T) {
	assert.Equal(t, "target score reached", exitCodeLabel(iteration.ExitTargetReached))
	assert.Equal(t, "iteration budget exhausted", exitCodeLabel(iteration.ExitIterationsExhausted))
	assert.Equal(t, "plateaued", exitCodeLabel(iteration.ExitPlateau))
	assert.Equal(t, "configuration error", exitCodeLabel(iteration.ExitConfigError))
	assert.Equal(t, "unrecoverable error", exitCodeLabel(iteration.ExitUnrecoverable))
}
