package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)

	log.WithField("amount", "30").Debug("Expense added")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Expense added", line["msg"])
	assert.Equal(t, "30", line["amount"])
	assert.Equal(t, "debug", line["level"])
}

func TestNew_Levels(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, New("warn", "text", nil).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("loud", "text", nil).GetLevel())

	var buf bytes.Buffer
	New("error", "text", &buf).Info("dropped")
	assert.Empty(t, buf.String())
}
